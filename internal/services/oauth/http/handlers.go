// Package http mounts the oauth connect flow and token admin routes
package http

import (
	stdhttp "net/http"
	"net/url"

	"clockrelay/internal/adapters/crm"
	"clockrelay/internal/modkit/httpkit"
	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/net/middleware"
	"clockrelay/internal/services/oauth/domain"
)

// Deps tune route behavior
type Deps struct {
	// SuccessRedirect, when set, turns a successful callback into a 302
	SuccessRedirect string
	// Admin guards /tokens when non nil
	Admin middleware.AuthPort
}

type handlers struct {
	svc  domain.ServicePort
	deps Deps
}

// Register mounts connect, callback and token routes
func Register(r httpkit.Router, s domain.ServicePort, d Deps) {
	h := &handlers{svc: s, deps: d}

	httpkit.PostJSONOptional[domain.ConnectInput](r, "/connect", h.connect)
	httpkit.Get(r, "/callback", h.callback)

	tokens := func(tr httpkit.Router) {
		tr.Route("/tokens", func(rr httpkit.Router) {
			httpkit.Get(rr, "/", h.listTokens)
			httpkit.PostJSON[domain.TokenInput](rr, "/", h.putToken)
			httpkit.Get(rr, "/{tenant}", h.getToken)
			rr.Delete("/{tenant}", httpkit.Handle(h.deleteToken))
			httpkit.Post(rr, "/{tenant}/refresh", h.refreshToken)
		})
	}
	if d.Admin != nil {
		httpkit.Protected(r, d.Admin, tokens)
		return
	}
	tokens(r)
}

// swagger:route POST /connect OAuth connect
// @Summary Start the CRM consent flow
// @Tags oauth
// @Accept json
// @Produce json
// @Param payload body domain.ConnectInput false "Tenant to connect"
// @Success 200 {object} domain.ConnectResult "ok"
// @Router /connect [post]
func (h *handlers) connect(r *stdhttp.Request, in domain.ConnectInput) (any, error) {
	return h.svc.Connect(r.Context(), in)
}

// swagger:route GET /callback OAuth callback
// @Summary Finish the CRM consent flow
// @Tags oauth
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "Signed state"
// @Success 200 {object} domain.CallbackResult "ok"
// @Success 302 "redirect to the configured success page"
// @Failure 401 {object} httpkit.Envelope "bad state or denied consent"
// @Router /callback [get]
func (h *handlers) callback(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		return nil, crm.AuthError(nil, "consent denied: %s %s", e, q.Get("error_description"))
	}
	res, err := h.svc.Callback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		return nil, err
	}
	if h.deps.SuccessRedirect == "" {
		return res, nil
	}
	loc, err := url.Parse(h.deps.SuccessRedirect)
	if err != nil {
		return res, nil
	}
	v := loc.Query()
	v.Set("tenant", res.Tenant)
	loc.RawQuery = v.Encode()
	return httpkit.Redirect(loc.String(), res), nil
}

// swagger:route GET /tokens OAuth listTokens
// @Summary List stored CRM credentials
// @Tags tokens
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.TokenView "ok"
// @Router /tokens [get]
func (h *handlers) listTokens(r *stdhttp.Request) (any, error) {
	return h.svc.ListTokens(r.Context())
}

// swagger:route POST /tokens OAuth putToken
// @Summary Store a CRM credential
// @Tags tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body domain.TokenInput true "Credential"
// @Success 201 {object} domain.TokenView "stored"
// @Router /tokens [post]
func (h *handlers) putToken(r *stdhttp.Request, in domain.TokenInput) (any, error) {
	v, err := h.svc.PutToken(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(v), nil
}

// swagger:route GET /tokens/{tenant} OAuth getToken
// @Summary Show one tenant's credential
// @Tags tokens
// @Produce json
// @Security BearerAuth
// @Param tenant path string true "Tenant"
// @Success 200 {object} domain.TokenView "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /tokens/{tenant} [get]
func (h *handlers) getToken(r *stdhttp.Request) (any, error) {
	return h.svc.GetToken(r.Context(), httpkit.URLParam(r, "tenant"))
}

// swagger:route DELETE /tokens/{tenant} OAuth deleteToken
// @Summary Delete one tenant's credential
// @Tags tokens
// @Security BearerAuth
// @Param tenant path string true "Tenant"
// @Success 204 "deleted"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /tokens/{tenant} [delete]
func (h *handlers) deleteToken(r *stdhttp.Request) httpkit.Response {
	tenant := httpkit.URLParam(r, "tenant")
	if err := h.svc.DeleteToken(r.Context(), tenant); err != nil {
		return httpkit.Error(err)
	}
	ev := logger.C(r.Context()).Info().Str("tenant", tenant)
	if actor, err := httpkit.User(r); err == nil {
		ev = ev.Str("actor", actor)
	}
	ev.Msg("crm credential deleted")
	return httpkit.NoContent()
}

// swagger:route POST /tokens/{tenant}/refresh OAuth refreshToken
// @Summary Refresh one tenant's access token
// @Tags tokens
// @Produce json
// @Security BearerAuth
// @Param tenant path string true "Tenant"
// @Success 200 {object} domain.TokenView "ok"
// @Router /tokens/{tenant}/refresh [post]
func (h *handlers) refreshToken(r *stdhttp.Request) (any, error) {
	return h.svc.RefreshToken(r.Context(), httpkit.URLParam(r, "tenant"))
}
