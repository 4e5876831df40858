// Package service runs the CRM OAuth flow and manages stored credentials
package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"clockrelay/internal/adapters/crm"
	"clockrelay/internal/modkit/repokit"
	perr "clockrelay/internal/platform/errors"
	"clockrelay/internal/platform/logger"
	ptime "clockrelay/internal/platform/time"
	"clockrelay/internal/services/oauth/domain"
	"clockrelay/internal/services/oauth/repo"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	defaultLoginURL = "https://login.salesforce.com"
	defaultStateTTL = 10 * time.Minute
	defaultTenant   = "default"
)

// Service defines the oauth service contract
type Service interface {
	domain.ServicePort
	crm.CredentialSource
}

// Options configures the OAuth client and state signing
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	LoginURL     string
	Scopes       []string

	// StateSecret signs the state JWT; empty means a per process random key
	StateSecret   string
	StateTTL      time.Duration
	DefaultTenant string

	// HTTPClient is used for token calls, mostly for tests
	HTTPClient *http.Client
}

// Svc implements the oauth service
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Repo]
	repo   repo.Repo
	oc     *oauth2.Config
	state  stateSigner
	httpc  *http.Client
	tenant string
}

var _ Service = (*Svc)(nil)

// New constructs the oauth service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], opt Options) *Svc {
	if db == nil {
		panic("oauth.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("oauth.Service requires a non nil Repo binder")
	}
	login := strings.TrimRight(strings.TrimSpace(opt.LoginURL), "/")
	if login == "" {
		login = defaultLoginURL
	}
	if opt.StateTTL <= 0 {
		opt.StateTTL = defaultStateTTL
	}
	if strings.TrimSpace(opt.DefaultTenant) == "" {
		opt.DefaultTenant = defaultTenant
	}
	key := []byte(opt.StateSecret)
	if len(key) == 0 {
		logger.Get().Warn().Msg("oauth state secret not set, using a per process key")
		key = []byte(uuid.NewString() + uuid.NewString())
	}

	return &Svc{
		db:     db,
		binder: binder,
		repo:   binder.Bind(db),
		oc: &oauth2.Config{
			ClientID:     opt.ClientID,
			ClientSecret: opt.ClientSecret,
			RedirectURL:  opt.RedirectURL,
			Scopes:       opt.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   login + "/services/oauth2/authorize",
				TokenURL:  login + "/services/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		state:  stateSigner{key: key, ttl: opt.StateTTL, now: time.Now},
		httpc:  opt.HTTPClient,
		tenant: opt.DefaultTenant,
	}
}

// Connect returns the consent URL carrying a signed state for the tenant
func (s *Svc) Connect(_ context.Context, in domain.ConnectInput) (domain.ConnectResult, error) {
	tenant := s.tenantOr(in.Tenant)
	st, err := s.state.sign(tenant)
	if err != nil {
		return domain.ConnectResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "sign oauth state")
	}
	return domain.ConnectResult{AuthorizationURL: s.oc.AuthCodeURL(st)}, nil
}

// Callback verifies state, exchanges the code and stores the credential
func (s *Svc) Callback(ctx context.Context, code, state string) (domain.CallbackResult, error) {
	if strings.TrimSpace(code) == "" {
		return domain.CallbackResult{}, perr.WithField(perr.Validationf("code is required"), "code")
	}
	tenant, err := s.state.verify(state)
	if err != nil {
		return domain.CallbackResult{}, perr.Wrapf(err, perr.ErrorCodeUnauthorized, "invalid oauth state")
	}

	tok, err := s.oc.Exchange(s.clientCtx(ctx), code)
	if err != nil {
		return domain.CallbackResult{}, crm.AuthError(err, "oauth code exchange failed")
	}
	instance := extraString(tok, "instance_url")
	if instance == "" {
		return domain.CallbackResult{}, crm.AuthError(nil, "token response carries no instance_url")
	}

	saved, err := s.repo.Upsert(ctx, repo.Credential{
		Tenant:       tenant,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		InstanceURL:  instance,
		ExpiresAt:    expiry(tok),
	})
	if err != nil {
		return domain.CallbackResult{}, perr.FromPostgres(err, "store credential")
	}
	logger.C(ctx).Info().Str("tenant", tenant).Str("instance_url", instance).Msg("crm connected")
	return domain.CallbackResult{Tenant: saved.Tenant, InstanceURL: saved.InstanceURL}, nil
}

// ListTokens returns every stored credential, masked
func (s *Svc) ListTokens(ctx context.Context) ([]domain.TokenView, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, perr.FromPostgres(err, "list credentials")
	}
	out := make([]domain.TokenView, 0, len(rows))
	for _, c := range rows {
		out = append(out, view(c))
	}
	return out, nil
}

// GetToken returns one tenant's credential, masked
func (s *Svc) GetToken(ctx context.Context, tenant string) (domain.TokenView, error) {
	c, err := s.load(ctx, tenant)
	if err != nil {
		return domain.TokenView{}, err
	}
	return view(c), nil
}

// PutToken stores a credential given directly
func (s *Svc) PutToken(ctx context.Context, in domain.TokenInput) (domain.TokenView, error) {
	c, err := s.repo.Upsert(ctx, repo.Credential{
		Tenant:       strings.TrimSpace(in.Tenant),
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		InstanceURL:  strings.TrimRight(in.InstanceURL, "/"),
	})
	if err != nil {
		return domain.TokenView{}, perr.FromPostgres(err, "store credential")
	}
	return view(c), nil
}

// DeleteToken removes a tenant's credential
func (s *Svc) DeleteToken(ctx context.Context, tenant string) error {
	ok, err := s.repo.Delete(ctx, strings.TrimSpace(tenant))
	if err != nil {
		return perr.FromPostgres(err, "delete credential")
	}
	if !ok {
		return perr.NotFoundf("no credential for tenant %q", tenant)
	}
	return nil
}

// RefreshToken runs the refresh_token grant and persists the new access token
func (s *Svc) RefreshToken(ctx context.Context, tenant string) (domain.TokenView, error) {
	c, err := s.load(ctx, tenant)
	if err != nil {
		return domain.TokenView{}, err
	}
	if c.RefreshToken == "" {
		return domain.TokenView{}, perr.Validationf("tenant %q has no refresh token", c.Tenant)
	}

	tok, err := s.oc.TokenSource(s.clientCtx(ctx), &oauth2.Token{RefreshToken: c.RefreshToken}).Token()
	if err != nil {
		return domain.TokenView{}, crm.AuthError(err, "oauth refresh failed")
	}

	next := repo.Credential{
		Tenant:       c.Tenant,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		InstanceURL:  c.InstanceURL,
		ExpiresAt:    expiry(tok),
	}
	if v := extraString(tok, "instance_url"); v != "" {
		next.InstanceURL = v
	}
	saved, err := s.repo.Upsert(ctx, next)
	if err != nil {
		return domain.TokenView{}, perr.FromPostgres(err, "store credential")
	}
	logger.C(ctx).Info().Str("tenant", c.Tenant).Msg("crm token refreshed")
	return view(saved), nil
}

// Credentials implements crm.CredentialSource
// a missing credential keeps the NotFound code
func (s *Svc) Credentials(ctx context.Context, tenant string) (crm.Credential, error) {
	c, err := s.load(ctx, tenant)
	if err != nil {
		return crm.Credential{}, err
	}
	return crm.Credential{AccessToken: c.AccessToken, InstanceURL: c.InstanceURL}, nil
}

func (s *Svc) load(ctx context.Context, tenant string) (repo.Credential, error) {
	tenant = s.tenantOr(tenant)
	c, err := s.repo.Get(ctx, tenant)
	if errors.Is(err, perr.ErrNotFound) || perr.IsCode(err, perr.ErrorCodeNotFound) {
		return repo.Credential{}, perr.NotFoundf("no credential for tenant %q", tenant)
	}
	if err != nil {
		return repo.Credential{}, perr.FromPostgres(err, "load credential")
	}
	return c, nil
}

func (s *Svc) tenantOr(t string) string {
	if t = strings.TrimSpace(t); t != "" {
		return t
	}
	return s.tenant
}

func (s *Svc) clientCtx(ctx context.Context) context.Context {
	if s.httpc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpc)
}

func extraString(tok *oauth2.Token, key string) string {
	v, _ := tok.Extra(key).(string)
	return strings.TrimRight(strings.TrimSpace(v), "/")
}

// expiry is nil when the token response carried no expires_in
func expiry(tok *oauth2.Token) *time.Time {
	if tok.Expiry.IsZero() {
		return nil
	}
	return ptime.Ptr(tok.Expiry.UTC())
}

func view(c repo.Credential) domain.TokenView {
	return domain.TokenView{
		Tenant:       c.Tenant,
		AccessToken:  mask(c.AccessToken),
		RefreshToken: mask(c.RefreshToken),
		InstanceURL:  c.InstanceURL,
		ExpiresAt:    c.ExpiresAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
