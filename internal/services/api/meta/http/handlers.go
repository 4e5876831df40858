// Package http serves liveness, readiness and build info
package http

import (
	"context"
	"net/http"
	"time"

	"clockrelay/internal/core/version"
	"clockrelay/internal/modkit/httpkit"
	perr "clockrelay/internal/platform/errors"
)

const probeTimeout = 2 * time.Second

// Check is one readiness probe
// a nil Probe reports "disabled"; a failing Required probe fails readiness
type Check struct {
	Name     string
	Required bool
	Probe    func(context.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Checks      []Check
	Now         func() time.Time
}

type handlers struct{ deps Deps }

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{deps: d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
}

// HealthResponse reports liveness and uptime
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"clockrelay-api"`
	Started string `json:"started" example:"2026-10-01T13:00:00Z"`
	Uptime  int64  `json:"uptime"  example:"300"`
}

// CheckResult is the outcome of one probe
type CheckResult struct {
	Name   string `json:"name"   example:"crm"`
	Status string `json:"status" example:"ok"` // ok fail disabled
	Error  string `json:"error,omitempty" example:"crm circuit open"`
}

// ReadyResponse lists every probe; Status is ok or degraded
type ReadyResponse struct {
	Status string        `json:"status" example:"ok"`
	Checks []CheckResult `json:"checks"`
}

// @Summary Liveness
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /meta/health [get]
func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.deps.Now().Sub(h.deps.StartedAt) / time.Second),
	}, nil
}

// @Summary Readiness
// @Description 503 when a required dependency is down; optional failures only degrade
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} httpkit.Envelope
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	res := ReadyResponse{Status: "ok", Checks: make([]CheckResult, 0, len(h.deps.Checks))}
	for _, c := range h.deps.Checks {
		cr := CheckResult{Name: c.Name, Status: "ok"}
		switch {
		case c.Probe == nil:
			cr.Status = "disabled"
		default:
			if err := c.Probe(ctx); err != nil {
				if c.Required {
					return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s not ready", c.Name)
				}
				cr.Status, cr.Error = "fail", err.Error()
				res.Status = "degraded"
			}
		}
		res.Checks = append(res.Checks, cr)
	}
	return res, nil
}

// @Summary Build info
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo
// @Router /meta/version [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}
