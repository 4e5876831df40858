package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	phttp "clockrelay/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func serve(t *testing.T, d Deps, path string) (int, phttp.Envelope) {
	t.Helper()
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, d)
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))
	var env phttp.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestReady(t *testing.T) {
	cases := []struct {
		name   string
		checks []Check
		code   int
		status string
	}{
		{"all ok", []Check{{Name: "pg", Required: true, Probe: probe(nil)}, {Name: "crm", Probe: probe(nil)}}, 200, "ok"},
		{"audit disabled", []Check{{Name: "pg", Required: true, Probe: probe(nil)}, {Name: "ch"}}, 200, "ok"},
		{"crm open degrades", []Check{{Name: "pg", Required: true, Probe: probe(nil)}, {Name: "crm", Probe: probe(errors.New("crm circuit open"))}}, 200, "degraded"},
		{"pg down fails", []Check{{Name: "pg", Required: true, Probe: probe(errors.New("refused"))}}, 503, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := serve(t, Deps{Checks: tc.checks}, "/ready")
			require.Equal(t, tc.code, code)
			if tc.status == "" {
				assert.Contains(t, env.Error, "pg not ready")
				return
			}
			data, _ := json.Marshal(env.Data)
			var rr ReadyResponse
			require.NoError(t, json.Unmarshal(data, &rr))
			assert.Equal(t, tc.status, rr.Status)
			assert.Len(t, rr.Checks, len(tc.checks))
		})
	}
}

func TestHealthAndVersion(t *testing.T) {
	start := time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC)
	d := Deps{
		ServiceName: "clockrelay-api",
		StartedAt:   start,
		Now:         func() time.Time { return start.Add(5 * time.Minute) },
	}

	code, env := serve(t, d, "/health")
	require.Equal(t, 200, code)
	assert.Equal(t, map[string]any{
		"ok": true, "service": "clockrelay-api", "started": "2026-10-01T13:00:00Z", "uptime": float64(300),
	}, env.Data)

	code, env = serve(t, d, "/version")
	require.Equal(t, 200, code)
	assert.Equal(t, "clockrelay-api", env.Data.(map[string]any)["service"])
}
