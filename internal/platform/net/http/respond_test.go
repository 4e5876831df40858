package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "clockrelay/internal/platform/errors"
	phttp "clockrelay/internal/platform/net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func serve(t *testing.T, resp phttp.Response) (*httptest.ResponseRecorder, phttp.Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "rid-1"))
	rec := httptest.NewRecorder()
	phttp.Handle(func(*http.Request) phttp.Response { return resp })(rec, req)

	var env phttp.Envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestJSON_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	phttp.JSON(rec, http.StatusTeapot, map[string]any{"k": "v"})
	if rec.Code != http.StatusTeapot || rec.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Fatalf("JSON = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestHandle_SuccessEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		resp phttp.Response
		code int
	}{
		{"ok", phttp.OK(map[string]string{"outcome": "created"}), http.StatusOK},
		{"created", phttp.Created("tok"), http.StatusCreated},
		{"zero status is ok", phttp.Response{Body: 1}, http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, env := serve(t, c.resp)
			if rec.Code != c.code || env.StatusCode != c.code || env.Status != http.StatusText(c.code) {
				t.Fatalf("got %d %+v", rec.Code, env)
			}
			if env.RequestID != "rid-1" || env.Data == nil || env.Error != "" {
				t.Fatalf("envelope = %+v", env)
			}
		})
	}
}

func TestHandle_NoContentHasNoBody(t *testing.T) {
	rec, _ := serve(t, phttp.NoContent())
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("204 = %d body=%q", rec.Code, rec.Body.String())
	}
}

func TestHandle_ErrorEnvelope(t *testing.T) {
	err := perr.WithField(perr.NewKind(perr.ErrorCodeBusinessRule, "ClockInMismatch", "clockIn off by 2m"), "clockIn")
	rec, env := serve(t, phttp.Error(err))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Kind != "ClockInMismatch" || env.Field != "clockIn" || env.Error != "clockIn off by 2m" ||
		env.Code != perr.ErrorCodeBusinessRule || env.RequestID != "rid-1" || env.Data != nil {
		t.Fatalf("envelope = %+v", env)
	}

	// an error body overrides any explicit status
	rec, env = serve(t, phttp.Response{Status: http.StatusOK, Body: errors.New("plain")})
	if rec.Code != http.StatusInternalServerError || env.Code != perr.ErrorCodeUnknown {
		t.Fatalf("plain error = %d %+v", rec.Code, env)
	}
}

func TestHandle_RedirectKeepsHeadersAndBody(t *testing.T) {
	rec, env := serve(t, phttp.Redirect("https://app.example.com/done?tenant=acme", map[string]string{"tenant": "acme"}))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.example.com/done?tenant=acme" {
		t.Fatalf("Location = %q", loc)
	}
	if env.Data == nil {
		t.Fatalf("redirect body should still be enveloped")
	}
}
