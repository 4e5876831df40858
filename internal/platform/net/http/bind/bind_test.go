package bind

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "clockrelay/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBody struct {
	SubjectID string `json:"subjectId" validate:"required,max=16"`
	ClockIn   string `json:"clockIn" validate:"required"`
	Tenant    string `json:"tenant,omitempty" validate:"omitempty,tenant"`
	Note      string `validate:"omitempty,min=3"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/sync-clock", strings.NewReader(body))
}

func TestParseJSON(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		code    perr.ErrorCode
		field   string
		message string
	}{
		{name: "ok", body: `{"subjectId":"jane","clockIn":"2024-01-01T09:00:00Z","tenant":"acme.eu-1"}`},
		{name: "empty body", body: ``, code: perr.ErrorCodeJSON, message: "empty body"},
		{name: "malformed", body: `{"subjectId":`, code: perr.ErrorCodeJSON},
		{name: "unknown field", body: `{"subjectId":"jane","clockIn":"x","extra":1}`, code: perr.ErrorCodeJSON},
		{name: "trailing data", body: `{"subjectId":"jane","clockIn":"x"} {}`, code: perr.ErrorCodeJSON, message: "unexpected trailing data"},
		{name: "missing subject", body: `{"clockIn":"x"}`, code: perr.ErrorCodeValidation, field: "subjectId", message: "subjectId is a required field"},
		{name: "subject too long", body: `{"subjectId":"aaaaaaaaaaaaaaaaa","clockIn":"x"}`, code: perr.ErrorCodeValidation, field: "subjectId", message: "subjectId must be at most 16"},
		{name: "bad tenant", body: `{"subjectId":"jane","clockIn":"x","tenant":"a/b"}`, code: perr.ErrorCodeValidation, field: "tenant"},
		{name: "untagged field uses go name", body: `{"subjectId":"jane","clockIn":"x","Note":"ab"}`, code: perr.ErrorCodeValidation, field: "Note", message: "Note must be at least 3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSON[syncBody](post(tc.body))
			if tc.code == perr.ErrorCodeUnknown {
				require.NoError(t, err)
				assert.Equal(t, "jane", got.SubjectID)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.code, perr.CodeOf(err))
			if tc.message != "" {
				assert.Equal(t, tc.message, err.Error())
			}
			if tc.field != "" {
				e, ok := perr.As(err)
				require.True(t, ok)
				assert.Equal(t, tc.field, e.Field())
			}
		})
	}
}

func TestParseJSON_EmptyBodyOnSafeMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/tokens/acme", http.NoBody)
	got, err := ParseJSON[syncBody](req)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestParseJSON_Options(t *testing.T) {
	type connect struct {
		Tenant string `json:"tenant" validate:"omitempty,tenant"`
	}

	got, err := ParseJSON[connect](post(""), JSONOptions{AllowEmptyBody: true, MaxBytes: 64})
	require.NoError(t, err)
	assert.Empty(t, got.Tenant)

	_, err = ParseJSON[connect](post(`{"tenant":"acme"}`), JSONOptions{MaxBytes: 5})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeJSON), "truncated body must fail: %v", err)

	got, err = ParseJSON[connect](post(`{"tenant":"acme","x":1}`), JSONOptions{})
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Tenant)
}

func TestParseJSON_NonStructIsInternalValidationError(t *testing.T) {
	_, err := ParseJSON[[]string](post(`["a"]`))
	assert.Equal(t, perr.ErrorCodeJSON, perr.CodeOf(err))
	assert.Equal(t, "validation error", err.Error())
}

func TestTenantRule(t *testing.T) {
	v := Get().Validator
	for _, ok := range []string{"acme", "default", "Acme_2", "eu.acme-1"} {
		assert.NoError(t, v.Var(ok, "tenant"), ok)
	}
	for _, bad := range []string{"", "-acme", "a b", "a/b", strings.Repeat("x", 65)} {
		assert.Error(t, v.Var(bad, "tenant"), bad)
	}
}
