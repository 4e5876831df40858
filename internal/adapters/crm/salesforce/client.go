// Package salesforce is the CRM gateway for punch records
//
// Every call fetches the tenant credential fresh, attaches it as a bearer
// token and classifies the outcome as auth, transient or rejected. Nothing
// is retried here because a repeated create would duplicate the punch.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"clockrelay/internal/adapters/crm"
	"clockrelay/internal/core/version"
	"clockrelay/internal/modkit/scope"
	perr "clockrelay/internal/platform/errors"
	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultAPIVersion      = "v59.0"
	defaultTimeout         = 15 * time.Second
	defaultBreakerName     = "salesforce"
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
	maxErrorBody           = 4096
	maxResponseBody        = 1 << 20
)

// Fields names the custom object and its columns
type Fields struct {
	Object   string
	Subject  string
	PunchIn  string
	PunchOut string
	Location string
	Name     string
}

// DefaultFields matches the managed package punch object
func DefaultFields() Fields {
	return Fields{
		Object:   "Punch__c",
		Subject:  "Subject__c",
		PunchIn:  "Punch_In__c",
		PunchOut: "Punch_Out__c",
		Location: "Location_Type__c",
		Name:     "Name",
	}
}

// Options configures the Client
type Options struct {
	APIVersion string
	Timeout    time.Duration
	UserAgent  string
	Fields     Fields

	// Each tenant gets its own breaker. It opens after BreakerFailures
	// consecutive transient failures and probes again after BreakerTimeout
	BreakerName     string
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// HTTPClient overrides the default client, mostly for tests
	HTTPClient *http.Client
}

// Client talks to the Salesforce REST API
// safe for concurrent use
type Client struct {
	http  *http.Client
	opts  Options
	creds crm.CredentialSource
	log   logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

// NewClient builds a Client that resolves credentials from creds on every call
func NewClient(creds crm.CredentialSource, o Options) *Client {
	if creds == nil {
		panic("salesforce: NewClient requires a CredentialSource")
	}
	if o.APIVersion == "" {
		o.APIVersion = defaultAPIVersion
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = "clockrelay/" + version.Info().Version
	}
	o.Fields = withDefaults(o.Fields)
	if o.BreakerName == "" {
		o.BreakerName = defaultBreakerName
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = defaultBreakerFailures
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = defaultBreakerTimeout
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}

	return &Client{
		http:     hc,
		opts:     o,
		creds:    creds,
		log:      *logger.Named("crm"),
		breakers: map[string]*gobreaker.CircuitBreaker[*http.Response]{},
	}
}

func withDefaults(f Fields) Fields {
	d := DefaultFields()
	if f.Object == "" {
		f.Object = d.Object
	}
	if f.Subject == "" {
		f.Subject = d.Subject
	}
	if f.PunchIn == "" {
		f.PunchIn = d.PunchIn
	}
	if f.PunchOut == "" {
		f.PunchOut = d.PunchOut
	}
	if f.Location == "" {
		f.Location = d.Location
	}
	if f.Name == "" {
		f.Name = d.Name
	}
	return f
}

// breaker returns the tenant's breaker, creating it on first use
func (c *Client) breaker(tenant string) *gobreaker.CircuitBreaker[*http.Response] {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[tenant]
	if !ok {
		cb = newBreaker(c.opts, c.opts.BreakerName+"/"+tenant, c.log)
		c.breakers[tenant] = cb
	}
	return cb
}

// callerGone marks a failure caused by the caller's own ctx ending
type callerGone struct{ error }

func (e callerGone) Unwrap() error { return e.error }

func newBreaker(o Options, name string, log logger.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	metrics.SetBreakerState(name, 0)
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     o.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.BreakerFailures
		},
		// only transient failures say anything about CRM health, and a
		// disconnecting caller says nothing at all
		IsSuccessful: func(err error) bool {
			if errors.As(err, new(callerGone)) {
				return true
			}
			return err == nil || perr.KindOf(err) != crm.KindTransient
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("crm breaker state change")
			metrics.SetBreakerState(name, stateValue(to))
		},
	})
}

// Healthy fails while any tenant's breaker is open; half-open counts as usable
func (c *Client) Healthy(context.Context) error {
	c.mu.Lock()
	var open []string
	for tenant, cb := range c.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, tenant)
		}
	}
	c.mu.Unlock()
	if len(open) == 0 {
		return nil
	}
	slices.Sort(open)
	return crm.TransientError(gobreaker.ErrOpenState, "crm circuit open for %s", strings.Join(open, ","))
}

var _ crm.Health = (*Client)(nil)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// do sends one request for tenant and decodes a 2xx body into out
// out may be nil when the response has no body worth reading
func (c *Client) do(ctx context.Context, op, tenant, method, path string, body, out any) error {
	err := c.roundTrip(ctx, op, tenant, method, path, body, out)
	metrics.RecordCRM(op, resultLabel(err))
	if err != nil {
		ev := logger.C(ctx).Warn().Err(err).
			Str("op", op).
			Str("tenant", tenant).
			Str("kind", perr.KindOf(err))
		if subject, ok := scope.Get(ctx, "subject"); ok {
			ev = ev.Str("subject", subject)
		}
		ev.Msg("crm call failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, tenant, method, path string, body, out any) error {
	cred, err := c.creds.Credentials(ctx, tenant)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return crm.AuthError(err, "no crm credential for tenant %q", tenant)
		}
		return crm.TransientError(err, "credential lookup failed")
	}
	if cred.AccessToken == "" || cred.InstanceURL == "" {
		return crm.AuthError(nil, "incomplete crm credential for tenant %q", tenant)
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "crm %s encode body", op)
		}
	}
	url := strings.TrimRight(cred.InstanceURL, "/") + "/services/data/" + c.opts.APIVersion + path

	start := time.Now()
	resp, err := c.breaker(tenant).Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "crm %s new request", op)
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.opts.UserAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, callerGone{crm.TransientError(err, "crm %s abandoned by caller", op)}
			}
			return nil, crm.TransientError(err, "crm %s transport", op)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		return nil, classify(op, resp)
	})
	if err != nil {
		var gone callerGone
		if errors.As(err, &gone) {
			return gone.error
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return crm.TransientError(err, "crm %s short circuited", op)
		}
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("op", op).Msg("crm close body failed")
		}
	}()

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("crm http response")

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return crm.TransientError(err, "crm %s read body", op)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return crm.RejectedError(err, "crm %s decode body", op)
	}
	return nil
}

// apiError is one entry of the Salesforce error array body
type apiError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// classify turns a non 2xx response into a kinded error and closes the body
func classify(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()

	code, msg := parseAPIError(raw)
	status := resp.StatusCode
	cause := fmt.Errorf("status %d %s", status, strings.TrimSpace(code+" "+msg))

	switch {
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden && code == "INVALID_SESSION_ID":
		return crm.AuthError(cause, "crm %s rejected credential", op)
	case status == http.StatusTooManyRequests, status >= 500:
		return crm.TransientError(cause, "crm %s unavailable", op)
	default:
		return crm.RejectedError(cause, "crm %s rejected request", op)
	}
}

func parseAPIError(raw []byte) (code, msg string) {
	var list []apiError
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0].ErrorCode, list[0].Message
	}
	var one apiError
	if err := json.Unmarshal(raw, &one); err == nil && (one.ErrorCode != "" || one.Message != "") {
		return one.ErrorCode, one.Message
	}
	return "", strings.TrimSpace(string(raw))
}

func resultLabel(err error) string {
	switch perr.KindOf(err) {
	case "":
		if err == nil {
			return "ok"
		}
		return "error"
	case crm.KindAuth:
		return "auth"
	case crm.KindTransient:
		return "transient"
	default:
		return "rejected"
	}
}
