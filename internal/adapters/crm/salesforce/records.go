package salesforce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clockrelay/internal/adapters/crm"
)

// sfDateTime is how the REST API renders datetime fields
const sfDateTime = "2006-01-02T15:04:05.000-0700"

type queryResponse struct {
	TotalSize int              `json:"totalSize"`
	Done      bool             `json:"done"`
	Records   []map[string]any `json:"records"`
}

type createResponse struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
}

// FindActive returns the newest punch for subject with no punch out, or nil
func (c *Client) FindActive(ctx context.Context, tenant, subjectID string) (*crm.Record, error) {
	f := c.opts.Fields
	soql := fmt.Sprintf(
		"SELECT Id, %s, %s, %s, %s, %s FROM %s WHERE %s = %s AND %s = null ORDER BY %s DESC LIMIT 1",
		f.Name, f.Subject, f.PunchIn, f.PunchOut, f.Location, f.Object,
		f.Subject, Quote(subjectID), f.PunchOut, f.PunchIn,
	)

	var out queryResponse
	if err := c.do(ctx, "find_active", tenant, http.MethodGet, "/query?q="+url.QueryEscape(soql), nil, &out); err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	rec, err := c.decodeRecord(out.Records[0])
	if err != nil {
		return nil, crm.RejectedError(err, "crm find_active returned an unreadable record")
	}
	return &rec, nil
}

// Create inserts an active punch and returns the CRM assigned id
func (c *Client) Create(ctx context.Context, tenant string, r crm.NewRecord) (string, error) {
	f := c.opts.Fields
	body := map[string]any{
		f.Name:     r.Name,
		f.Subject:  r.SubjectID,
		f.PunchIn:  FormatDateTime(r.PunchIn),
		f.Location: string(r.Location),
	}

	var out createResponse
	if err := c.do(ctx, "create", tenant, http.MethodPost, "/sobjects/"+f.Object, body, &out); err != nil {
		return "", err
	}
	if !out.Success || out.ID == "" {
		msg := "no id returned"
		if len(out.Errors) > 0 {
			msg = out.Errors[0].ErrorCode + " " + out.Errors[0].Message
		}
		return "", crm.RejectedError(nil, "crm create failed: %s", strings.TrimSpace(msg))
	}
	return out.ID, nil
}

// PatchPunchOut sets the punch out time on recordID
func (c *Client) PatchPunchOut(ctx context.Context, tenant, recordID string, out time.Time) error {
	f := c.opts.Fields
	body := map[string]any{f.PunchOut: FormatDateTime(out)}
	return c.do(ctx, "patch_punch_out", tenant, http.MethodPatch,
		"/sobjects/"+f.Object+"/"+url.PathEscape(recordID), body, nil)
}

func (c *Client) decodeRecord(m map[string]any) (crm.Record, error) {
	f := c.opts.Fields
	rec := crm.Record{
		ID:        str(m["Id"]),
		Name:      str(m[f.Name]),
		SubjectID: str(m[f.Subject]),
		Location:  crm.Location(str(m[f.Location])),
	}
	if rec.ID == "" {
		return crm.Record{}, fmt.Errorf("record without Id")
	}
	in, err := ParseDateTime(str(m[f.PunchIn]))
	if err != nil {
		return crm.Record{}, fmt.Errorf("%s: %w", f.PunchIn, err)
	}
	rec.PunchIn = in
	if raw := str(m[f.PunchOut]); raw != "" {
		o, err := ParseDateTime(raw)
		if err != nil {
			return crm.Record{}, fmt.Errorf("%s: %w", f.PunchOut, err)
		}
		rec.PunchOut = &o
	}
	return rec, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// FormatDateTime renders t the way the REST API accepts datetimes
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseDateTime reads a datetime field, which comes back with a +0000 style offset
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(sfDateTime, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
