package net

import (
	"net/http"

	perr "clockrelay/internal/platform/errors"
)

// Wire is the error body written by middleware that runs outside httpkit
type Wire struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
}

// Error maps err to its status and envelope
func Error(err error, reqID string) (int, Wire) {
	status := perr.HTTPStatus(err)
	w := perr.WireFrom(err)
	return status, Wire{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       w.Code,
		Kind:       w.Kind,
		Error:      w.Message,
		RequestID:  reqID,
	}
}
