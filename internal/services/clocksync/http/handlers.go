// Package http provides http transport for clock sync
package http

import (
	stdhttp "net/http"
	"strconv"

	"clockrelay/internal/modkit/httpkit"
	"clockrelay/internal/services/clocksync/domain"
)

// Register mounts the router
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}
	httpkit.PostJSON[domain.SyncInput](r, "/sync-clock", h.syncClock)
	httpkit.Get(r, "/sync-events/{subjectId}", h.history)
}

type handlers struct{ svc domain.ServicePort }

// swagger:route POST /sync-clock ClockSync syncClock
// @Summary Relay a clock-in or clock-out to the CRM
// @Description Clock-in only creates an active punch. Clock-in plus clock-out closes the matching active punch.
// @Tags clocksync
// @Accept json
// @Produce json
// @Param payload body domain.SyncInput true "Clock event"
// @Success 200 {object} domain.SyncResult "created, already_active, clocked_out or in_progress"
// @Failure 400 {object} httpkit.Envelope "InvalidInstant, OrderingViolation or ClockInMismatch"
// @Failure 404 {object} httpkit.Envelope "NoActiveRecord"
// @Failure 500 {object} httpkit.Envelope "External errors"
// @Router /sync-clock [post]
func (h *handlers) syncClock(r *stdhttp.Request, in domain.SyncInput) (any, error) {
	return h.svc.Sync(r.Context(), in)
}

// swagger:route GET /sync-events/{subjectId} ClockSync history
// @Summary Recent sync decisions for a subject
// @Tags clocksync
// @Produce json
// @Param subjectId path string true "Subject id"
// @Param limit query int false "Max events (default 50, max 500)"
// @Success 200 {array} domain.HistoryItem "ok"
// @Router /sync-events/{subjectId} [get]
func (h *handlers) history(r *stdhttp.Request) (any, error) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return h.svc.History(r.Context(), httpkit.URLParam(r, "subjectId"), limit)
}
