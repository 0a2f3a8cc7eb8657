package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/verenigingen/chapterkit/pkg/audit"
	"github.com/verenigingen/chapterkit/pkg/httputil"
)

// AuditHandlers exposes the audit trail search
type AuditHandlers struct {
	auditLog audit.Logger
}

// NewAuditHandlers creates a new audit handlers instance
func NewAuditHandlers(auditLog audit.Logger) *AuditHandlers {
	return &AuditHandlers{auditLog: auditLog}
}

// RegisterRoutes registers audit trail routes
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/events", h.search).Methods("GET")
}

// search handles GET /audit/events
func (h *AuditHandlers) search(w http.ResponseWriter, r *http.Request) {
	filter := audit.SearchFilter{
		Actor:   httputil.ParseQueryString(r, "actor", ""),
		Subject: httputil.ParseQueryString(r, "subject", ""),
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.Limit = limit

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.Offset = offset

	if raw := httputil.ParseQueryString(r, "event_type", ""); raw != "" {
		filter.EventTypes = []audit.EventType{audit.EventType(raw)}
	}
	if raw := httputil.ParseQueryString(r, "status", ""); raw != "" {
		status := audit.EventStatus(raw)
		filter.Status = &status
	}
	if raw := httputil.ParseQueryString(r, "since", ""); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid since timestamp: "+raw)
			return
		}
		filter.StartTime = &since
	}
	if raw := httputil.ParseQueryString(r, "until", ""); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid until timestamp: "+raw)
			return
		}
		filter.EndTime = &until
	}

	events, err := h.auditLog.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
