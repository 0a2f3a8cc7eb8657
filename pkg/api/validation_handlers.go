package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verenigingen/chapterkit/pkg/httputil"
	"github.com/verenigingen/chapterkit/pkg/observability"
	"github.com/verenigingen/chapterkit/pkg/secaudit"
)

// ValidationHandlers exposes on-demand security validation runs
type ValidationHandlers struct {
	validator *secaudit.Validator
	logger    *observability.Logger
}

// NewValidationHandlers creates a new validation handlers instance
func NewValidationHandlers(validator *secaudit.Validator, logger *observability.Logger) *ValidationHandlers {
	return &ValidationHandlers{validator: validator, logger: logger}
}

// RegisterRoutes registers validation routes
func (h *ValidationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/validation/run", h.run).Methods("POST")
}

// run handles POST /validation/run
func (h *ValidationHandlers) run(w http.ResponseWriter, r *http.Request) {
	report := h.validator.Run(r.Context())
	h.logger.FromContext(r.Context()).
		WithField("run_id", report.ID).
		WithField("overall", string(report.Overall())).
		Info("validation run requested")

	response := struct {
		*secaudit.Report
		Overall secaudit.Overall `json:"overall"`
	}{
		Report:  report,
		Overall: report.Overall(),
	}

	// A critical verdict still returns 200: the run itself succeeded,
	// the payload carries the verdict.
	httputil.WriteSuccess(w, response)
}
