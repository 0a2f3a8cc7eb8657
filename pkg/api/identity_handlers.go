package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/httputil"
	"github.com/verenigingen/chapterkit/pkg/permissions"
)

// IdentityHandlers exposes per-user introspection: resolved scopes,
// board positions, list filter previews and record-level checks.
type IdentityHandlers struct {
	store     *directory.Store
	resolver  *permissions.Resolver
	builder   *permissions.QueryBuilder
	evaluator *permissions.Evaluator
}

// NewIdentityHandlers creates a new identity handlers instance
func NewIdentityHandlers(store *directory.Store, resolver *permissions.Resolver, builder *permissions.QueryBuilder, evaluator *permissions.Evaluator) *IdentityHandlers {
	return &IdentityHandlers{
		store:     store,
		resolver:  resolver,
		builder:   builder,
		evaluator: evaluator,
	}
}

// RegisterRoutes registers identity introspection routes
func (h *IdentityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/identities/{user}", h.getIdentity).Methods("GET")
	router.HandleFunc("/identities/{user}/filters/{record}", h.getFilter).Methods("GET")
	router.HandleFunc("/identities/{user}/checks", h.runCheck).Methods("POST")
}

// getIdentity handles GET /identities/{user}
func (h *IdentityHandlers) getIdentity(w http.ResponseWriter, r *http.Request) {
	user, ok := httputil.ParsePathStringOrError(w, r, "user")
	if !ok {
		return
	}

	exists, err := h.store.UserExists(r.Context(), user)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !exists {
		httputil.WriteNotFound(w, "unknown user: "+user)
		return
	}

	scopes, err := h.resolver.Resolve(r.Context(), user)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	response := struct {
		Scopes         *permissions.Scopes               `json:"scopes"`
		BoardPositions []directory.BoardPositionSummary `json:"board_positions,omitempty"`
	}{Scopes: scopes}

	if scopes.VolunteerID != "" {
		positions, err := h.store.BoardPositions(r.Context(), scopes.VolunteerID)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		response.BoardPositions = positions
	}

	httputil.WriteSuccess(w, response)
}

// getFilter handles GET /identities/{user}/filters/{record}
func (h *IdentityHandlers) getFilter(w http.ResponseWriter, r *http.Request) {
	user, ok := httputil.ParsePathStringOrError(w, r, "user")
	if !ok {
		return
	}
	record, ok := httputil.ParsePathStringOrError(w, r, "record")
	if !ok {
		return
	}

	build, ok := h.filterBuilder(record)
	if !ok {
		httputil.WriteBadRequest(w, "unknown record type: "+record)
		return
	}

	filter, err := build(r.Context(), user)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	response := struct {
		Record       string        `json:"record"`
		Expr         string        `json:"expr"`
		Args         []interface{} `json:"args,omitempty"`
		Unrestricted bool          `json:"unrestricted"`
		DenyAll      bool          `json:"deny_all"`
	}{
		Record:       record,
		Expr:         filter.Expr,
		Args:         filter.Args,
		Unrestricted: filter.IsUnrestricted(),
		DenyAll:      filter.IsDenyAll(),
	}
	httputil.WriteSuccess(w, response)
}

func (h *IdentityHandlers) filterBuilder(record string) (func(context.Context, string) (permissions.Filter, error), bool) {
	switch record {
	case "member":
		return h.builder.ForMember, true
	case "membership":
		return h.builder.ForMembership, true
	case "chapter_member":
		return h.builder.ForChapterMember, true
	case "volunteer":
		return h.builder.ForVolunteer, true
	case "termination":
		return h.builder.ForTermination, true
	case "address":
		return h.builder.ForAddress, true
	case "donor":
		return h.builder.ForDonor, true
	case "volunteer_expense":
		return h.builder.ForVolunteerExpense, true
	case "team_member":
		return h.builder.ForTeamMember, true
	}
	return nil, false
}

// CheckRequest asks whether a user may perform one operation on one
// record.
type CheckRequest struct {
	Operation string `json:"operation"`
	MemberID  string `json:"member_id,omitempty"`
	ExpenseID string `json:"expense_id,omitempty"`
}

// runCheck handles POST /identities/{user}/checks
func (h *IdentityHandlers) runCheck(w http.ResponseWriter, r *http.Request) {
	user, ok := httputil.ParsePathStringOrError(w, r, "user")
	if !ok {
		return
	}

	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	allowed, err := h.evaluate(r.Context(), user, req)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user":      user,
		"operation": req.Operation,
		"allowed":   allowed,
	})
}

func (h *IdentityHandlers) evaluate(ctx context.Context, user string, req CheckRequest) (bool, error) {
	switch req.Operation {
	case "approve_expense":
		if req.ExpenseID == "" {
			return false, errors.New("expense_id is required for approve_expense")
		}
		return h.evaluator.CanApproveExpense(ctx, user, permissions.ExpenseID(req.ExpenseID)), nil
	case "terminate_member":
		if req.MemberID == "" {
			return false, errors.New("member_id is required for terminate_member")
		}
		return h.evaluator.CanTerminateMember(ctx, user, permissions.MemberID(req.MemberID)), nil
	case "termination_functions":
		return h.evaluator.CanAccessTerminationFunctions(ctx, user), nil
	case "view_member_payments":
		if req.MemberID == "" {
			return false, errors.New("member_id is required for view_member_payments")
		}
		return h.evaluator.CanViewMemberPayments(ctx, user, permissions.MemberID(req.MemberID)), nil
	}
	return false, errors.New("unknown operation: " + req.Operation)
}
