package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verenigingen/chapterkit/pkg/httputil"
	"github.com/verenigingen/chapterkit/pkg/observability"
	"github.com/verenigingen/chapterkit/pkg/rolesync"
)

// SyncHandlers exposes the role synchronization triggers. Directory
// mutations normally arrive as events from the association system;
// these endpoints let operators replay them and force full resyncs.
type SyncHandlers struct {
	syncer *rolesync.Syncer
	logger *observability.Logger
}

// NewSyncHandlers creates a new sync handlers instance
func NewSyncHandlers(syncer *rolesync.Syncer, logger *observability.Logger) *SyncHandlers {
	return &SyncHandlers{syncer: syncer, logger: logger}
}

// RegisterRoutes registers role synchronization routes
func (h *SyncHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sync", h.syncAll).Methods("POST")
	router.HandleFunc("/sync/identities/{user}", h.syncIdentity).Methods("POST")
	router.HandleFunc("/events/board-position-changed", h.boardPositionChanged).Methods("POST")
	router.HandleFunc("/events/volunteer-relinked", h.volunteerRelinked).Methods("POST")
	router.HandleFunc("/events/member-relinked", h.memberRelinked).Methods("POST")
	router.HandleFunc("/events/chapter-role-changed", h.chapterRoleChanged).Methods("POST")
}

// syncAll handles POST /sync
func (h *SyncHandlers) syncAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.syncer.SyncAll(r.Context())
	if err != nil {
		h.logger.FromContext(r.Context()).WithError(err).Error("bulk role sync failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// syncIdentity handles POST /sync/identities/{user}
func (h *SyncHandlers) syncIdentity(w http.ResponseWriter, r *http.Request) {
	user, ok := httputil.ParsePathStringOrError(w, r, "user")
	if !ok {
		return
	}

	result, err := h.syncer.SyncIdentity(r.Context(), user)
	if err != nil {
		if errors.Is(err, rolesync.ErrUnknownIdentity) || errors.Is(err, rolesync.ErrNoMemberRecord) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// boardPositionChanged handles POST /events/board-position-changed
func (h *SyncHandlers) boardPositionChanged(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VolunteerID string `json:"volunteer_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.VolunteerID, "volunteer_id") {
		return
	}

	result, err := h.syncer.BoardPositionChanged(r.Context(), req.VolunteerID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// volunteerRelinked handles POST /events/volunteer-relinked. The body
// carries both sides of the link move; old_member_id may be empty for
// an initial link, new_member_id for an unlink.
func (h *SyncHandlers) volunteerRelinked(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldMemberID string `json:"old_member_id"`
		NewMemberID string `json:"new_member_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.OldMemberID == "" && req.NewMemberID == "" {
		httputil.WriteBadRequest(w, "one of old_member_id or new_member_id is required")
		return
	}

	result, err := h.syncer.VolunteerRelinked(r.Context(), req.OldMemberID, req.NewMemberID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// memberRelinked handles POST /events/member-relinked. The body carries
// both account emails; old_user may be empty for an initial link,
// new_user for an unlink.
func (h *SyncHandlers) memberRelinked(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldUser string `json:"old_user"`
		NewUser string `json:"new_user"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.OldUser == "" && req.NewUser == "" {
		httputil.WriteBadRequest(w, "one of old_user or new_user is required")
		return
	}

	result, err := h.syncer.MemberRelinked(r.Context(), req.OldUser, req.NewUser)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// chapterRoleChanged handles POST /events/chapter-role-changed
func (h *SyncHandlers) chapterRoleChanged(w http.ResponseWriter, r *http.Request) {
	summary, err := h.syncer.ChapterRoleChanged(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}
