// Package rolesync keeps the derived Chapter Board Member role in step
// with board positions. The role is never authoritative: every trigger
// re-derives it from the directory and converges, so repeated or
// out-of-order events are harmless.
package rolesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verenigingen/chapterkit/pkg/audit"
	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/observability"
)

// DerivedRole is the role label this package owns.
const DerivedRole = directory.RoleChapterBoardMember

var (
	// ErrUnknownIdentity is returned when no user account exists for
	// the email.
	ErrUnknownIdentity = errors.New("rolesync: unknown identity")

	// ErrNoMemberRecord is returned when the user has no member
	// record to derive board state from.
	ErrNoMemberRecord = errors.New("rolesync: no member record")
)

// Invalidator drops cached permission scopes after a role mutation.
// *permissions.Resolver satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Result reports one identity's synchronization outcome.
type Result struct {
	User     string `json:"user"`
	Assigned bool   `json:"assigned"`
	Changed  bool   `json:"changed"`
}

// Summary reports a bulk synchronization run.
type Summary struct {
	Total    int      `json:"total"`
	Assigned int      `json:"assigned"`
	Removed  int      `json:"removed"`
	Failed   []string `json:"failed,omitempty"`
}

// Syncer re-derives the board role for identities.
type Syncer struct {
	store       *directory.Store
	invalidator Invalidator
	auditLog    audit.Logger
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewSyncer creates a syncer. invalidator, auditLog and metrics may be
// nil.
func NewSyncer(store *directory.Store, invalidator Invalidator, auditLog audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *Syncer {
	if auditLog == nil {
		auditLog = audit.NopLogger()
	}
	return &Syncer{
		store:       store,
		invalidator: invalidator,
		auditLog:    auditLog,
		logger:      logger,
		metrics:     metrics,
	}
}

// SyncIdentity re-derives the role for one user. It refuses unknown
// identities and users without a member record; both refusals are
// audited.
func (s *Syncer) SyncIdentity(ctx context.Context, user string) (Result, error) {
	return s.syncIdentity(ctx, "identity", user)
}

func (s *Syncer) syncIdentity(ctx context.Context, trigger, user string) (Result, error) {
	start := time.Now()
	res, err := s.derive(ctx, user)
	if s.metrics != nil {
		s.metrics.SyncRun(trigger, err, time.Since(start))
	}
	return res, err
}

func (s *Syncer) derive(ctx context.Context, user string) (Result, error) {
	res := Result{User: user}
	if user == "" {
		return res, ErrUnknownIdentity
	}

	exists, err := s.store.UserExists(ctx, user)
	if err != nil {
		return res, err
	}
	if !exists {
		s.refuse(ctx, user, "no user account")
		return res, fmt.Errorf("%w: %s", ErrUnknownIdentity, user)
	}

	member, err := s.store.MemberByUser(ctx, user)
	if errors.Is(err, directory.ErrNotFound) {
		s.refuse(ctx, user, "no member record")
		return res, fmt.Errorf("%w: %s", ErrNoMemberRecord, user)
	}
	if err != nil {
		return res, err
	}

	shouldHold := false
	volunteer, err := s.store.VolunteerByMember(ctx, member.ID)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return res, err
	}
	if err == nil {
		shouldHold, err = s.store.HasActiveBoardPosition(ctx, volunteer.ID)
		if err != nil {
			return res, err
		}
	}

	holds, err := s.store.HasRole(ctx, user, DerivedRole)
	if err != nil {
		return res, err
	}

	res.Assigned = shouldHold
	if holds == shouldHold {
		return res, nil
	}
	res.Changed = true

	if shouldHold {
		if err := s.store.AddUserRole(ctx, user, DerivedRole); err != nil {
			return res, err
		}
		if s.metrics != nil {
			s.metrics.RolesAssignedTotal.Inc()
		}
		s.record(ctx, audit.EventTypeRoleAssigned, user, "active board position")
	} else {
		if err := s.store.RemoveUserRole(ctx, user, DerivedRole); err != nil {
			return res, err
		}
		if s.metrics != nil {
			s.metrics.RolesRemovedTotal.Inc()
		}
		s.record(ctx, audit.EventTypeRoleRemoved, user, "no active board position")
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Warn("scope cache invalidation failed after role change")
		}
	}
	return res, nil
}

func (s *Syncer) refuse(ctx context.Context, user, reason string) {
	s.logger.WithField("user", user).WithField("reason", reason).Warn("role sync refused")
	if err := s.auditLog.LogDenied(ctx, audit.EventTypeSyncRefused, user, string(DerivedRole), reason); err != nil {
		s.logger.WithError(err).Error("failed to audit sync refusal")
	}
}

func (s *Syncer) record(ctx context.Context, eventType audit.EventType, user, reason string) {
	s.logger.WithField("user", user).WithField("event", string(eventType)).Info("derived role updated")
	if err := s.auditLog.LogRoleChange(ctx, eventType, user, string(DerivedRole), reason); err != nil {
		s.logger.WithError(err).Error("failed to audit role change")
	}
}

// BoardPositionChanged handles a board position being created, updated
// or removed. Scopes are invalidated even when the role is unchanged,
// since chapter sets may have shifted.
func (s *Syncer) BoardPositionChanged(ctx context.Context, volunteerID string) (Result, error) {
	defer s.invalidate(ctx)
	user, err := s.userForVolunteer(ctx, volunteerID)
	if err != nil {
		return Result{}, err
	}
	if user == "" {
		// Position held by a volunteer without a login; nothing to
		// derive.
		return Result{}, nil
	}
	return s.syncIdentity(ctx, "board_position", user)
}

// VolunteerRelinked handles a volunteer's member link moving between
// members. Both sides are re-derived: the identity behind the old
// member loses the board state it no longer backs before the new one
// gains it. Pass an empty id for an initial link or an unlink.
func (s *Syncer) VolunteerRelinked(ctx context.Context, oldMemberID, newMemberID string) (Result, error) {
	defer s.invalidate(ctx)
	oldUser, err := s.userForMember(ctx, oldMemberID)
	if err != nil {
		return Result{}, err
	}
	newUser, err := s.userForMember(ctx, newMemberID)
	if err != nil {
		return Result{}, err
	}
	return s.syncRelink(ctx, "volunteer", oldUser, newUser)
}

// MemberRelinked handles a member's user link moving between accounts.
// Both accounts are re-derived. Pass an empty email for an initial
// link or an unlink.
func (s *Syncer) MemberRelinked(ctx context.Context, oldUser, newUser string) (Result, error) {
	defer s.invalidate(ctx)
	return s.syncRelink(ctx, "member", oldUser, newUser)
}

// syncRelink re-derives both sides of a link move and returns the new
// side's result. The old identity often has nothing left to derive
// from; a stale derived role is then removed directly rather than kept
// behind the refusal.
func (s *Syncer) syncRelink(ctx context.Context, trigger, oldUser, newUser string) (Result, error) {
	if oldUser != "" && oldUser != newUser {
		if err := s.retireIdentity(ctx, trigger, oldUser); err != nil {
			return Result{}, err
		}
	}
	if newUser == "" {
		return Result{}, nil
	}
	return s.syncIdentity(ctx, trigger, newUser)
}

// retireIdentity re-derives the losing side of a link move. An account
// left without a member record cannot back the role any longer, so the
// refusal is followed by a direct removal.
func (s *Syncer) retireIdentity(ctx context.Context, trigger, user string) error {
	_, err := s.syncIdentity(ctx, trigger, user)
	if err == nil || errors.Is(err, ErrUnknownIdentity) {
		return nil
	}
	if !errors.Is(err, ErrNoMemberRecord) {
		return err
	}

	holds, err := s.store.HasRole(ctx, user, DerivedRole)
	if err != nil {
		return err
	}
	if !holds {
		return nil
	}
	if err := s.store.RemoveUserRole(ctx, user, DerivedRole); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RolesRemovedTotal.Inc()
	}
	s.record(ctx, audit.EventTypeRoleRemoved, user, "member link moved away")
	return nil
}

// ChapterRoleChanged handles a role definition changing, which can
// flip treasurer access for every holder; the whole population is
// re-derived.
func (s *Syncer) ChapterRoleChanged(ctx context.Context) (Summary, error) {
	return s.syncAll(ctx, "chapter_role")
}

// SyncAll re-derives the role for every identity that either holds it
// or should. Used by the nightly reconciliation job.
func (s *Syncer) SyncAll(ctx context.Context) (Summary, error) {
	return s.syncAll(ctx, "bulk")
}

func (s *Syncer) syncAll(ctx context.Context, trigger string) (Summary, error) {
	start := time.Now()
	var sum Summary

	holders, err := s.store.UsersWithRole(ctx, DerivedRole)
	if err != nil {
		return sum, err
	}
	boardUsers, err := s.store.ActiveBoardUsers(ctx)
	if err != nil {
		return sum, err
	}

	seen := make(map[string]bool, len(holders)+len(boardUsers))
	candidates := make([]string, 0, len(holders)+len(boardUsers))
	for _, u := range append(holders, boardUsers...) {
		if !seen[u] {
			seen[u] = true
			candidates = append(candidates, u)
		}
	}

	for _, user := range candidates {
		res, err := s.derive(ctx, user)
		if err != nil {
			sum.Failed = append(sum.Failed, user)
			s.logger.WithError(err).WithField("user", user).Error("bulk role sync failed for identity")
			continue
		}
		sum.Total++
		if res.Changed {
			if res.Assigned {
				sum.Assigned++
			} else {
				sum.Removed++
			}
		}
	}

	if err := s.auditLog.Log(ctx, &audit.Event{
		EventType: audit.EventTypeBulkSync,
		Status:    audit.EventStatusSuccess,
		Message:   fmt.Sprintf("synchronized %d identities", sum.Total),
		Details: map[string]interface{}{
			"total":    sum.Total,
			"assigned": sum.Assigned,
			"removed":  sum.Removed,
			"failed":   len(sum.Failed),
		},
	}); err != nil {
		s.logger.WithError(err).Error("failed to audit bulk sync")
	}
	if s.metrics != nil {
		s.metrics.SyncRun(trigger, nil, time.Since(start))
	}
	return sum, nil
}

func (s *Syncer) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("scope cache invalidation failed")
	}
}

func (s *Syncer) userForVolunteer(ctx context.Context, volunteerID string) (string, error) {
	volunteer, err := s.store.VolunteerByID(ctx, volunteerID)
	if errors.Is(err, directory.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if volunteer.MemberID == nil {
		return "", nil
	}
	return s.userForMember(ctx, *volunteer.MemberID)
}

func (s *Syncer) userForMember(ctx context.Context, memberID string) (string, error) {
	if memberID == "" {
		return "", nil
	}
	member, err := s.store.MemberByID(ctx, memberID)
	if errors.Is(err, directory.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if member.UserEmail == nil {
		return "", nil
	}
	return *member.UserEmail, nil
}
