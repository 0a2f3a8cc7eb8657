package permissions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/verenigingen/chapterkit/pkg/directory"
)

// Scopes is everything the permission layer knows about one user:
// their directory records and the chapter sets derived from board
// positions. A user with no member record still gets valid (empty)
// scopes; absence restricts, it never errors.
type Scopes struct {
	User              string           `json:"user"`
	Roles             []directory.Role `json:"roles"`
	MemberID          string           `json:"member_id,omitempty"`
	VolunteerID       string           `json:"volunteer_id,omitempty"`
	MemberChapters    []string         `json:"member_chapters,omitempty"`
	BoardChapters     []string         `json:"board_chapters,omitempty"`
	TreasurerChapters []string         `json:"treasurer_chapters,omitempty"`
	LeaderTeams       []string         `json:"leader_teams,omitempty"`
	NationalChapter   string           `json:"national_chapter,omitempty"`
	ResolvedAt        time.Time        `json:"resolved_at"`
}

// HasRole reports whether the user holds any of the given roles.
func (s *Scopes) HasRole(roles ...directory.Role) bool {
	for _, want := range roles {
		for _, have := range s.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports unrestricted member-data access.
func (s *Scopes) IsAdmin() bool {
	return s.HasRole(directory.AdminRoles()...)
}

// IsTerminationAdmin reports termination and expense administration.
func (s *Scopes) IsTerminationAdmin() bool {
	return s.HasRole(directory.TerminationAdminRoles()...)
}

// IsVolunteerAdmin reports unrestricted volunteer access.
func (s *Scopes) IsVolunteerAdmin() bool {
	return s.HasRole(directory.VolunteerAdminRoles()...)
}

// OnBoardOf reports an active board position in the chapter.
func (s *Scopes) OnBoardOf(chapterID string) bool {
	for _, c := range s.BoardChapters {
		if c == chapterID {
			return true
		}
	}
	return false
}

// TreasurerOf reports an active financial-level position in the
// chapter.
func (s *Scopes) TreasurerOf(chapterID string) bool {
	for _, c := range s.TreasurerChapters {
		if c == chapterID {
			return true
		}
	}
	return false
}

// OnNationalBoard reports a board position in the configured national
// chapter, which widens board access to all chapters.
func (s *Scopes) OnNationalBoard() bool {
	return s.NationalChapter != "" && s.OnBoardOf(s.NationalChapter)
}

// ScopeCache caches resolved scopes per user. Invalidation is global:
// role and board mutations are rare next to permission checks, and a
// stale per-user entry after another user's board change is the bug
// this avoids.
type ScopeCache interface {
	Get(ctx context.Context, user string) (*Scopes, bool)
	Set(ctx context.Context, user string, scopes *Scopes)
	InvalidateAll(ctx context.Context) error
}

// DefaultScopeTTL bounds staleness when invalidation is missed.
const DefaultScopeTTL = 5 * time.Minute

// LRUScopeCache is an in-process ScopeCache on an expiring LRU.
type LRUScopeCache struct {
	lru *expirable.LRU[string, *Scopes]
}

// NewLRUScopeCache creates a cache holding up to size entries for ttl.
func NewLRUScopeCache(size int, ttl time.Duration) *LRUScopeCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = DefaultScopeTTL
	}
	return &LRUScopeCache{lru: expirable.NewLRU[string, *Scopes](size, nil, ttl)}
}

func (c *LRUScopeCache) Get(_ context.Context, user string) (*Scopes, bool) {
	return c.lru.Get(user)
}

func (c *LRUScopeCache) Set(_ context.Context, user string, scopes *Scopes) {
	c.lru.Add(user, scopes)
}

func (c *LRUScopeCache) InvalidateAll(_ context.Context) error {
	c.lru.Purge()
	return nil
}

// Resolver loads scopes from the directory, through a cache.
type Resolver struct {
	store *directory.Store
	cache ScopeCache
}

// NewResolver creates a scope resolver. cache may be nil to disable
// caching.
func NewResolver(store *directory.Store, cache ScopeCache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// Resolve returns the scopes for a user, from cache when fresh. A
// blank identity resolves to empty scopes without touching the store:
// the contact-email fallback in MemberByUser would otherwise let an
// empty email claim an unlinked member record.
func (r *Resolver) Resolve(ctx context.Context, user string) (*Scopes, error) {
	if strings.TrimSpace(user) == "" {
		return &Scopes{User: user, ResolvedAt: time.Now().UTC()}, nil
	}
	if r.cache != nil {
		if s, ok := r.cache.Get(ctx, user); ok {
			return s, nil
		}
	}
	s, err := r.resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(ctx, user, s)
	}
	return s, nil
}

// Invalidate drops all cached scopes. Called after any role or board
// mutation.
func (r *Resolver) Invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.InvalidateAll(ctx)
}

func (r *Resolver) resolve(ctx context.Context, user string) (*Scopes, error) {
	s := &Scopes{User: user, ResolvedAt: time.Now().UTC()}

	roles, err := r.store.UserRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	s.Roles = roles

	national, err := r.store.Setting(ctx, directory.SettingNationalChapter)
	if err != nil {
		return nil, err
	}
	s.NationalChapter = national

	member, err := r.store.MemberByUser(ctx, user)
	if errors.Is(err, directory.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	s.MemberID = member.ID

	s.MemberChapters, err = r.store.MemberChapters(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	volunteer, err := r.store.VolunteerByMember(ctx, member.ID)
	if errors.Is(err, directory.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	s.VolunteerID = volunteer.ID

	s.BoardChapters, err = r.store.BoardChapters(ctx, volunteer.ID)
	if err != nil {
		return nil, err
	}
	s.TreasurerChapters, err = r.store.TreasurerChapters(ctx, volunteer.ID)
	if err != nil {
		return nil, err
	}
	s.LeaderTeams, err = r.store.LeaderTeams(ctx, volunteer.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}
