package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verenigingen/chapterkit/pkg/directory"
)

func newTestRedisCache(t *testing.T) *RedisScopeCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisScopeCache(client, time.Minute)
}

func TestRedisScopeCache(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	scopes := &Scopes{
		User:          "board@example.org",
		Roles:         []directory.Role{directory.RoleChapterBoardMember},
		MemberID:      "MEM-1",
		VolunteerID:   "VOL-1",
		BoardChapters: []string{"CH-NORTH"},
		ResolvedAt:    time.Now().UTC().Truncate(time.Second),
	}

	t.Run("miss before set", func(t *testing.T) {
		_, ok := cache.Get(ctx, "board@example.org")
		assert.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		cache.Set(ctx, "board@example.org", scopes)
		got, ok := cache.Get(ctx, "board@example.org")
		require.True(t, ok)
		assert.Equal(t, scopes.MemberID, got.MemberID)
		assert.Equal(t, scopes.BoardChapters, got.BoardChapters)
		assert.Equal(t, scopes.Roles, got.Roles)
	})

	t.Run("generation bump orphans entries", func(t *testing.T) {
		cache.Set(ctx, "board@example.org", scopes)
		require.NoError(t, cache.InvalidateAll(ctx))
		_, ok := cache.Get(ctx, "board@example.org")
		assert.False(t, ok)
	})

	t.Run("set after bump lands in new generation", func(t *testing.T) {
		cache.Set(ctx, "board@example.org", scopes)
		got, ok := cache.Get(ctx, "board@example.org")
		require.True(t, ok)
		assert.Equal(t, "board@example.org", got.User)
	})
}

func TestLRUScopeCache(t *testing.T) {
	cache := NewLRUScopeCache(4, time.Minute)
	ctx := context.Background()

	scopes := &Scopes{User: "a@example.org", MemberID: "MEM-A"}
	cache.Set(ctx, "a@example.org", scopes)

	got, ok := cache.Get(ctx, "a@example.org")
	require.True(t, ok)
	assert.Equal(t, "MEM-A", got.MemberID)

	require.NoError(t, cache.InvalidateAll(ctx))
	_, ok = cache.Get(ctx, "a@example.org")
	assert.False(t, ok)
}

func TestResolveBlankIdentity(t *testing.T) {
	db := directory.OpenTestDB(t)
	store := directory.NewStore(db)
	// An unlinked member with an empty contact email is exactly what a
	// blank identity would match through the email fallback.
	directory.SeedMember(t, db, "MEM-UNLINKED", "")
	resolver := NewResolver(store, NewLRUScopeCache(16, time.Minute))

	for _, user := range []string{"", "   "} {
		s, err := resolver.Resolve(context.Background(), user)
		require.NoError(t, err)
		assert.Empty(t, s.MemberID, "blank identity %q must not claim a member", user)
		assert.Empty(t, s.Roles)
		assert.Empty(t, s.BoardChapters)
	}
}

func TestResolverUsesCache(t *testing.T) {
	db := directory.OpenTestDB(t)
	store := directory.SeedBoardScenario(t, db, "board@example.org", "MEM-1", "VOL-1", "CH-NORTH", "ROLE-CHAIR", directory.LevelBasic)
	resolver := NewResolver(store, NewLRUScopeCache(16, time.Minute))
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "board@example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"CH-NORTH"}, first.BoardChapters)

	// A board change is invisible until invalidation.
	directory.SeedChapter(t, db, "CH-SOUTH")
	directory.SeedBoardPosition(t, db, "CH-SOUTH", "VOL-1", "ROLE-CHAIR", true, nil)

	cached, err := resolver.Resolve(ctx, "board@example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"CH-NORTH"}, cached.BoardChapters)

	require.NoError(t, resolver.Invalidate(ctx))
	fresh, err := resolver.Resolve(ctx, "board@example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"CH-NORTH", "CH-SOUTH"}, fresh.BoardChapters)
}
