package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChatSift/Social/internal/application/eligibility"
	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
)

func newTestStore(t *testing.T) (*EligibilityStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return NewEligibilityStore(client), mr
}

func TestEligibilityStore_SortedSetOperations(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.ZAdd(ctx, "set", 300, "c"))
	require.NoError(t, store.ZAdd(ctx, "set", 100, "a"))
	require.NoError(t, store.ZAdd(ctx, "set", 200, "b"))

	entries, err := store.ZRangeByScoreWithScores(ctx, "set", 150, 300)
	require.NoError(t, err)
	assert.Equal(t, []eligibility.Entry{{Member: "b", Score: 200}, {Member: "c", Score: 300}}, entries)

	require.NoError(t, store.ZRemRangeByScore(ctx, "set", 0, 200))

	entries, err = store.ZRangeByScoreWithScores(ctx, "set", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, []eligibility.Entry{{Member: "c", Score: 300}}, entries)

	entries, err = store.ZRangeByScoreWithScores(ctx, "missing", 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEligibilityStore_TTLs(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	ttl, err := store.PTTL(ctx, "missing")
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0))

	require.NoError(t, store.SetPX(ctx, "marker", "true", 1500*time.Millisecond))
	ttl, err = store.PTTL(ctx, "marker")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, ttl)

	require.NoError(t, store.ZAdd(ctx, "set", 1, "a"))
	ttl, err = store.PTTL(ctx, "set")
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0), "keys without expiry must not read as a cooldown")

	require.NoError(t, store.Expire(ctx, "set", 65*time.Second))
	assert.Equal(t, 65*time.Second, mr.TTL("set"))

	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists("marker"))

	require.NoError(t, store.Del(ctx, "set"))
	assert.False(t, mr.Exists("set"))
	require.NoError(t, store.Del(ctx))
}

func TestEligibilityStore_DrivesTracker(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tracker := eligibility.NewTracker(store, shared.NewAsserter(true, nil), nil, eligibility.WithClock(clock))
	s := leveling.GuildSettings{
		GuildID:          "g1",
		RequiredMessages: 2,
		Timespan:         30 * time.Second,
		XPGain:           5,
		Formula:          leveling.Formula{Base: 10, Multiplier: 5},
	}

	ok, err := tracker.Admit(ctx, s, "g1", "u1", "m1", now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 35*time.Second, mr.TTL(eligibility.TrackingKey("g1", "u1")))

	now = now.Add(12 * time.Second)
	ok, err = tracker.Admit(ctx, s, "g1", "u1", "m2", now)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, mr.Exists(eligibility.TrackingKey("g1", "u1")))
	assert.Equal(t, 18*time.Second, mr.TTL(eligibility.IneligibleKey("g1", "u1")))

	ok, err = tracker.Admit(ctx, s, "g1", "u1", "m3", now)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(18 * time.Second)
	assert.False(t, mr.Exists(eligibility.IneligibleKey("g1", "u1")))
}
