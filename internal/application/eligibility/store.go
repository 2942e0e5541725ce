// Package eligibility decides whether an activity event counts toward XP
// gain. It keeps a rolling window of recent events and a cooldown marker
// per member in a TTL-capable key-value store.
package eligibility

import (
	"context"
	"fmt"
	"time"
)

// Entry is one member of an ordered set.
type Entry struct {
	Member string
	Score  int64
}

// Store is the subset of a Redis-like key-value store the tracker needs.
// Operations are independent; no transaction spans several of them.
type Store interface {
	// ZAdd adds member with score to the ordered set at key.
	ZAdd(ctx context.Context, key string, score int64, member string) error

	// Expire sets the TTL of key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// ZRemRangeByScore removes members with min <= score <= max.
	ZRemRangeByScore(ctx context.Context, key string, min, max int64) error

	// ZRangeByScoreWithScores returns members with min <= score <= max in
	// ascending score order.
	ZRangeByScoreWithScores(ctx context.Context, key string, min, max int64) ([]Entry, error)

	// PTTL returns the remaining TTL of key. The result is negative when the
	// key does not exist or has no expiry.
	PTTL(ctx context.Context, key string) (time.Duration, error)

	// SetPX stores value at key with the given TTL.
	SetPX(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes keys.
	Del(ctx context.Context, keys ...string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

// IneligibleKey is the cooldown marker of a member.
func IneligibleKey(guildID, userID string) string {
	return fmt.Sprintf("leveling_ineligible:%s:%s", guildID, userID)
}

// TrackingKey is the ordered set of recent events of a member.
func TrackingKey(guildID, userID string) string {
	return fmt.Sprintf("leveling_tracking:%s:%s", guildID, userID)
}
