package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ChatSift/Social/internal/application/eligibility"
)

// EligibilityStore implements eligibility.Store with plain Redis commands.
// Each method is a single round trip; no MULTI/EXEC is used.
type EligibilityStore struct {
	rdb redis.Cmdable
}

var _ eligibility.Store = (*EligibilityStore)(nil)

// NewEligibilityStore creates a store on top of client.
func NewEligibilityStore(client *Client) *EligibilityStore {
	return &EligibilityStore{rdb: client.rdb}
}

// ZAdd implements eligibility.Store.
func (s *EligibilityStore) ZAdd(ctx context.Context, key string, score int64, member string) error {
	return s.rdb.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member}).Err()
}

// Expire implements eligibility.Store.
func (s *EligibilityStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

// ZRemRangeByScore implements eligibility.Store.
func (s *EligibilityStore) ZRemRangeByScore(ctx context.Context, key string, min, max int64) error {
	return s.rdb.ZRemRangeByScore(ctx, key, strconv.FormatInt(min, 10), strconv.FormatInt(max, 10)).Err()
}

// ZRangeByScoreWithScores implements eligibility.Store.
func (s *EligibilityStore) ZRangeByScoreWithScores(ctx context.Context, key string, min, max int64) ([]eligibility.Entry, error) {
	zs, err := s.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(min, 10),
		Max: strconv.FormatInt(max, 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]eligibility.Entry, 0, len(zs))
	for _, z := range zs {
		entries = append(entries, eligibility.Entry{
			Member: fmt.Sprint(z.Member),
			Score:  int64(z.Score),
		})
	}
	return entries, nil
}

// PTTL implements eligibility.Store. go-redis reports a missing key as -2
// and a key without expiry as -1, both negative as the port requires.
func (s *EligibilityStore) PTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.rdb.PTTL(ctx, key).Result()
}

// SetPX implements eligibility.Store.
func (s *EligibilityStore) SetPX(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Del implements eligibility.Store.
func (s *EligibilityStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}
