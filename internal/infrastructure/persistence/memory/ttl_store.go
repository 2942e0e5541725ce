// Package memory provides an in-process eligibility store for development
// setups that run without Redis. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ChatSift/Social/internal/application/eligibility"
)

// Values returned by PTTL, mirroring Redis.
const (
	ttlNoKey    = -2 * time.Millisecond
	ttlNoExpiry = -1 * time.Millisecond
)

type item struct {
	value    string
	set      map[string]int64 // member -> score
	expireAt time.Time        // zero means no expiry
}

// TTLStore is a mutex-guarded map with lazy expiry.
type TTLStore struct {
	mu    sync.Mutex
	items map[string]*item
	now   func() time.Time
}

var _ eligibility.Store = (*TTLStore)(nil)

// NewTTLStore creates an empty store. A nil clock uses time.Now.
func NewTTLStore(now func() time.Time) *TTLStore {
	if now == nil {
		now = time.Now
	}
	return &TTLStore{items: make(map[string]*item), now: now}
}

// get returns the live item at key, evicting it if expired. Callers hold mu.
func (s *TTLStore) get(key string) *item {
	it, ok := s.items[key]
	if !ok {
		return nil
	}
	if !it.expireAt.IsZero() && !s.now().Before(it.expireAt) {
		delete(s.items, key)
		return nil
	}
	return it
}

// ZAdd implements eligibility.Store.
func (s *TTLStore) ZAdd(_ context.Context, key string, score int64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.get(key)
	if it == nil {
		it = &item{}
		s.items[key] = it
	}
	if it.set == nil {
		it.set = make(map[string]int64)
	}
	it.set[member] = score
	return nil
}

// Expire implements eligibility.Store.
func (s *TTLStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it := s.get(key); it != nil {
		it.expireAt = s.now().Add(ttl)
	}
	return nil
}

// ZRemRangeByScore implements eligibility.Store.
func (s *TTLStore) ZRemRangeByScore(_ context.Context, key string, min, max int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.get(key)
	if it == nil {
		return nil
	}
	for member, score := range it.set {
		if score >= min && score <= max {
			delete(it.set, member)
		}
	}
	if len(it.set) == 0 {
		delete(s.items, key)
	}
	return nil
}

// ZRangeByScoreWithScores implements eligibility.Store.
func (s *TTLStore) ZRangeByScoreWithScores(_ context.Context, key string, min, max int64) ([]eligibility.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.get(key)
	if it == nil {
		return nil, nil
	}
	entries := make([]eligibility.Entry, 0, len(it.set))
	for member, score := range it.set {
		if score >= min && score <= max {
			entries = append(entries, eligibility.Entry{Member: member, Score: score})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	return entries, nil
}

// PTTL implements eligibility.Store.
func (s *TTLStore) PTTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.get(key)
	switch {
	case it == nil:
		return ttlNoKey, nil
	case it.expireAt.IsZero():
		return ttlNoExpiry, nil
	default:
		return it.expireAt.Sub(s.now()).Truncate(time.Millisecond), nil
	}
}

// SetPX implements eligibility.Store.
func (s *TTLStore) SetPX(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = &item{value: value, expireAt: s.now().Add(ttl)}
	return nil
}

// Del implements eligibility.Store.
func (s *TTLStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

// Len returns the number of live keys.
func (s *TTLStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.items {
		if s.get(key) != nil {
			n++
		}
	}
	return n
}
