// Package cache provides read-through caches in front of the leveling
// repositories. Every message hits guild settings, so they are kept in
// process for a short TTL.
package cache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/ChatSift/Social/internal/domain/leveling"
)

// cachedSettings holds a settings row, or records that the guild has none.
type cachedSettings struct {
	record    *leveling.SettingsRecord
	notFound  bool
	timestamp time.Time
}

// SettingsCache wraps a leveling.SettingsRepository with an LRU cache.
// Concurrent misses for the same guild share one repository call.
type SettingsCache struct {
	next  leveling.SettingsRepository
	cache *lru.Cache
	group singleflight.Group
	ttl   time.Duration
	now   func() time.Time
}

var _ leveling.SettingsRepository = (*SettingsCache)(nil)

// NewSettingsCache creates a cache holding up to size guilds for ttl.
func NewSettingsCache(next leveling.SettingsRepository, size int, ttl time.Duration) (*SettingsCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &SettingsCache{
		next:  next,
		cache: c,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Get implements leveling.SettingsRepository.
func (c *SettingsCache) Get(ctx context.Context, guildID string) (*leveling.SettingsRecord, error) {
	if v, ok := c.cache.Get(guildID); ok {
		if entry, ok := v.(cachedSettings); ok && c.now().Sub(entry.timestamp) < c.ttl {
			return entry.result()
		}
	}

	v, err, _ := c.group.Do(guildID, func() (interface{}, error) {
		rec, err := c.next.Get(ctx, guildID)
		switch {
		case errors.Is(err, leveling.ErrSettingsNotFound):
			entry := cachedSettings{notFound: true, timestamp: c.now()}
			c.cache.Add(guildID, entry)
			return entry, nil
		case err != nil:
			return nil, err
		}
		entry := cachedSettings{record: rec, timestamp: c.now()}
		c.cache.Add(guildID, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(cachedSettings).result()
}

// ClearFallbackChannel implements leveling.SettingsRepository and drops the
// cached entry so the next read sees the change.
func (c *SettingsCache) ClearFallbackChannel(ctx context.Context, guildID string) error {
	defer c.Invalidate(guildID)
	return c.next.ClearFallbackChannel(ctx, guildID)
}

// Invalidate drops the cached settings of a guild.
func (c *SettingsCache) Invalidate(guildID string) {
	c.cache.Remove(guildID)
}

func (e cachedSettings) result() (*leveling.SettingsRecord, error) {
	if e.notFound {
		return nil, leveling.ErrSettingsNotFound
	}
	rec := *e.record
	return &rec, nil
}
