package payouts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
)

// =============================================================================
// HISTORY CACHE - Memoized roll-ups
// =============================================================================

// HistoryCache stores computed histories. Histories are pure functions of
// their inputs, so an entry is valid as long as the key matches; the TTL
// bounds how long newly recorded lessons can go unseen.
type HistoryCache interface {
	// Get returns generic.ErrCacheMiss when no live entry exists.
	Get(ctx context.Context, key HistoryKey) ([]rewards.MonthlyStats, error)
	Set(ctx context.Context, key HistoryKey, history []rewards.MonthlyStats, ttl time.Duration) error
}

// HistoryKey identifies one history computation. The reference month is
// part of the key, so a new month never reads the previous month's entry.
type HistoryKey struct {
	CoachID        generic.CoachID
	ReferenceMonth generic.MonthKey
	MonthsBack     int
	PolicyVersion  string

	// Coach settings that change the result.
	CreatedMonth generic.MonthKey
	OverrideRate string
}

func (k HistoryKey) String() string {
	return fmt.Sprintf("history:%s:%s:%d:%s:%s:%s",
		k.CoachID, k.ReferenceMonth, k.MonthsBack, k.PolicyVersion, k.CreatedMonth, k.OverrideRate)
}

// =============================================================================
// MEMORY CACHE
// =============================================================================

type memoryEntry struct {
	history   []rewards.MonthlyStats
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is an in-process HistoryCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   generic.Clock
}

func NewMemoryCache(clock generic.Clock) *MemoryCache {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), clock: clock}
}

func (c *MemoryCache) Get(_ context.Context, key HistoryKey) ([]rewards.MonthlyStats, error) {
	k := key.String()
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok {
		return nil, generic.ErrCacheMiss
	}
	if e.expired(c.clock.Now()) {
		c.mu.Lock()
		if cur, ok := c.entries[k]; ok && cur.expired(c.clock.Now()) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return nil, generic.ErrCacheMiss
	}
	return append([]rewards.MonthlyStats(nil), e.history...), nil
}

func (c *MemoryCache) Set(_ context.Context, key HistoryKey, history []rewards.MonthlyStats, ttl time.Duration) error {
	e := memoryEntry{history: append([]rewards.MonthlyStats(nil), history...)}
	if ttl > 0 {
		e.expiresAt = c.clock.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = e
	return nil
}

// Len returns the number of stored entries, live or expired.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops expired entries.
func (c *MemoryCache) Purge() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
