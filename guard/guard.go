// Package guard implements per-source brute-force protection: a token
// bucket throttling attempt volume plus a bad-credential failure counter
// that blocks a source outright once it trips.
//
// The two mechanisms are independent. The bucket refills on wall time and
// is never reset by outcomes; the failure counter grows only on
// bad-credential failures, lapses after the lock duration, and is cleared
// by a successful authentication.
package guard

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

var (
	// ErrRateLimited means the source's token bucket is empty.
	ErrRateLimited = errors.New("rate limited")
	// ErrSourceBlocked means the source accumulated too many
	// bad-credential failures and is blocked until the window lapses.
	ErrSourceBlocked = errors.New("source blocked")
)

// LimitError wraps ErrRateLimited or ErrSourceBlocked with the timing the
// caller should surface: how long to wait, and for blocks, when the block
// lifts.
type LimitError struct {
	err        error
	RetryAfter time.Duration
	UnlockAt   time.Time
}

func (e *LimitError) Error() string { return e.err.Error() }
func (e *LimitError) Unwrap() error { return e.err }

// Config tunes the guard. The bucket admits BucketCapacity attempts and
// refills RefillTokens per RefillInterval. MaxFailures bad-credential
// failures inside one LockDuration window block the source for the rest of
// the window. MaxTrackedSources bounds memory across all sources.
type Config struct {
	BucketCapacity    int
	RefillTokens      int
	RefillInterval    time.Duration
	MaxFailures       int
	LockDuration      time.Duration
	MaxTrackedSources int
}

type source struct {
	tokens     float64
	lastRefill time.Time

	failures    int
	windowEnds  time.Time
	lastTouched time.Time
}

type shard struct {
	mu      sync.Mutex
	sources map[string]*source
}

// Guard tracks attempt state per source id. Sources are sharded so checks
// for unrelated sources never contend on one lock.
type Guard struct {
	config Config
	shards [shardCount]shard
	now    func() time.Time
}

// New returns a Guard ready for use.
func New(cfg Config) *Guard {
	if cfg.BucketCapacity <= 0 {
		cfg.BucketCapacity = 10
	}
	if cfg.RefillTokens <= 0 {
		cfg.RefillTokens = cfg.BucketCapacity
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Minute
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 15 * time.Minute
	}
	if cfg.MaxTrackedSources <= 0 {
		cfg.MaxTrackedSources = 100_000
	}

	g := &Guard{config: cfg, now: time.Now}
	for i := range g.shards {
		g.shards[i].sources = make(map[string]*source)
	}

	return g
}

// Check gates one attempt from sourceID. It must be called before any
// credential work. A blocked source is rejected without consuming bucket
// tokens; otherwise one token is consumed, and an empty bucket rejects the
// attempt with a retry-after hint.
func (g *Guard) Check(sourceID string) error {
	sh := g.shard(sourceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := g.now()
	s := g.get(sh, sourceID, now)
	s.lastTouched = now

	if s.failures >= g.config.MaxFailures {
		if now.Before(s.windowEnds) {
			return &LimitError{
				err:        ErrSourceBlocked,
				RetryAfter: s.windowEnds.Sub(now),
				UnlockAt:   s.windowEnds,
			}
		}
		s.failures = 0
		s.windowEnds = time.Time{}
	}

	g.refill(s, now)
	if s.tokens >= 1 {
		s.tokens--
		return nil
	}

	perToken := g.config.RefillInterval.Seconds() / float64(g.config.RefillTokens)
	wait := time.Duration((1 - s.tokens) * perToken * float64(time.Second))

	return &LimitError{err: ErrRateLimited, RetryAfter: wait}
}

// RecordFailure counts one bad-credential failure for sourceID. The first
// failure opens a lock-duration window; reaching MaxFailures inside it
// blocks the source for the remainder.
func (g *Guard) RecordFailure(sourceID string) {
	sh := g.shard(sourceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := g.now()
	s := g.get(sh, sourceID, now)
	s.lastTouched = now

	if !s.windowEnds.IsZero() && !now.Before(s.windowEnds) {
		s.failures = 0
		s.windowEnds = time.Time{}
	}
	if s.failures == 0 {
		s.windowEnds = now.Add(g.config.LockDuration)
	}
	s.failures++
}

// RecordSuccess clears the failure counter for sourceID. The token bucket
// is deliberately left untouched: a successful login does not grant the
// source extra attempt volume.
func (g *Guard) RecordSuccess(sourceID string) {
	sh := g.shard(sourceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if s, ok := sh.sources[sourceID]; ok {
		s.failures = 0
		s.windowEnds = time.Time{}
	}
}

// FailedAttempts reports the current failure count for sourceID.
func (g *Guard) FailedAttempts(sourceID string) int {
	sh := g.shard(sourceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sources[sourceID]
	if !ok {
		return 0
	}
	if !s.windowEnds.IsZero() && !g.now().Before(s.windowEnds) {
		return 0
	}
	return s.failures
}

// RemainingAttempts reports how many failures sourceID can still accumulate
// before it blocks.
func (g *Guard) RemainingAttempts(sourceID string) int {
	remaining := g.config.MaxFailures - g.FailedAttempts(sourceID)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsBlocked reports whether sourceID is currently blocked by its failure
// counter.
func (g *Guard) IsBlocked(sourceID string) bool {
	sh := g.shard(sourceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sources[sourceID]
	if !ok {
		return false
	}
	return s.failures >= g.config.MaxFailures && g.now().Before(s.windowEnds)
}

func (g *Guard) shard(sourceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sourceID))
	return &g.shards[h.Sum32()%shardCount]
}

// get assumes sh.mu is held.
func (g *Guard) get(sh *shard, sourceID string, now time.Time) *source {
	if s, ok := sh.sources[sourceID]; ok {
		return s
	}

	if len(sh.sources) >= g.config.MaxTrackedSources/shardCount {
		g.evict(sh, now)
	}

	s := &source{
		tokens:     float64(g.config.BucketCapacity),
		lastRefill: now,
	}
	sh.sources[sourceID] = s

	return s
}

// refill advances the bucket on wall time, capped at capacity.
func (g *Guard) refill(s *source, now time.Time) {
	elapsed := now.Sub(s.lastRefill)
	if elapsed <= 0 {
		return
	}

	rate := float64(g.config.RefillTokens) / g.config.RefillInterval.Seconds()
	s.tokens += elapsed.Seconds() * rate
	if limit := float64(g.config.BucketCapacity); s.tokens > limit {
		s.tokens = limit
	}
	s.lastRefill = now
}

// evict drops cold entries so the shard stays within its share of
// MaxTrackedSources: a source whose failure window has lapsed and that has
// been idle for a full refill interval carries no state worth keeping (its
// bucket would have refilled anyway). If nothing is cold, the single least
// recently touched entry goes. Assumes sh.mu held.
func (g *Guard) evict(sh *shard, now time.Time) {
	var (
		oldestID string
		oldestAt time.Time
		dropped  bool
	)

	for id, s := range sh.sources {
		cold := (s.windowEnds.IsZero() || !now.Before(s.windowEnds)) &&
			now.Sub(s.lastTouched) > g.config.RefillInterval
		if cold {
			delete(sh.sources, id)
			dropped = true
			continue
		}
		if oldestID == "" || s.lastTouched.Before(oldestAt) {
			oldestID, oldestAt = id, s.lastTouched
		}
	}

	if !dropped && oldestID != "" {
		delete(sh.sources, oldestID)
	}
}
