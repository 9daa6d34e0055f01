// Package blacklist implements the in-memory access-token revocation cache:
// a bounded map from token id to token expiry with LRU eviction and a
// periodic background sweep.
//
// Entries become useless the moment the underlying token expires (an expired
// token fails verification on its own), so the cache drops stale entries
// opportunistically on reads and wholesale during sweeps. The cache is
// process-local; multi-instance deployments need a shared store instead.
package blacklist

import (
	"container/list"
	"sync"
	"time"
)

// Config bounds the cache. Capacity caps the number of live entries; once
// full, the least recently touched entry is evicted. SweepInterval is the
// period of the background sweep started by Start.
type Config struct {
	Capacity      int
	SweepInterval time.Duration
}

type entry struct {
	tokenID   string
	expiresAt time.Time
}

// Cache is the revocation cache. All methods are safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently touched

	config Config
	now    func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool
}

// New returns a Cache. Start must be called separately to run the
// background sweeper; the cache is fully usable without it.
func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100_000
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}

	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		config:  cfg,
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Blacklist records tokenID as revoked until expiresAt. Recording a token
// whose expiry is already past is a no-op. Re-blacklisting an existing token
// updates its expiry.
func (c *Cache) Blacklist(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !expiresAt.After(c.now()) {
		return
	}

	if el, ok := c.entries[tokenID]; ok {
		el.Value.(*entry).expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.entries[tokenID] = c.order.PushFront(&entry{tokenID: tokenID, expiresAt: expiresAt})

	for len(c.entries) > c.config.Capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
	}
}

// IsBlacklisted reports whether tokenID is currently revoked. An entry whose
// expiry has passed is dropped on the spot and reported as not blacklisted.
func (c *Cache) IsBlacklisted(tokenID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[tokenID]
	if !ok {
		return false
	}

	if !el.Value.(*entry).expiresAt.After(c.now()) {
		c.remove(el)
		return false
	}

	c.order.MoveToFront(el)
	return true
}

// Remove unblacklists tokenID. Intended for administrative correction only.
func (c *Cache) Remove(tokenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[tokenID]; ok {
		c.remove(el)
	}
}

// Sweep drops every entry whose expiry has passed and returns how many were
// removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !el.Value.(*entry).expiresAt.After(now) {
			c.remove(el)
			removed++
		}
		el = prev
	}

	return removed
}

// Len returns the current number of entries, including any not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start launches the background sweeper. Calling Start more than once is a
// no-op.
func (c *Cache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	c.started = true

	c.wg.Add(1)
	go c.sweepLoop()
}

// Stop terminates the sweeper and waits for it to exit. The cache remains
// usable afterwards; only the periodic sweep stops.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *Cache) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}

// remove assumes c.mu is held.
func (c *Cache) remove(el *list.Element) {
	delete(c.entries, el.Value.(*entry).tokenID)
	c.order.Remove(el)
}
