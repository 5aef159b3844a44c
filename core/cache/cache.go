// Package cache provides an LRU cache and a parse cache for content trees.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/markup"
)

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

// Config contains cache configuration options.
type Config struct {
	// MaxEntries is the maximum number of entries (0 = unlimited).
	MaxEntries int

	// MaxBytes bounds the summed size of all values (0 = unlimited).
	// Values larger than MaxBytes are not stored.
	MaxBytes int64

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 256,
		MaxBytes:   32 << 20,
	}
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	size      int64
	expiresAt time.Time
}

// LRU is a thread-safe least-recently-used cache.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	config  Config
	sizeOf  func(V) int64
	entries map[K]*list.Element
	order   *list.List
	bytes   int64
	stats   Stats
	now     func() time.Time
	OnEvict func(key K, value V)
}

// NewLRU creates a cache. sizeOf may be nil when MaxBytes is zero.
func NewLRU[K comparable, V any](config Config, sizeOf func(V) int64) *LRU[K, V] {
	if config.MaxEntries < 0 {
		config.MaxEntries = 0
	}
	if sizeOf == nil {
		sizeOf = func(V) int64 { return 0 }
	}
	return &LRU[K, V]{
		config:  config,
		sizeOf:  sizeOf,
		entries: make(map[K]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.config.TTL > 0 && c.now().After(e.expiresAt) {
		c.removeElement(el)
		c.stats.Misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Put stores a value, evicting the least recently used entries until both
// limits hold.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.sizeOf(value)
	if c.config.MaxBytes > 0 && size > c.config.MaxBytes {
		if el, ok := c.entries[key]; ok {
			c.removeElement(el)
		}
		return
	}

	var expires time.Time
	if c.config.TTL > 0 {
		expires = c.now().Add(c.config.TTL)
	}
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[K, V])
		c.bytes += size - e.size
		e.value, e.size, e.expiresAt = value, size, expires
		c.order.MoveToFront(el)
	} else {
		c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, size: size, expiresAt: expires})
		c.bytes += size
	}

	for c.overLimit() {
		c.removeElement(c.order.Back())
		c.stats.Evictions++
	}
}

func (c *LRU[K, V]) overLimit() bool {
	if c.order.Len() <= 1 {
		return false
	}
	return (c.config.MaxEntries > 0 && c.order.Len() > c.config.MaxEntries) ||
		(c.config.MaxBytes > 0 && c.bytes > c.config.MaxBytes)
}

// Remove removes a value from the cache.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes all entries. Statistics are kept.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
	c.bytes = 0
}

// Len returns the number of entries in the cache.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns cache statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.order.Len()
	s.Bytes = c.bytes
	return s
}

func (c *LRU[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	e := el.Value.(*entry[K, V])
	delete(c.entries, e.key)
	c.bytes -= e.size
	if c.OnEvict != nil {
		c.OnEvict(e.key, e.value)
	}
}

// Parsed is the cached result of parsing one markup string. Callers must
// treat Tree as read-only; Clone it before editing.
type Parsed struct {
	Tree   *content.Root
	Report *content.LossReport
}

// ParseCache memoizes markup parsing keyed by the BLAKE3 digest of the
// input.
type ParseCache struct {
	lru *LRU[string, *Parsed]
}

// NewParseCache creates a parse cache. Entry size is estimated from the
// input and canonical markup lengths.
func NewParseCache(config Config) *ParseCache {
	return &ParseCache{lru: NewLRU[string, *Parsed](config, func(p *Parsed) int64 {
		return int64(len(p.Report.Input) + 2*len(p.Report.Canonical))
	})}
}

// Parse returns the tree and round-trip report for m.
func (c *ParseCache) Parse(m string) *Parsed {
	key := content.Hash(m).BLAKE3
	if p, ok := c.lru.Get(key); ok {
		return p
	}
	tree, report := markup.ParseAndClassify(m)
	p := &Parsed{Tree: tree, Report: report}
	c.lru.Put(key, p)
	return p
}

// Stats returns cache statistics.
func (c *ParseCache) Stats() Stats {
	return c.lru.Stats()
}
