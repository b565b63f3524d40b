// Package tcache implements a bounded in-memory cache for machine
// translation results. Repeated utterances inside a room (greetings,
// confirmations) hit the cache instead of the MT service.
package tcache

import (
	"container/list"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
)

type entry struct {
	key       uint64
	value     string
	expiresAt time.Time
}

// Cache is an LRU cache with per-entry TTL, keyed on the tuple
// (normalized source text, source language, target language).
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List // front = most recently used
	items      map[uint64]*list.Element
	now        func() time.Time
}

// New creates a cache holding at most maxEntries translations, each
// valid for ttl after insertion.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		items:      make(map[uint64]*list.Element),
		now:        time.Now,
	}
}

func cacheKey(text, sourceLang, targetLang string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	h.Write([]byte{0})
	h.Write([]byte(sourceLang))
	h.Write([]byte{0})
	h.Write([]byte(targetLang))
	return h.Sum64()
}

// Get returns the cached translation for (text, sourceLang, targetLang)
// if present and not expired.
func (c *Cache) Get(text, sourceLang, targetLang string) (string, bool) {
	key := cacheKey(text, sourceLang, targetLang)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		metrics.TranslationCacheMisses.Inc()
		return "", false
	}

	ent := elem.Value.(*entry)
	if c.now().After(ent.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		metrics.TranslationCacheMisses.Inc()
		return "", false
	}

	c.order.MoveToFront(elem)
	metrics.TranslationCacheHits.Inc()
	return ent.value, true
}

// Put stores a translation, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Put(text, sourceLang, targetLang, translation string) {
	key := cacheKey(text, sourceLang, targetLang)
	expires := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = translation
		ent.expiresAt = expires
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}

	elem := c.order.PushFront(&entry{key: key, value: translation, expiresAt: expires})
	c.items[key] = elem
}

// Len reports the number of live entries, expired ones included until
// their next lookup.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
