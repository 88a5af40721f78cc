package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key      string
	value    []byte
	expireAt time.Time
	lock     bool
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryCache implements Service in process memory with LRU eviction.
// Lock entries are never evicted before their ttl.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxEntries:      1000,
		CleanupInterval: 5 * time.Minute,
		DefaultTTL:      24 * time.Hour,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.DefaultTTL,
		stop:       make(chan struct{}),
	}

	go mc.cleanupLoop(cfg.CleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.put(&memoryEntry{key: key, value: buf, expireAt: time.Now().Add(expiration)})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	entry := el.Value.(*memoryEntry)
	if entry.lock {
		return nil, ErrCacheMiss
	}
	if entry.expired(time.Now()) {
		mc.remove(el)
		return nil, ErrCacheMiss
	}

	mc.order.MoveToFront(el)
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if el, ok := mc.entries[key]; ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lockKey := lockPrefix + key
	if el, ok := mc.entries[lockKey]; ok && !el.Value.(*memoryEntry).expired(time.Now()) {
		return false, nil
	}
	mc.put(&memoryEntry{key: lockKey, expireAt: time.Now().Add(ttl), lock: true})
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, lockPrefix+key)
}

// Len reports the number of live entries, locks included.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

// Close stops the background cleanup.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}

const lockPrefix = "lock:"

func (mc *MemoryCache) put(entry *memoryEntry) {
	if el, ok := mc.entries[entry.key]; ok {
		el.Value = entry
		mc.order.MoveToFront(el)
		return
	}
	if mc.maxEntries > 0 && mc.order.Len() >= mc.maxEntries {
		mc.evictOldest()
	}
	mc.entries[entry.key] = mc.order.PushFront(entry)
}

func (mc *MemoryCache) evictOldest() {
	for el := mc.order.Back(); el != nil; el = el.Prev() {
		if !el.Value.(*memoryEntry).lock {
			mc.remove(el)
			return
		}
	}
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.entries, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			for el := mc.order.Back(); el != nil; {
				prev := el.Prev()
				if el.Value.(*memoryEntry).expired(now) {
					mc.remove(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		}
	}
}
