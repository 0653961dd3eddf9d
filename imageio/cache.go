package imageio

import (
	"container/list"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Noofbiz/frameset/tiling"
)

// CachedLoader keeps recently decoded images in memory so that the frames of
// one image do not each trigger a full decode.
//
// Entries are evicted least-recently-used once MaxEntries is exceeded and
// are reloaded after TTL. Cached images are shared between callers and must
// be treated as read-only. Failed loads are not cached.
type CachedLoader struct {
	next       Loader
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	mu    sync.Mutex
	items map[cacheKey]*list.Element
	order *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheKey struct {
	path string
	size tiling.Size
}

type cacheEntry struct {
	key    cacheKey
	img    *image.Gray
	loaded time.Time
}

// NewCachedLoader wraps next. maxEntries <= 0 means unbounded and ttl <= 0
// means entries never expire.
func NewCachedLoader(next Loader, maxEntries int, ttl time.Duration) *CachedLoader {
	return &CachedLoader{
		next:       next,
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		items:      make(map[cacheKey]*list.Element),
		order:      list.New(),
	}
}

// Load implements Loader.
func (c *CachedLoader) Load(path string, size tiling.Size) (*image.Gray, error) {
	key := cacheKey{path: path, size: size}
	if img, ok := c.get(key); ok {
		c.hits.Add(1)
		return img, nil
	}
	c.misses.Add(1)

	// Decode outside the lock; concurrent misses on one key may both load.
	img, err := c.next.Load(path, size)
	if err != nil {
		return nil, err
	}
	c.put(key, img)
	return img, nil
}

func (c *CachedLoader) get(key cacheKey) (*image.Gray, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(ent.loaded) > c.ttl {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return ent.img, true
}

func (c *CachedLoader) put(key cacheKey, img *image.Gray) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*cacheEntry)
		ent.img = img
		ent.loaded = c.now()
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, img: img, loaded: c.now()})
	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		back := c.order.Back()
		c.order.Remove(back)
		delete(c.items, back.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached images.
func (c *CachedLoader) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every cached image.
func (c *CachedLoader) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[cacheKey]*list.Element)
	c.order.Init()
}

// Stats returns the hit and miss counters.
func (c *CachedLoader) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
