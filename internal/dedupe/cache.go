// ABOUTME: Bounded TTL cache of inbound message keys seen by the frontends
// ABOUTME: Seen reports a redelivery and marks new keys in one step

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTTL covers Telegram's retry window and Matrix sync replays.
	DefaultTTL = 10 * time.Minute

	// DefaultSize bounds memory for busy bots.
	DefaultSize = 10_000

	sweepInterval = time.Minute
)

type entry struct {
	key    string
	seenAt time.Time
}

// Cache remembers message keys for ttl. At capacity the oldest key is
// forgotten first. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache and starts its background sweep. Call Close to stop it.
// Non-positive arguments select DefaultTTL and DefaultSize.
func New(ttl time.Duration, maxSize int) *Cache {
	c := newCache(ttl, maxSize, time.Now)
	go c.sweepLoop()
	return c
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	return &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Key joins a transport name and its message identifiers, e.g.
// Key("telegram", "update", "1001").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Seen reports whether key was already seen within the window. A new or
// expired key is recorded and false is returned, so exactly one of several
// concurrent callers with the same key gets false.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.index[key]; ok {
		e := elem.Value.(*entry)
		if now.Sub(e.seenAt) < c.ttl {
			return true
		}
		e.seenAt = now
		c.order.MoveToBack(elem)
		return false
	}

	if c.order.Len() >= c.maxSize {
		c.removeLocked(c.order.Front())
	}
	c.index[key] = c.order.PushBack(&entry{key: key, seenAt: now})
	return false
}

// Len returns the number of remembered keys, expired ones included until the
// next sweep.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close stops the background sweep. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// sweep drops expired keys. Entries are in seen order, so it stops at the
// first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.order.Front(); elem != nil; elem = c.order.Front() {
		if now.Sub(elem.Value.(*entry).seenAt) < c.ttl {
			return
		}
		c.removeLocked(elem)
	}
}

func (c *Cache) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.index, elem.Value.(*entry).key)
}
