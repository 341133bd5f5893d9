package gvfs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/filesetio/gvfs/backend"
	"github.com/filesetio/gvfs/meta"
)

// resolvedEntry pairs a fileset metadata snapshot with the live backend
// handle constructed for it. The resolution cache is the sole owner of the
// handle; eviction transfers ownership to the entry itself, which closes
// the handle once no in-flight operation still references it.
type resolvedEntry struct {
	ident   meta.Identifier
	fileset *meta.Fileset
	fsys    backend.FS

	lastAccess atomic.Int64 // unix nanos

	mu      sync.Mutex
	refs    int
	evicted bool
	closed  bool
	log     *slog.Logger
}

func (e *resolvedEntry) touch() {
	e.lastAccess.Store(time.Now().UnixNano())
}

// acquire pins the entry for one in-flight operation. It reports false
// when the handle has already been closed, in which case the caller must
// re-resolve.
func (e *resolvedEntry) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.refs++
	e.touch()
	return true
}

// release drops one pin. An entry evicted while pinned closes its handle
// on the final release.
func (e *resolvedEntry) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs--
	if e.evicted && e.refs == 0 && !e.closed {
		e.closeHandleLocked()
	}
}

// markEvicted is the eviction finalizer. The handle closes now when idle,
// otherwise on the final release.
func (e *resolvedEntry) markEvicted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return
	}
	e.evicted = true
	if e.refs == 0 && !e.closed {
		e.closeHandleLocked()
	}
}

func (e *resolvedEntry) closeHandleLocked() {
	e.closed = true
	if err := e.fsys.Close(); err != nil {
		// Eviction has no caller to report to; record and move on.
		e.log.Warn("cannot close backend handle", "fileset", e.ident.String(), "error", err)
	}
}

func (e *resolvedEntry) expired(ttl time.Duration, now time.Time) bool {
	return now.UnixNano()-e.lastAccess.Load() > int64(ttl)
}

// resolutionCache maps fileset identifiers to resolved entries, bounded
// by entry count (LRU) and by idle time. Misses construct the fileset
// metadata plus backend handle under single-flight, so concurrent misses
// for one identifier build at most one handle.
type resolutionCache struct {
	entries  *lru.Cache[meta.Identifier, *resolvedEntry]
	group    singleflight.Group
	client   meta.Client
	registry *backend.Registry
	ttl      time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu        sync.Mutex // serializes lookup-insert against invalidateAll
	done      chan struct{}
	closeOnce sync.Once
}

func newResolutionCache(maxCapacity int, ttl, timeout time.Duration, client meta.Client, registry *backend.Registry, log *slog.Logger) (*resolutionCache, error) {
	c := &resolutionCache{
		client:   client,
		registry: registry,
		ttl:      ttl,
		timeout:  timeout,
		log:      log,
		done:     make(chan struct{}),
	}
	entries, err := lru.NewWithEvict(maxCapacity, func(_ meta.Identifier, e *resolvedEntry) {
		e.markEvicted()
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	go c.sweep()
	return c, nil
}

// resolve returns the cached entry for id, constructing it on a miss. The
// returned entry is pinned; the caller must release it when the operation
// completes.
func (c *resolutionCache) resolve(ctx context.Context, id meta.Identifier) (*resolvedEntry, error) {
	for {
		if e, ok := c.lookup(id); ok {
			return e, nil
		}

		v, err, _ := c.group.Do(id.String(), func() (any, error) {
			// A racing caller may have finished construction after our
			// lookup missed.
			if e, ok := c.entries.Get(id); ok && !e.expired(c.ttl, time.Now()) {
				return e, nil
			}
			return c.construct(ctx, id)
		})
		if err != nil {
			return nil, err
		}

		// Pin the shared result. It can lose a race against eviction
		// between construction and here; resolve again if so.
		e := v.(*resolvedEntry)
		if e.acquire() {
			return e, nil
		}
	}
}

// lookup returns a pinned entry on a live cache hit. Expired entries are
// evicted on sight so that an idle entry is absent from the cache on the
// next access.
func (c *resolutionCache) lookup(id meta.Identifier) (*resolvedEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(id)
	if !ok {
		return nil, false
	}
	if e.expired(c.ttl, time.Now()) {
		c.entries.Remove(id)
		return nil, false
	}
	if !e.acquire() {
		c.entries.Remove(id)
		return nil, false
	}
	return e, true
}

// construct performs the miss path: fetch metadata under a bounded
// timeout, build the backend handle by storage scheme, insert. Failures
// leave nothing cached.
func (c *resolutionCache) construct(ctx context.Context, id meta.Identifier) (*resolvedEntry, error) {
	mctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fileset, err := c.client.LoadFileset(mctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: load fileset %s: %v", ErrResolution, id, err)
	}

	fsys, err := c.registry.New(ctx, fileset.StorageLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}

	e := &resolvedEntry{
		ident:   id,
		fileset: fileset,
		fsys:    fsys,
		log:     c.log,
	}
	e.touch()

	c.mu.Lock()
	c.entries.Add(id, e)
	c.mu.Unlock()
	return e, nil
}

// sweep evicts idle entries on a background cadence, decoupled from
// caller goroutines.
func (c *resolutionCache) sweep() {
	interval := c.ttl / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.evictExpired(now)
		}
	}
}

func (c *resolutionCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.entries.Keys() {
		if e, ok := c.entries.Peek(id); ok && e.expired(c.ttl, now) {
			c.entries.Remove(id)
		}
	}
}

// close stops the sweeper and invalidates every entry, closing all owned
// backend handles. Safe to call more than once and concurrently with a
// running sweep.
func (c *resolutionCache) close() {
	c.closeOnce.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}
