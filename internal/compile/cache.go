package compile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quy267/spring-drools-integration-sub002/internal/errs"
	"github.com/quy267/spring-drools-integration-sub002/internal/logger"
	"github.com/quy267/spring-drools-integration-sub002/internal/metrics"
	"github.com/quy267/spring-drools-integration-sub002/internal/source"
	"github.com/quy267/spring-drools-integration-sub002/internal/store"
)

// EvictedFunc is notified when an artifact leaves the cache. The artifact
// may be nil when the entry was already gone.
type EvictedFunc = func(sourceID string, artifact *Artifact, event int)

// Statistics are the monotonic counters of the cache, reset only on
// explicit request.
type Statistics struct {
	Hits         uint64
	Misses       uint64
	Evictions    uint64
	Compilations uint64
}

// Config controls cache bounds and expiry.
type Config struct {
	MaxEntries      int
	TTL             time.Duration
	CleanupInterval time.Duration
}

// Cache memoizes compiled artifacts by source id, keyed on the content
// fingerprint reported by the provider. Safe for concurrent callers; the
// get-or-compile path is atomic per source id without any external lock.
type Cache struct {
	provider source.Provider
	entries  *store.LRU
	sink     metrics.Sink
	ttl      time.Duration

	locks sync.Map // sourceID -> *sync.Mutex, serializes compiles per source

	hits         atomic.Uint64
	misses       atomic.Uint64
	evictions    atomic.Uint64
	compilations atomic.Uint64

	onEvicted EvictedFunc
}

// NewCache creates an artifact cache over the given provider.
func NewCache(provider source.Provider, cfg Config, sink metrics.Sink) *Cache {
	if sink == nil {
		sink = metrics.Nop{}
	}
	c := &Cache{
		provider: provider,
		entries:  store.NewLRU(cfg.MaxEntries, cfg.CleanupInterval),
		sink:     sink,
		ttl:      cfg.TTL,
	}
	_ = c.entries.SetEvictedFunc(func(key string, value any, event int) {
		// keep the per-source lock map from growing under source churn
		c.locks.Delete(key)
		c.evictions.Add(1)
		c.sink.IncCacheEviction(key)
		if c.onEvicted != nil {
			artifact, _ := value.(*Artifact)
			go c.onEvicted(key, artifact, event)
		}
	})
	return c
}

// SetEvictedFunc installs the eviction notification callback. It may be set
// once, before the cache is shared.
func (c *Cache) SetEvictedFunc(f EvictedFunc) {
	c.onEvicted = f
}

func (c *Cache) lock(sourceID string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(sourceID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetOrCompile returns the cached artifact for sourceID when its
// fingerprint still matches the live source, compiling otherwise. A
// compile failure is returned synchronously and never populates the cache;
// a stale artifact is never silently served.
func (c *Cache) GetOrCompile(ctx context.Context, sourceID string) (*Artifact, error) {
	mu := c.lock(sourceID)
	mu.Lock()
	defer mu.Unlock()

	artifact, err := c.getOrCompile(ctx, sourceID)
	if err == nil {
		return artifact, nil
	}

	// A concurrent source update between fetch and compile is transient:
	// retry once against the new content.
	var inconsistency *errs.CacheInconsistencyError
	if errors.As(err, &inconsistency) {
		logger.WithContext(ctx).Warnf("rule source %v changed during compile, retrying once", sourceID)
		return c.getOrCompile(ctx, sourceID)
	}
	return nil, err
}

func (c *Cache) getOrCompile(ctx context.Context, sourceID string) (*Artifact, error) {
	content, desc, err := c.provider.Fetch(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if cached, ok := c.entries.Get(sourceID); ok {
		artifact := cached.(*Artifact)
		if artifact.Fingerprint == desc.Fingerprint {
			c.hits.Add(1)
			c.sink.IncCacheHit(sourceID)
			return artifact, nil
		}
	}

	c.misses.Add(1)
	c.sink.IncCacheMiss(sourceID)

	artifact, err := Compile(sourceID, desc.Fingerprint, content)
	if err != nil {
		return nil, err
	}
	c.compilations.Add(1)

	// The compile must describe the fingerprint we are about to cache
	// under. A provider reporting different content now raced with an
	// update; the caller retries against the fresh content.
	live, err := c.provider.Fingerprint(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if live != desc.Fingerprint {
		return nil, &errs.CacheInconsistencyError{
			Source:          sourceID,
			WantFingerprint: desc.Fingerprint,
			GotFingerprint:  live,
		}
	}

	c.entries.Set(sourceID, artifact, c.ttl)
	return artifact, nil
}

// HasChanged reports whether the live source fingerprint differs from the
// cached artifact's, without compiling. An uncached source counts as
// changed.
func (c *Cache) HasChanged(ctx context.Context, sourceID string) (bool, error) {
	cached, ok := c.entries.Get(sourceID)
	if !ok {
		return true, nil
	}
	live, err := c.provider.Fingerprint(ctx, sourceID)
	if err != nil {
		return false, err
	}
	return cached.(*Artifact).Fingerprint != live, nil
}

// Evict removes the artifact for sourceID, reporting whether it was
// cached. Evicting an absent entry is harmless.
func (c *Cache) Evict(sourceID string) bool {
	return c.entries.Delete(sourceID)
}

// EvictAll removes every cached artifact, e.g. on an administrative reload.
func (c *Cache) EvictAll() {
	c.entries.Clear()
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Keys returns the cached source ids.
func (c *Cache) Keys() []string {
	return c.entries.Keys()
}

// Statistics returns a snapshot of the cache counters.
func (c *Cache) Statistics() Statistics {
	return Statistics{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
		Compilations: c.compilations.Load(),
	}
}

// ResetStatistics zeroes the cache counters.
func (c *Cache) ResetStatistics() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.compilations.Store(0)
}

// Close evicts everything and stops the cleanup goroutine.
func (c *Cache) Close() {
	c.entries.Close()
}
