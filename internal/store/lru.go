// store implements the bounded LRU backing store for compiled artifacts.
package store

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Eviction events passed to EvictedFunc.
const (
	ExpirationEvent = iota
	EvictionEvent
	DeleteEvent
	ClearEvent
)

// EvictedFunc is called when an entry leaves the store.
type EvictedFunc = func(key string, value any, event int)

// LRU is a bounded store with least-recently-used eviction and optional
// per-entry TTL. Safe for concurrent use.
type LRU struct {
	maxEntries int                      // zero means no limit
	entries    map[string]*list.Element // key -> element for O(1) access
	ll         *list.List               // recency order, front is most recent
	mu         sync.RWMutex
	onEvicted  EvictedFunc

	defaultTTL      time.Duration
	cleanupInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
}

type entry struct {
	key        string
	value      any
	expiration int64 // UnixNano deadline, zero means never expires
}

// NewLRU creates a store holding at most maxEntries entries (zero for no
// limit). When cleanupInterval is positive a background goroutine collects
// expired entries at that interval.
func NewLRU(maxEntries int, cleanupInterval time.Duration) *LRU {
	s := &LRU{
		maxEntries:      maxEntries,
		entries:         make(map[string]*list.Element),
		ll:              list.New(),
		cleanupInterval: cleanupInterval,
		stopChan:        make(chan struct{}),
	}
	if s.cleanupInterval > 0 {
		go s.startCleanup()
	}
	return s
}

// SetEvictedFunc sets the eviction callback. It may be set once.
func (s *LRU) SetEvictedFunc(f EvictedFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.onEvicted != nil {
		return fmt.Errorf("store eviction function is already set")
	}
	s.onEvicted = f
	return nil
}

// SetDefaultTTL sets the TTL applied when Set is called with zero duration.
func (s *LRU) SetDefaultTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaultTTL = ttl
}

// Set inserts or updates the value for key with the given TTL. A zero
// duration falls back to the default TTL; a negative default means no expiry.
func (s *LRU) Set(key string, value any, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiration := int64(0)
	ttl := duration
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	if ele, ok := s.entries[key]; ok {
		s.ll.MoveToFront(ele)
		ent := ele.Value.(*entry)
		ent.value = value
		ent.expiration = expiration
		return
	}

	if s.maxEntries != 0 && s.ll.Len() >= s.maxEntries {
		s.removeOldest()
	}

	ele := s.ll.PushFront(&entry{key: key, value: value, expiration: expiration})
	s.entries[key] = ele
}

// Get looks up the value for key, promoting it to most recently used.
func (s *LRU) Get(key string) (value any, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ele, hit := s.entries[key]
	if !hit {
		return nil, false
	}
	ent := ele.Value.(*entry)
	if ent.expiration > 0 && time.Now().UnixNano() > ent.expiration {
		s.removeElement(ele, ExpirationEvent)
		return nil, false
	}
	s.ll.MoveToFront(ele)
	return ent.value, true
}

// Has reports whether key is present and not expired, without promoting it.
func (s *LRU) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ele, hit := s.entries[key]
	if !hit {
		return false
	}
	ent := ele.Value.(*entry)
	return ent.expiration == 0 || time.Now().UnixNano() <= ent.expiration
}

// Delete removes key from the store, reporting whether it was present.
func (s *LRU) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ele, hit := s.entries[key]; hit {
		s.removeElement(ele, DeleteEvent)
		return true
	}
	return false
}

// Len returns the number of stored entries.
func (s *LRU) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ll.Len()
}

// Keys returns the stored keys in no particular order.
func (s *LRU) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Clear removes every entry, notifying the eviction callback with ClearEvent.
func (s *LRU) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.onEvicted != nil {
		for _, e := range s.entries {
			ent := e.Value.(*entry)
			s.onEvicted(ent.key, ent.value, ClearEvent)
		}
	}
	s.ll = list.New()
	s.entries = make(map[string]*list.Element)
}

// Close clears the store and stops the cleanup goroutine.
func (s *LRU) Close() {
	s.stopCleanup()
	s.Clear()
}

func (s *LRU) removeOldest() {
	if ele := s.ll.Back(); ele != nil {
		s.removeElement(ele, EvictionEvent)
	}
}

func (s *LRU) removeElement(e *list.Element, event int) {
	s.ll.Remove(e)
	ent := e.Value.(*entry)
	delete(s.entries, ent.key)
	if s.onEvicted != nil {
		s.onEvicted(ent.key, ent.value, event)
	}
}

func (s *LRU) startCleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopChan:
			return
		}
	}
}

func (s *LRU) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixNano()
	ele := s.ll.Back()
	for ele != nil {
		prev := ele.Prev()
		ent := ele.Value.(*entry)
		if ent.expiration > 0 && now > ent.expiration {
			s.removeElement(ele, ExpirationEvent)
		}
		ele = prev
	}
}

func (s *LRU) stopCleanup() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
