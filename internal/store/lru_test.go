package store

import (
	"sync"
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	s := NewLRU(3, 0)
	s.Set("a", 1, 0)
	s.Set("b", 2, 0)

	if v, ok := s.Get("a"); !ok || v.(int) != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Fatalf("Get(missing) should miss")
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestEvictOldest(t *testing.T) {
	evicted := make(map[string]int)
	s := NewLRU(2, 0)
	_ = s.SetEvictedFunc(func(key string, value any, event int) {
		evicted[key] = event
	})

	s.Set("a", 1, 0)
	s.Set("b", 2, 0)
	// touch "a" so "b" becomes the eviction candidate
	s.Get("a")
	s.Set("c", 3, 0)

	if s.Has("b") {
		t.Fatalf("b should have been evicted")
	}
	if !s.Has("a") || !s.Has("c") {
		t.Fatalf("a and c should remain")
	}
	if ev, ok := evicted["b"]; !ok || ev != EvictionEvent {
		t.Fatalf("eviction callback for b = %v, %v; want EvictionEvent", ev, ok)
	}
}

func TestExpiration(t *testing.T) {
	s := NewLRU(0, 0)
	s.Set("a", 1, 10*time.Millisecond)
	s.Set("b", 2, 0)

	time.Sleep(20 * time.Millisecond)

	if _, ok := s.Get("a"); ok {
		t.Fatalf("a should have expired")
	}
	if !s.Has("b") {
		t.Fatalf("b has no TTL and should remain")
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := NewLRU(0, 0)
	s.Set("a", 1, 0)

	if !s.Delete("a") {
		t.Fatalf("Delete(a) should report true")
	}
	if s.Delete("a") {
		t.Fatalf("Delete(a) twice should report false")
	}

	s.Set("b", 2, 0)
	s.Set("c", 3, 0)
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewLRU(100, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			keys := []string{"a", "b", "c", "d"}
			for j := 0; j < 500; j++ {
				k := keys[(n+j)%len(keys)]
				s.Set(k, j, 0)
				s.Get(k)
				s.Has(k)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() > 4 {
		t.Fatalf("Len = %d, want at most 4", s.Len())
	}
}
