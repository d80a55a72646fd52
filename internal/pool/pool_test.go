package pool

import (
	"context"
	"sync"
	"testing"

	"github.com/quy267/spring-drools-integration-sub002/internal/compile"
	"github.com/quy267/spring-drools-integration-sub002/internal/utils"
)

const seniorGRL = `rule Senior "senior discount" salience 10 {
	when
		Fact.Age > 60
	then
		Fact.Discount = 10;
		Retract("Senior");
}`

type discountFact struct {
	Age      int
	Discount int
}

func newTestArtifact(t *testing.T) *compile.Artifact {
	t.Helper()
	content := []byte(seniorGRL)
	artifact, err := compile.Compile("senior", utils.Fingerprint(content), content)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	return artifact
}

func TestNewSessionStartsIdle(t *testing.T) {
	s, err := newSession(newTestArtifact(t), 0, false)
	if err != nil {
		t.Fatalf("newSession error: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("fresh session state = %d, want StateIdle", s.State())
	}
}

func TestBorrowReturnReuse(t *testing.T) {
	p := New(newTestArtifact(t), Config{MaxPooled: 2}, nil)

	s1, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	if s1.State() != StateBorrowed {
		t.Fatalf("borrowed session state = %d, want StateBorrowed", s1.State())
	}

	if err := p.Return(s1); err != nil {
		t.Fatalf("Return error: %v", err)
	}

	s2, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	if s2 != s1 {
		t.Fatalf("idle session should be reused")
	}
	if s2.UseCount() != 2 {
		t.Fatalf("use count = %d, want 2", s2.UseCount())
	}

	stats := p.Statistics()
	if stats.Created != 1 || stats.Borrowed != 2 || stats.Returned != 1 {
		t.Fatalf("stats = %+v, want created=1 borrowed=2 returned=1", stats)
	}
}

func TestTransientOverflow(t *testing.T) {
	p := New(newTestArtifact(t), Config{MaxPooled: 2}, nil)

	// three borrows before any return: two pooled plus one transient
	s1, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	s2, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	s3, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}

	if s1.Transient() || s2.Transient() {
		t.Fatalf("first two sessions should be persistent")
	}
	if !s3.Transient() {
		t.Fatalf("third session should be transient")
	}

	stats := p.Statistics()
	if stats.Size != 2 || stats.Created != 3 || stats.Transient != 1 {
		t.Fatalf("stats = %+v, want size=2 created=3 transient=1", stats)
	}

	// the transient session is disposed on return, never pooled
	if err := p.Return(s3); err != nil {
		t.Fatalf("Return error: %v", err)
	}
	if s3.State() != StateDisposed {
		t.Fatalf("transient session state = %d, want StateDisposed", s3.State())
	}

	if err := p.Return(s1); err != nil {
		t.Fatalf("Return error: %v", err)
	}
	if err := p.Return(s2); err != nil {
		t.Fatalf("Return error: %v", err)
	}

	stats = p.Statistics()
	if stats.Size != 2 || stats.Idle != 2 || stats.Disposed != 1 {
		t.Fatalf("stats = %+v, want size=2 idle=2 disposed=1", stats)
	}
}

func TestResetOnReturn(t *testing.T) {
	p := New(newTestArtifact(t), Config{MaxPooled: 1}, nil)

	s, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}

	fact := &discountFact{Age: 65}
	if err := s.Insert("Fact", fact); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := s.Fire(context.Background()); err != nil {
		t.Fatalf("Fire error: %v", err)
	}
	if fact.Discount != 10 {
		t.Fatalf("discount = %d, want 10", fact.Discount)
	}
	if s.FactCount() != 1 {
		t.Fatalf("fact count = %d, want 1", s.FactCount())
	}

	if err := p.Return(s); err != nil {
		t.Fatalf("Return error: %v", err)
	}

	again, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	if again != s {
		t.Fatalf("expected the pooled session back")
	}
	if again.FactCount() != 0 {
		t.Fatalf("reused session holds %d residual facts", again.FactCount())
	}
}

func TestDiscardRemovesFromPool(t *testing.T) {
	p := New(newTestArtifact(t), Config{MaxPooled: 2}, nil)

	s, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	p.Discard(s)

	if s.State() != StateDisposed {
		t.Fatalf("discarded session state = %d, want StateDisposed", s.State())
	}
	stats := p.Statistics()
	if stats.Size != 0 || stats.Disposed != 1 {
		t.Fatalf("stats = %+v, want size=0 disposed=1", stats)
	}

	// the next borrow creates a fresh session
	next, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	if next == s {
		t.Fatalf("discarded session must not be handed out again")
	}
}

func TestReturnRequiresBorrowedState(t *testing.T) {
	p := New(newTestArtifact(t), Config{MaxPooled: 1}, nil)

	s, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	if err := p.Return(s); err != nil {
		t.Fatalf("Return error: %v", err)
	}
	if err := p.Return(s); err == nil {
		t.Fatalf("double Return should fail")
	}
}

func TestBorrowExclusiveUnderConcurrency(t *testing.T) {
	p := New(newTestArtifact(t), Config{MaxPooled: 4}, nil)

	var mu sync.Mutex
	held := make(map[*Session]bool)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s, err := p.Borrow()
				if err != nil {
					t.Errorf("Borrow error: %v", err)
					return
				}

				mu.Lock()
				if held[s] {
					mu.Unlock()
					t.Errorf("session %v borrowed by two holders", s.ID())
					return
				}
				held[s] = true
				mu.Unlock()

				mu.Lock()
				delete(held, s)
				mu.Unlock()

				if err := p.Return(s); err != nil {
					t.Errorf("Return error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	stats := p.Statistics()
	if stats.Size > 4 {
		t.Fatalf("persistent size = %d, want at most 4", stats.Size)
	}
	if stats.Borrowed != stats.Returned {
		t.Fatalf("borrowed %d != returned %d", stats.Borrowed, stats.Returned)
	}
}

func TestClearDisposesIdle(t *testing.T) {
	p := New(newTestArtifact(t), Config{MaxPooled: 2}, nil)

	s1, _ := p.Borrow()
	s2, _ := p.Borrow()
	_ = p.Return(s1)
	_ = p.Return(s2)

	p.Clear()

	stats := p.Statistics()
	if stats.Size != 0 || stats.Idle != 0 || stats.Disposed != 2 {
		t.Fatalf("stats = %+v, want size=0 idle=0 disposed=2", stats)
	}
	if s1.State() != StateDisposed || s2.State() != StateDisposed {
		t.Fatalf("cleared sessions must be disposed")
	}
}
