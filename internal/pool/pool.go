package pool

import (
	"sync"
	"sync/atomic"

	"github.com/quy267/spring-drools-integration-sub002/internal/compile"
	"github.com/quy267/spring-drools-integration-sub002/internal/errs"
	"github.com/quy267/spring-drools-integration-sub002/internal/logger"
	"github.com/quy267/spring-drools-integration-sub002/internal/metrics"
)

// Config controls pool bounds and session behavior.
type Config struct {
	// MaxPooled bounds the persistently pooled sessions. Borrows beyond the
	// bound are served by transient sessions so callers never block.
	MaxPooled int
	// MaxCycle bounds rule refiring within one execution.
	MaxCycle int
}

// Statistics are the monotonic pool counters plus the current sizes.
type Statistics struct {
	Size      int // persistent sessions, idle plus borrowed
	Idle      int
	Created   uint64 // all sessions ever created, transient included
	Transient uint64 // overflow sessions created beyond the pool bound
	Borrowed  uint64
	Returned  uint64
	Disposed  uint64
}

// Pool manages the lifecycle of sessions bound to one compiled artifact.
// Borrow never blocks: it reuses an idle session, creates a persistent one
// below the bound, or hands out a transient overflow session.
type Pool struct {
	artifact *compile.Artifact
	cfg      Config
	sink     metrics.Sink

	mu     sync.Mutex
	idle   []*Session
	size   int // persistent sessions, idle plus borrowed
	closed bool

	created   atomic.Uint64
	transient atomic.Uint64
	borrowed  atomic.Uint64
	returned  atomic.Uint64
	disposed  atomic.Uint64
}

// New creates a pool over the given artifact.
func New(artifact *compile.Artifact, cfg Config, sink metrics.Sink) *Pool {
	if cfg.MaxPooled <= 0 {
		cfg.MaxPooled = 8
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Pool{
		artifact: artifact,
		cfg:      cfg,
		sink:     sink,
	}
}

// Borrow hands out a session in the borrowed state. Ownership is exclusive
// until Return or Discard. The error, if any, is a *errs.SessionCreationError.
func (p *Pool) Borrow() (*Session, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		s.state.Store(StateBorrowed)
		s.useCount.Add(1)
		p.borrowed.Add(1)
		return s, nil
	}

	wantTransient := p.closed || p.size >= p.cfg.MaxPooled
	if !wantTransient {
		p.size++ // reserve the slot before the expensive creation
	}
	p.mu.Unlock()

	s, err := newSession(p.artifact, p.cfg.MaxCycle, wantTransient)
	if err != nil {
		if !wantTransient {
			p.mu.Lock()
			p.size--
			p.mu.Unlock()
		}
		return nil, &errs.SessionCreationError{Source: p.artifact.SourceID, Err: err}
	}

	p.created.Add(1)
	if wantTransient {
		p.transient.Add(1)
	}
	p.sink.IncSessionCreated(p.artifact.SourceID)
	p.reportSize()

	s.state.Store(StateBorrowed)
	s.useCount.Add(1)
	p.borrowed.Add(1)
	return s, nil
}

// Return releases a borrowed session. Pooled sessions are reset to a
// fact-free state before re-entering the idle set; a session that cannot
// be reset is disposed, as are transient sessions.
func (p *Pool) Return(s *Session) error {
	if s == nil {
		return nil
	}
	if !s.state.CompareAndSwap(StateBorrowed, StateIdle) {
		return errNotBorrowed
	}
	p.returned.Add(1)

	if s.transient {
		p.dispose(s)
		return nil
	}

	if err := s.Reset(); err != nil {
		logger.L().Warnf("session %v reset failed, disposing : %v", s.id, err)
		p.removePersistent(s)
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.removePersistent(s)
		return nil
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
	return nil
}

// Discard disposes a borrowed session without returning it to the pool.
// Callers use it when an execution failure may have corrupted the session.
func (p *Pool) Discard(s *Session) {
	if s == nil {
		return
	}
	if !s.state.CompareAndSwap(StateBorrowed, StateDisposed) {
		return
	}
	if s.transient {
		p.dispose(s)
		return
	}
	p.removePersistent(s)
}

// Clear disposes every idle session. Borrowed sessions are disposed when
// returned. Intended for shutdown and artifact supersession.
func (p *Pool) Clear() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.size -= len(idle)
	p.closed = true
	p.mu.Unlock()

	for _, s := range idle {
		p.dispose(s)
	}
	p.reportSize()
}

// Statistics returns a snapshot of the pool counters.
func (p *Pool) Statistics() Statistics {
	p.mu.Lock()
	size, idle := p.size, len(p.idle)
	p.mu.Unlock()

	return Statistics{
		Size:      size,
		Idle:      idle,
		Created:   p.created.Load(),
		Transient: p.transient.Load(),
		Borrowed:  p.borrowed.Load(),
		Returned:  p.returned.Load(),
		Disposed:  p.disposed.Load(),
	}
}

// ResetStatistics zeroes the monotonic pool counters. Sizes are live state
// and unaffected.
func (p *Pool) ResetStatistics() {
	p.created.Store(0)
	p.transient.Store(0)
	p.borrowed.Store(0)
	p.returned.Store(0)
	p.disposed.Store(0)
}

func (p *Pool) removePersistent(s *Session) {
	p.mu.Lock()
	p.size--
	p.mu.Unlock()
	p.dispose(s)
}

func (p *Pool) dispose(s *Session) {
	s.dispose()
	p.disposed.Add(1)
	p.sink.IncSessionDisposed(p.artifact.SourceID)
	p.reportSize()
}

func (p *Pool) reportSize() {
	p.mu.Lock()
	size := p.size
	p.mu.Unlock()
	p.sink.SetPoolSize(p.artifact.SourceID, size)
}
