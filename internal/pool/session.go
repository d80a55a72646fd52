// pool manages reusable execution sessions bound to one compiled artifact.
package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hyperjumptech/grule-rule-engine/ast"
	"github.com/hyperjumptech/grule-rule-engine/engine"
	"github.com/oklog/ulid/v2"

	"github.com/quy267/spring-drools-integration-sub002/internal/compile"
)

// Session states. The lifecycle is
// StateCreated -> StateIdle -> StateBorrowed -> (StateIdle | StateDisposed),
// with StateDisposed terminal. StateCreated only lasts for the session's
// construction.
const (
	StateCreated int32 = iota
	StateIdle
	StateBorrowed
	StateDisposed
)

var (
	errNotBorrowed = errors.New("session is not in the borrowed state")
	errDisposed    = errors.New("session is disposed")
)

// Session is a stateful execution handle bound to one compiled artifact.
// Exactly one caller owns a borrowed session; no method is safe for
// concurrent use by multiple holders.
type Session struct {
	id        string
	source    string
	created   time.Time
	transient bool

	engine  *engine.GruleEngine
	kb      *ast.KnowledgeBase
	dataCtx ast.IDataContext
	facts   int

	useCount atomic.Uint64
	state    atomic.Int32
}

func newSession(artifact *compile.Artifact, maxCycle int, transient bool) (*Session, error) {
	kb, err := artifact.NewKnowledgeBase()
	if err != nil {
		return nil, err
	}

	ge := engine.NewGruleEngine()
	if maxCycle > 0 {
		ge.MaxCycle = uint64(maxCycle)
	}

	s := &Session{
		id:        ulid.Make().String(),
		source:    artifact.SourceID,
		created:   time.Now(),
		transient: transient,
		engine:    ge,
		kb:        kb,
		dataCtx:   ast.NewDataContext(),
	}
	// construction done, the session leaves StateCreated
	s.state.Store(StateIdle)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Source returns the rule source the session is bound to.
func (s *Session) Source() string { return s.source }

// CreatedAt returns the session's creation timestamp.
func (s *Session) CreatedAt() time.Time { return s.created }

// UseCount returns how many times the session has been borrowed.
func (s *Session) UseCount() uint64 { return s.useCount.Load() }

// Transient reports whether the session overflowed the pool bound. A
// transient session is disposed on return, never pooled.
func (s *Session) Transient() bool { return s.transient }

// State returns the session's current lifecycle state.
func (s *Session) State() int32 { return s.state.Load() }

// FactCount returns the number of facts currently inserted.
func (s *Session) FactCount() int { return s.facts }

// Insert adds a fact under the given name to the session's working data.
func (s *Session) Insert(name string, fact any) error {
	if s.state.Load() == StateDisposed {
		return errDisposed
	}
	if err := s.dataCtx.Add(name, fact); err != nil {
		return err
	}
	s.facts++
	return nil
}

// Fire evaluates the rules against the inserted facts, mutating them in
// place. Firing is atomic: once started it runs to completion.
func (s *Session) Fire(ctx context.Context) error {
	if s.state.Load() == StateDisposed {
		return errDisposed
	}
	return s.engine.ExecuteWithContext(ctx, s.dataCtx, s.kb)
}

// FetchMatching returns the rule entries whose conditions match the
// inserted facts, without firing them.
func (s *Session) FetchMatching() ([]*ast.RuleEntry, error) {
	if s.state.Load() == StateDisposed {
		return nil, errDisposed
	}
	return s.engine.FetchMatchingRules(s.dataCtx, s.kb)
}

// ClearFacts drops the inserted facts, keeping the session usable. Batch
// execution calls it between facts.
func (s *Session) ClearFacts() {
	s.dataCtx = ast.NewDataContext()
	s.facts = 0
}

// Reset returns the session to a fact-free state so it can re-enter the
// idle pool. A session whose knowledge base is gone cannot be reset and
// must be disposed instead.
func (s *Session) Reset() error {
	if s.state.Load() == StateDisposed {
		return errDisposed
	}
	if s.kb == nil {
		return errors.New("session has no knowledge base")
	}
	s.ClearFacts()
	return nil
}

func (s *Session) dispose() {
	s.state.Store(StateDisposed)
	s.kb = nil
	s.dataCtx = nil
	s.facts = 0
}
