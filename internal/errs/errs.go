// errs defines the typed error taxonomy of the rules runtime. Errors carry
// the rule, session and correlation context of the failure point and wrap
// the underlying engine error.
package errs

import (
	"fmt"
	"strings"
	"time"
)

// CompilationError reports invalid or unparseable rule source. It is never
// cached alongside compiled artifacts.
type CompilationError struct {
	Source      string
	Fingerprint string
	Diagnostics []string
	Err         error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("compilation of rule source %q failed", e.Source)
	if len(e.Diagnostics) > 0 {
		msg += ": " + strings.Join(e.Diagnostics, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompilationError) Unwrap() error { return e.Err }

// SessionCreationError reports that the engine failed to instantiate an
// execution session from a valid compiled artifact.
type SessionCreationError struct {
	Source string
	Err    error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("failed to create execution session for rule source %q: %v", e.Source, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// ExecutionError reports a failure while inserting facts or firing rules.
// The session that raised it is discarded, never returned to the pool.
type ExecutionError struct {
	Source        string
	SessionID     string
	CorrelationID string
	Phase         string // acquire, insert, fire, extract, release
	Err           error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of rule source %q failed in phase %s (session %s, correlation %s): %v",
		e.Source, e.Phase, e.SessionID, e.CorrelationID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PoolExhaustionError reports a borrow timeout. It can only occur under a
// strict bounded-blocking pool policy; the default transient-overflow
// policy never produces it.
type PoolExhaustionError struct {
	Source  string
	Timeout time.Duration
}

func (e *PoolExhaustionError) Error() string {
	return fmt.Sprintf("session pool for rule source %q exhausted after %s", e.Source, e.Timeout)
}

// CacheInconsistencyError reports that a fingerprint check and a subsequent
// compile observed different content, i.e. a race with a concurrent source
// update that persisted across one retry.
type CacheInconsistencyError struct {
	Source          string
	WantFingerprint string
	GotFingerprint  string
}

func (e *CacheInconsistencyError) Error() string {
	return fmt.Sprintf("rule source %q changed during compilation: fingerprint %.12s became %.12s",
		e.Source, e.WantFingerprint, e.GotFingerprint)
}
