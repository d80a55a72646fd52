package engine

import (
	"errors"

	"github.com/quy267/spring-drools-integration-sub002/internal/errs"
)

// ErrCancelled reports that an async execution was cancelled before it
// started running. Once firing has begun a call is not preemptible and
// completes normally.
var ErrCancelled = errors.New("engine: execution cancelled before start")

// Typed errors of the runtime, re-exported for the API layer. All are
// errors.As-compatible and wrap the underlying engine error.
type (
	CompilationError        = errs.CompilationError
	SessionCreationError    = errs.SessionCreationError
	ExecutionError          = errs.ExecutionError
	PoolExhaustionError     = errs.PoolExhaustionError
	CacheInconsistencyError = errs.CacheInconsistencyError
)

// Execution cycle phases recorded on ExecutionError.
const (
	PhaseAcquire = "acquire"
	PhaseInsert  = "insert"
	PhaseFire    = "fire"
	PhaseExtract = "extract"
	PhaseRelease = "release"
)
