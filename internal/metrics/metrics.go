// metrics defines the sink the rules runtime emits counters and timers to.
// Aggregation and display belong to the consumer, not to this module.
package metrics

import "time"

// Sink receives named counters and timers from the runtime core.
type Sink interface {
	// IncExecution counts one execution in the given mode ("single",
	// "batch", "chunked", "async") with the given outcome ("ok", "error").
	IncExecution(mode, status string)
	// ObserveExecutionDuration records the wall time of one execution.
	ObserveExecutionDuration(mode string, d time.Duration)
	// IncCacheHit / IncCacheMiss / IncCacheEviction count artifact cache events.
	IncCacheHit(source string)
	IncCacheMiss(source string)
	IncCacheEviction(source string)
	// SetPoolSize reports the current number of pooled session handles.
	SetPoolSize(source string, size int)
	// IncSessionCreated / IncSessionDisposed count session lifecycle events.
	IncSessionCreated(source string)
	IncSessionDisposed(source string)
}

// Nop discards every observation. Useful default for tests.
type Nop struct{}

func (Nop) IncExecution(string, string)                       {}
func (Nop) ObserveExecutionDuration(string, time.Duration)    {}
func (Nop) IncCacheHit(string)                                {}
func (Nop) IncCacheMiss(string)                               {}
func (Nop) IncCacheEviction(string)                           {}
func (Nop) SetPoolSize(string, int)                           {}
func (Nop) IncSessionCreated(string)                          {}
func (Nop) IncSessionDisposed(string)                         {}
