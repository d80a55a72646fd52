// Package engine orchestrates rule execution over pooled sessions and a
// fingerprint-keyed compiled artifact cache.
package engine

import (
	"context"

	"github.com/hyperjumptech/grule-rule-engine/ast"

	"github.com/quy267/spring-drools-integration-sub002/internal/compile"
	"github.com/quy267/spring-drools-integration-sub002/internal/pool"
)

// Execution modes.
const (
	ModeSingle  = "single"
	ModeBatch   = "batch"
	ModeChunked = "chunked"
	ModeAsync   = "async"
)

// IRuleEngine is the execution surface consumed by the API layer.
type IRuleEngine interface {
	// AddRule registers or replaces the GRL statement for a rule unit and
	// compiles it.
	AddRule(ctx context.Context, rule, statement string) error
	// BuildRule registers the GRL statement only when the rule unit does
	// not exist yet, then compiles it.
	BuildRule(ctx context.Context, rule, statement string) error
	// ContainsRule checks if a rule unit is registered.
	ContainsRule(ctx context.Context, rule string) bool
	// RemoveRule unregisters a rule unit and evicts its artifact.
	RemoveRule(ctx context.Context, rule string)

	// ExecuteSingle runs one fact through the rule unit and returns it,
	// mutated by the fired rules. Facts must be pointers.
	ExecuteSingle(ctx context.Context, rule string, fact any) (any, error)
	// ExecuteBatch runs all facts through one borrowed session. Output
	// order matches input order; the call fails fast on the first error.
	ExecuteBatch(ctx context.Context, rule string, facts []any) ([]any, error)
	// ExecuteChunked runs the facts in independent chunks of chunkSize,
	// bounding peak working memory. Results keep the input order.
	ExecuteChunked(ctx context.Context, rule string, facts []any, chunkSize int) ([]any, error)
	// ExecuteAsync submits the request to the bounded worker pool and
	// returns a future without blocking on execution.
	ExecuteAsync(ctx context.Context, req Request) *Future
	// FetchMatching returns the rule entries matching the fact without
	// firing them.
	FetchMatching(ctx context.Context, rule string, fact any) ([]*ast.RuleEntry, error)

	// Reload evicts every cached artifact and recompiles the known sources.
	Reload(ctx context.Context) error
	// Statistics snapshots the execution, pool and cache counters.
	Statistics() Statistics
	// ResetMetrics zeroes the monotonic counters.
	ResetMetrics()
	// Debug provides internal state information for debugging purposes.
	Debug() map[string]any
	// Close releases every pooled session and stops background work.
	Close()
}

// Request describes one asynchronous execution.
type Request struct {
	Rule  string
	Facts []any
	// ChunkSize switches the request to chunked execution when positive.
	ChunkSize int
}

// ExecStatistics are the orchestrator's monotonic execution counters.
type ExecStatistics struct {
	Singles  uint64
	Batches  uint64
	Chunks   uint64
	Asyncs   uint64
	Failures uint64
	// TotalDurationNanos accumulates wall time across executions.
	TotalDurationNanos uint64
}

// Statistics aggregates the runtime counters exposed to the metrics
// collaborator.
type Statistics struct {
	Execution ExecStatistics
	Cache     compile.Statistics
	Pools     map[string]pool.Statistics
}
