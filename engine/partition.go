package engine

import (
	"context"
	"errors"
	"runtime"
	"strconv"

	"github.com/hyperjumptech/grule-rule-engine/ast"

	"github.com/quy267/spring-drools-integration-sub002/internal/consistenthash"
	"github.com/quy267/spring-drools-integration-sub002/internal/config"
	"github.com/quy267/spring-drools-integration-sub002/internal/metrics"
	"github.com/quy267/spring-drools-integration-sub002/internal/pool"
	"github.com/quy267/spring-drools-integration-sub002/internal/utils"
)

// partitionReplicas is the virtual node count per partition on the ring.
const partitionReplicas = 32

var _ IRuleEngine = (*PartitionOrchestrator)(nil)

// PartitionOrchestrator shards rule units across independent orchestrators
// to reduce lock contention. A rule unit always routes to the same
// partition via consistent hashing over its id.
type PartitionOrchestrator struct {
	cfg        *config.Config
	partitions map[string]*Orchestrator
	ring       *consistenthash.Ring
}

// NewPartitionOrchestrator creates one orchestrator per partition, each
// with its own in-memory source registry, cache and pools. The partition
// count is at least the number of CPUs.
func NewPartitionOrchestrator(cfg *config.Config, sink metrics.Sink) *PartitionOrchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	n := utils.MaxInt(runtime.NumCPU(), cfg.Engine.Partitions)

	p := &PartitionOrchestrator{
		cfg:        cfg,
		partitions: make(map[string]*Orchestrator, n),
		ring:       consistenthash.New(partitionReplicas, nil),
	}

	sub := *cfg
	sub.Cache.MaxEntries = cfg.Cache.MaxEntries / n
	if cfg.Cache.MaxEntries > 0 && sub.Cache.MaxEntries < 1 {
		sub.Cache.MaxEntries = 1
	}
	for i := 1; i <= n; i++ {
		name := strconv.Itoa(i)
		p.partitions[name] = NewOrchestrator(&sub, sink)
		p.ring.Add(name)
	}
	return p
}

func (p *PartitionOrchestrator) route(rule string) *Orchestrator {
	return p.partitions[p.ring.Get(rule)]
}

func (p *PartitionOrchestrator) AddRule(ctx context.Context, rule, statement string) error {
	return p.route(rule).AddRule(ctx, rule, statement)
}

func (p *PartitionOrchestrator) BuildRule(ctx context.Context, rule, statement string) error {
	return p.route(rule).BuildRule(ctx, rule, statement)
}

func (p *PartitionOrchestrator) ContainsRule(ctx context.Context, rule string) bool {
	return p.route(rule).ContainsRule(ctx, rule)
}

func (p *PartitionOrchestrator) RemoveRule(ctx context.Context, rule string) {
	p.route(rule).RemoveRule(ctx, rule)
}

func (p *PartitionOrchestrator) ExecuteSingle(ctx context.Context, rule string, fact any) (any, error) {
	return p.route(rule).ExecuteSingle(ctx, rule, fact)
}

func (p *PartitionOrchestrator) ExecuteBatch(ctx context.Context, rule string, facts []any) ([]any, error) {
	return p.route(rule).ExecuteBatch(ctx, rule, facts)
}

func (p *PartitionOrchestrator) ExecuteChunked(ctx context.Context, rule string, facts []any, chunkSize int) ([]any, error) {
	return p.route(rule).ExecuteChunked(ctx, rule, facts, chunkSize)
}

func (p *PartitionOrchestrator) ExecuteAsync(ctx context.Context, req Request) *Future {
	return p.route(req.Rule).ExecuteAsync(ctx, req)
}

func (p *PartitionOrchestrator) FetchMatching(ctx context.Context, rule string, fact any) ([]*ast.RuleEntry, error) {
	return p.route(rule).FetchMatching(ctx, rule, fact)
}

func (p *PartitionOrchestrator) Reload(ctx context.Context) error {
	var errsList []error
	for _, o := range p.partitions {
		if err := o.Reload(ctx); err != nil {
			errsList = append(errsList, err)
		}
	}
	return errors.Join(errsList...)
}

// Statistics sums the counters of every partition. Pool statistics keep
// their per-rule granularity since a rule lives on exactly one partition.
func (p *PartitionOrchestrator) Statistics() Statistics {
	total := Statistics{Pools: make(map[string]pool.Statistics)}
	for _, o := range p.partitions {
		s := o.Statistics()
		total.Execution.Singles += s.Execution.Singles
		total.Execution.Batches += s.Execution.Batches
		total.Execution.Chunks += s.Execution.Chunks
		total.Execution.Asyncs += s.Execution.Asyncs
		total.Execution.Failures += s.Execution.Failures
		total.Execution.TotalDurationNanos += s.Execution.TotalDurationNanos
		total.Cache.Hits += s.Cache.Hits
		total.Cache.Misses += s.Cache.Misses
		total.Cache.Evictions += s.Cache.Evictions
		total.Cache.Compilations += s.Cache.Compilations
		for rule, ps := range s.Pools {
			total.Pools[rule] = ps
		}
	}
	return total
}

func (p *PartitionOrchestrator) ResetMetrics() {
	for _, o := range p.partitions {
		o.ResetMetrics()
	}
}

func (p *PartitionOrchestrator) Debug() map[string]any {
	partitions := make(map[string]any, len(p.partitions))
	for name, o := range p.partitions {
		d := o.Debug()
		delete(d, "stats")
		partitions[name] = d
	}
	return map[string]any{
		"partition_config": p.cfg,
		"ring":             p.ring.String(),
		"partitions":       partitions,
		"stats":            utils.GetRuntimeStats(),
	}
}

func (p *PartitionOrchestrator) Close() {
	for _, o := range p.partitions {
		o.Close()
	}
}
