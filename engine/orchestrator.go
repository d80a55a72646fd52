package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjumptech/grule-rule-engine/ast"
	"github.com/oklog/ulid/v2"

	"github.com/quy267/spring-drools-integration-sub002/internal/compile"
	"github.com/quy267/spring-drools-integration-sub002/internal/config"
	"github.com/quy267/spring-drools-integration-sub002/internal/errs"
	"github.com/quy267/spring-drools-integration-sub002/internal/logger"
	"github.com/quy267/spring-drools-integration-sub002/internal/metrics"
	"github.com/quy267/spring-drools-integration-sub002/internal/pool"
	"github.com/quy267/spring-drools-integration-sub002/internal/source"
	"github.com/quy267/spring-drools-integration-sub002/internal/utils"
)

// Registrar is the optional provider capability behind AddRule/BuildRule.
// The in-memory provider implements it; read-only providers do not.
type Registrar interface {
	Register(id string, grl []byte) source.Descriptor
	Remove(id string) bool
}

var _ IRuleEngine = (*Orchestrator)(nil)

type poolEntry struct {
	artifact *compile.Artifact
	pool     *pool.Pool
}

// Orchestrator runs rule evaluation against facts using pooled sessions.
// It owns the artifact cache and one session pool per live artifact.
type Orchestrator struct {
	cfg      *config.Config
	provider source.Provider
	cache    *compile.Cache
	sink     metrics.Sink
	async    *asyncRunner

	mu    sync.Mutex
	pools map[string]*poolEntry

	watchCancel context.CancelFunc
	watchDone   chan struct{}

	singles  atomic.Uint64
	batches  atomic.Uint64
	chunks   atomic.Uint64
	asyncs   atomic.Uint64
	failures atomic.Uint64
	duration atomic.Uint64
}

// NewOrchestrator creates an orchestrator over an in-memory source
// registry, populated through AddRule/BuildRule.
func NewOrchestrator(cfg *config.Config, sink metrics.Sink) *Orchestrator {
	return NewOrchestratorWithProvider(cfg, source.NewMemoryProvider(), sink)
}

// NewOrchestratorWithProvider creates an orchestrator over the given rule
// source provider, e.g. a directory of .grl files.
func NewOrchestratorWithProvider(cfg *config.Config, provider source.Provider, sink metrics.Sink) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	if sink == nil {
		sink = metrics.Nop{}
	}

	o := &Orchestrator{
		cfg:      cfg,
		provider: provider,
		sink:     sink,
		pools:    make(map[string]*poolEntry),
		async:    newAsyncRunner(cfg.Async.Workers),
	}
	o.cache = compile.NewCache(provider, compile.Config{
		MaxEntries:      cfg.Cache.MaxEntries,
		TTL:             cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	}, sink)
	// an evicted artifact takes its session pool with it; the teardown is
	// keyed to the evicted artifact instance so it cannot race a recompile
	o.cache.SetEvictedFunc(func(sourceID string, artifact *compile.Artifact, _ int) {
		o.dropPool(sourceID, artifact)
	})
	return o
}

// NewFileOrchestrator creates an orchestrator over the rule source
// directory named by cfg.Sources.Path, compiling every .grl file up front.
// With cfg.Sources.Watch set, file changes trigger a debounced reload
// until Close.
func NewFileOrchestrator(cfg *config.Config, sink metrics.Sink) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.Sources.Path == "" {
		return nil, fmt.Errorf("sources.path is required for a file orchestrator")
	}

	o := NewOrchestratorWithProvider(cfg, source.NewFileProvider(cfg.Sources.Path), sink)
	if err := o.Reload(context.Background()); err != nil {
		o.Close()
		return nil, err
	}

	if cfg.Sources.Watch {
		w, err := source.NewWatcher(cfg.Sources.Path, cfg.Sources.DebounceInterval)
		if err != nil {
			o.Close()
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		o.watchCancel = cancel
		o.watchDone = make(chan struct{})
		go func() {
			defer close(o.watchDone)
			defer utils.RecoverWithContext(ctx, "rule source watcher")
			if err := w.Watch(ctx, o.Reload); err != nil {
				logger.WithContext(ctx).Errorf("rule source watching ended : %v", err)
			}
		}()
	}
	return o, nil
}

// AddRule registers or replaces the GRL statement for a rule unit and
// compiles it. A statement that fails to compile leaves the previous
// registration in place.
func (o *Orchestrator) AddRule(ctx context.Context, rule, statement string) error {
	reg, ok := o.provider.(Registrar)
	if !ok {
		return fmt.Errorf("rule registration requires a registrar provider")
	}

	prev, _, prevErr := o.provider.Fetch(ctx, rule)
	reg.Register(rule, []byte(statement))

	if _, err := o.cache.GetOrCompile(ctx, rule); err != nil {
		if prevErr == nil {
			reg.Register(rule, prev)
		} else {
			reg.Remove(rule)
		}
		return err
	}
	return nil
}

// BuildRule registers the GRL statement only when the rule unit does not
// exist yet.
func (o *Orchestrator) BuildRule(ctx context.Context, rule, statement string) error {
	if o.ContainsRule(ctx, rule) {
		_, err := o.cache.GetOrCompile(ctx, rule)
		return err
	}
	return o.AddRule(ctx, rule, statement)
}

// ContainsRule checks if a rule unit is registered with the provider.
func (o *Orchestrator) ContainsRule(ctx context.Context, rule string) bool {
	_, err := o.provider.Fingerprint(ctx, rule)
	return err == nil
}

// RemoveRule unregisters a rule unit and evicts its compiled artifact. Its
// session pool is torn down through the eviction callback.
func (o *Orchestrator) RemoveRule(ctx context.Context, rule string) {
	if reg, ok := o.provider.(Registrar); ok {
		reg.Remove(rule)
	}
	if !o.cache.Evict(rule) {
		o.dropPool(rule, nil)
	}
}

// ExecuteSingle runs one fact through the rule unit. The fact must be a
// pointer; fired rules mutate it in place.
func (o *Orchestrator) ExecuteSingle(ctx context.Context, rule string, fact any) (any, error) {
	ctx = correlate(ctx)
	start := time.Now()
	err := o.runBatch(ctx, rule, []any{fact})
	o.record(ModeSingle, &o.singles, start, err)
	if err != nil {
		return nil, err
	}
	return fact, nil
}

// ExecuteBatch runs all facts through one borrowed session, in order,
// failing fast on the first error. The whole input shares one session.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, rule string, facts []any) ([]any, error) {
	ctx = correlate(ctx)
	start := time.Now()
	err := o.runBatch(ctx, rule, facts)
	o.record(ModeBatch, &o.batches, start, err)
	if err != nil {
		return nil, err
	}
	return facts, nil
}

// ExecuteChunked partitions the facts into chunks of chunkSize and runs
// each as an independent batch cycle, bounding peak working memory to
// chunkSize facts. Results keep the input order.
func (o *Orchestrator) ExecuteChunked(ctx context.Context, rule string, facts []any, chunkSize int) ([]any, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", chunkSize)
	}
	ctx = correlate(ctx)
	start := time.Now()

	var err error
	for begin := 0; begin < len(facts); begin += chunkSize {
		end := begin + chunkSize
		if end > len(facts) {
			end = len(facts)
		}
		if err = o.runBatch(ctx, rule, facts[begin:end]); err != nil {
			break
		}
	}

	o.record(ModeChunked, &o.chunks, start, err)
	if err != nil {
		return nil, err
	}
	return facts, nil
}

// ExecuteAsync submits the request to the bounded worker pool and returns
// a future immediately. Completion order across calls is not guaranteed.
func (o *Orchestrator) ExecuteAsync(ctx context.Context, req Request) *Future {
	ctx = correlate(ctx)
	o.asyncs.Add(1)
	o.sink.IncExecution(ModeAsync, "submitted")

	return o.async.submit(ctx, func(ctx context.Context) ([]any, error) {
		if req.ChunkSize > 0 {
			return o.ExecuteChunked(ctx, req.Rule, req.Facts, req.ChunkSize)
		}
		return o.ExecuteBatch(ctx, req.Rule, req.Facts)
	})
}

// FetchMatching returns the rule entries whose conditions match the fact,
// without firing them.
func (o *Orchestrator) FetchMatching(ctx context.Context, rule string, fact any) ([]*ast.RuleEntry, error) {
	ctx = correlate(ctx)

	p, s, err := o.acquire(ctx, rule)
	if err != nil {
		return nil, err
	}
	if err := s.Insert(o.cfg.Engine.FactName, fact); err != nil {
		p.Discard(s)
		return nil, o.execError(ctx, rule, s.ID(), PhaseInsert, err)
	}
	entries, err := s.FetchMatching()
	if err != nil {
		p.Discard(s)
		return nil, o.execError(ctx, rule, s.ID(), PhaseFire, err)
	}
	o.release(ctx, p, s)
	return entries, nil
}

// Reload evicts every cached artifact and recompiles all sources the
// provider knows about.
func (o *Orchestrator) Reload(ctx context.Context) error {
	ctx = correlate(ctx)
	o.cache.EvictAll()

	descs, err := o.provider.List(ctx)
	if err != nil {
		return err
	}

	var errsList []error
	for _, desc := range descs {
		if _, err := o.cache.GetOrCompile(ctx, desc.ID); err != nil {
			logger.WithContext(ctx).Errorf("reload of rule source %v failed : %v", desc.ID, err)
			errsList = append(errsList, err)
		}
	}
	return errors.Join(errsList...)
}

// Statistics snapshots the execution, cache and per-rule pool counters.
func (o *Orchestrator) Statistics() Statistics {
	o.mu.Lock()
	pools := make(map[string]pool.Statistics, len(o.pools))
	for rule, pe := range o.pools {
		pools[rule] = pe.pool.Statistics()
	}
	o.mu.Unlock()

	return Statistics{
		Execution: ExecStatistics{
			Singles:            o.singles.Load(),
			Batches:            o.batches.Load(),
			Chunks:             o.chunks.Load(),
			Asyncs:             o.asyncs.Load(),
			Failures:           o.failures.Load(),
			TotalDurationNanos: o.duration.Load(),
		},
		Cache: o.cache.Statistics(),
		Pools: pools,
	}
}

// ResetMetrics zeroes every monotonic counter.
func (o *Orchestrator) ResetMetrics() {
	o.singles.Store(0)
	o.batches.Store(0)
	o.chunks.Store(0)
	o.asyncs.Store(0)
	o.failures.Store(0)
	o.duration.Store(0)
	o.cache.ResetStatistics()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, pe := range o.pools {
		pe.pool.ResetStatistics()
	}
}

// Debug provides internal state information for debugging purposes.
func (o *Orchestrator) Debug() map[string]any {
	o.mu.Lock()
	pools := make(map[string]pool.Statistics, len(o.pools))
	for rule, pe := range o.pools {
		pools[rule] = pe.pool.Statistics()
	}
	o.mu.Unlock()

	return map[string]any{
		"config": o.cfg,
		"cache": map[string]any{
			"rules": o.cache.Keys(),
			"len":   o.cache.Len(),
			"stats": o.cache.Statistics(),
		},
		"pools": pools,
		"stats": utils.GetRuntimeStats(),
	}
}

// Close waits for in-flight async work, then disposes every pooled session
// and the artifact cache.
func (o *Orchestrator) Close() {
	if o.watchCancel != nil {
		o.watchCancel()
		<-o.watchDone
		o.watchCancel = nil
	}
	o.async.wait()

	o.mu.Lock()
	pools := o.pools
	o.pools = make(map[string]*poolEntry)
	o.mu.Unlock()

	for _, pe := range pools {
		pe.pool.Clear()
	}
	o.cache.Close()
}

// acquire resolves the artifact and borrows a session from its pool,
// creating or superseding the pool when the artifact changed.
func (o *Orchestrator) acquire(ctx context.Context, rule string) (*pool.Pool, *pool.Session, error) {
	artifact, err := o.cache.GetOrCompile(ctx, rule)
	if err != nil {
		return nil, nil, err
	}

	o.mu.Lock()
	pe := o.pools[rule]
	if pe == nil || pe.artifact != artifact {
		stale := pe
		pe = &poolEntry{
			artifact: artifact,
			pool: pool.New(artifact, pool.Config{
				MaxPooled: o.cfg.Pool.MaxPooled,
				MaxCycle:  o.cfg.Engine.MaxCycle,
			}, o.sink),
		}
		o.pools[rule] = pe
		o.mu.Unlock()
		if stale != nil {
			stale.pool.Clear()
		}
	} else {
		o.mu.Unlock()
	}

	s, err := pe.pool.Borrow()
	if err != nil {
		return nil, nil, err
	}
	return pe.pool, s, nil
}

// runBatch is the core execution cycle: acquire, then per fact insert and
// fire, then release. Any failure discards the session and propagates a
// wrapped ExecutionError; there is no partial success.
func (o *Orchestrator) runBatch(ctx context.Context, rule string, facts []any) error {
	if len(facts) == 0 {
		return nil
	}

	p, s, err := o.acquire(ctx, rule)
	if err != nil {
		return err
	}

	for i, fact := range facts {
		if i > 0 {
			s.ClearFacts()
		}
		if err := s.Insert(o.cfg.Engine.FactName, fact); err != nil {
			p.Discard(s)
			return o.execError(ctx, rule, s.ID(), PhaseInsert, fmt.Errorf("fact %d: %w", i, err))
		}
		if err := s.Fire(ctx); err != nil {
			p.Discard(s)
			return o.execError(ctx, rule, s.ID(), PhaseFire, fmt.Errorf("fact %d: %w", i, err))
		}
	}

	o.release(ctx, p, s)
	return nil
}

func (o *Orchestrator) release(ctx context.Context, p *pool.Pool, s *pool.Session) {
	// a failed release is a harmless cleanup failure, logged and swallowed
	if err := p.Return(s); err != nil {
		logger.WithContext(ctx).Warnf("failed to return session %v : %v", s.ID(), err)
	}
}

func (o *Orchestrator) execError(ctx context.Context, rule, sessionID, phase string, err error) error {
	wrapped := &errs.ExecutionError{
		Source:        rule,
		SessionID:     sessionID,
		CorrelationID: logger.CorrelationID(ctx),
		Phase:         phase,
		Err:           err,
	}
	logger.WithContext(ctx).Errorf("execution failed : %v", wrapped)
	return wrapped
}

func (o *Orchestrator) record(mode string, counter *atomic.Uint64, start time.Time, err error) {
	elapsed := time.Since(start)
	counter.Add(1)
	o.duration.Add(uint64(elapsed))

	status := "ok"
	if err != nil {
		status = "error"
		o.failures.Add(1)
	}
	o.sink.IncExecution(mode, status)
	o.sink.ObserveExecutionDuration(mode, elapsed)
}

// dropPool tears down the pool for rule. A non-nil artifact restricts the
// teardown to the pool serving exactly that artifact instance.
func (o *Orchestrator) dropPool(rule string, artifact *compile.Artifact) {
	o.mu.Lock()
	pe := o.pools[rule]
	if pe == nil || (artifact != nil && pe.artifact != artifact) {
		o.mu.Unlock()
		return
	}
	delete(o.pools, rule)
	o.mu.Unlock()

	pe.pool.Clear()
}

func correlate(ctx context.Context) context.Context {
	if logger.CorrelationID(ctx) != "" {
		return ctx
	}
	return logger.WithCorrelationID(ctx, ulid.Make().String())
}
