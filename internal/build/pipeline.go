package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/logging"
)

// RenderFunc produces the page bytes for one render unit. Implementations
// must be safe for concurrent use; the pipeline calls it from every worker.
type RenderFunc func(ctx context.Context, unit *BuildUnit) ([]byte, error)

// OptimizeFunc executes one image unit, writing its own outputs. It
// returns the primary output path and total bytes written.
type OptimizeFunc func(ctx context.Context, unit *BuildUnit) (string, int64, error)

// BuildResult is the terminal state of one unit. Exactly one result is
// emitted per dequeued unit.
type BuildResult struct {
	Unit         *BuildUnit
	CacheHit     bool
	BytesWritten int64
	Duration     time.Duration
	Err          error
}

// Pipeline runs the worker pool. Workers dequeue units, consult the cache,
// render misses, publish pages atomically, and emit one result each.
type Pipeline struct {
	workers  int
	force    bool
	queue    *TaskQueue
	cache    *BuildCache
	render   RenderFunc
	optimize OptimizeFunc
	metrics  *Metrics
	results  chan BuildResult
	log      logging.Logger

	wg      sync.WaitGroup
	started bool
}

// PipelineConfig configures a pipeline.
type PipelineConfig struct {
	Workers   int
	QueueSize int
	Force     bool
}

// NewPipeline creates a pipeline. Workers default to 1 when the config
// asks for fewer. optimize may be nil when no image units are planned.
func NewPipeline(cfg PipelineConfig, cache *BuildCache, render RenderFunc, optimize OptimizeFunc, log logging.Logger) *Pipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Pipeline{
		workers:  workers,
		force:    cfg.Force,
		queue:    NewTaskQueue(cfg.QueueSize),
		cache:    cache,
		render:   render,
		optimize: optimize,
		metrics:  NewMetrics(),
		results:  make(chan BuildResult, workers),
		log:      log.WithComponent("pipeline"),
	}
}

// Start launches the workers. Results must be drained by the caller; the
// results channel closes once all workers exit.
func (p *Pipeline) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Submit enqueues a unit for building.
func (p *Pipeline) Submit(ctx context.Context, unit *BuildUnit) error {
	return p.queue.Enqueue(ctx, unit)
}

// CloseQueue signals that no further units will be submitted. Workers
// drain the queue and exit.
func (p *Pipeline) CloseQueue() {
	p.queue.Close()
}

// Results exposes the per-unit outcomes.
func (p *Pipeline) Results() <-chan BuildResult {
	return p.results
}

// Metrics returns the pipeline counters.
func (p *Pipeline) Metrics() MetricsSnapshot {
	return p.metrics.Snapshot()
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()

	for unit := range p.queue.Tasks() {
		select {
		case <-ctx.Done():
			// Cancelled units are failures, not silent drops, so the
			// report still accounts for every planned unit.
			p.emit(ctx, BuildResult{
				Unit: unit,
				Err:  errors.NewBuildError(errors.ErrCodeRenderFailure, "build cancelled", ctx.Err()),
			})
			continue
		default:
		}

		p.emit(ctx, p.process(ctx, unit))
	}
}

func (p *Pipeline) process(ctx context.Context, unit *BuildUnit) BuildResult {
	start := time.Now()

	if !p.force {
		if entry, ok := p.cache.Lookup(unit.Key(), unit.Fingerprint); ok {
			p.metrics.recordCacheHit()
			p.log.Debug(ctx, "cache hit", "site", unit.Site, "game", unit.Game.ID, "output", entry.OutputPath)
			return BuildResult{Unit: unit, CacheHit: true, Duration: time.Since(start)}
		}
	}

	var (
		output string
		bytes  int64
		err    error
	)

	switch unit.Kind {
	case UnitOptimizeImage:
		output, bytes, err = p.runOptimize(ctx, unit)
	default:
		output, bytes, err = p.runRender(ctx, unit)
	}
	if err != nil {
		p.metrics.recordFailure()
		return BuildResult{Unit: unit, Duration: time.Since(start), Err: err}
	}

	p.cache.Store(&CacheEntry{
		Key:         unit.Key(),
		Fingerprint: unit.Fingerprint,
		OutputPath:  output,
		Size:        bytes,
		BuiltAt:     time.Now(),
	})
	p.metrics.recordBuilt(bytes)

	return BuildResult{Unit: unit, BytesWritten: bytes, Duration: time.Since(start)}
}

func (p *Pipeline) runRender(ctx context.Context, unit *BuildUnit) (string, int64, error) {
	page, err := p.render(ctx, unit)
	if err != nil {
		return "", 0, errors.NewBuildError(errors.ErrCodeRenderFailure, "rendering "+unit.Key(), err).
			WithSite(unit.Site).WithGame(unit.Game.ID)
	}
	if err := writePage(unit.OutputPath, page); err != nil {
		return "", 0, err
	}
	return unit.OutputPath, int64(len(page)), nil
}

func (p *Pipeline) runOptimize(ctx context.Context, unit *BuildUnit) (string, int64, error) {
	if p.optimize == nil {
		return "", 0, errors.NewBuildError(errors.ErrCodeOptimizeFailure, "no optimizer configured", nil)
	}
	output, bytes, err := p.optimize(ctx, unit)
	if err != nil {
		return "", 0, errors.NewBuildError(errors.ErrCodeOptimizeFailure, "optimizing "+unit.Key(), err).
			WithSite(unit.Site).WithGame(unit.Game.ID)
	}
	return output, bytes, nil
}

func (p *Pipeline) emit(ctx context.Context, result BuildResult) {
	select {
	case p.results <- result:
	case <-ctx.Done():
		// The orchestrator stopped draining; drop the result rather than
		// deadlock the worker.
		p.log.Warn(ctx, ctx.Err(), "dropping build result", "key", result.Unit.Key())
	}
}

// writePage publishes page bytes via temp file and rename so readers never
// observe a partially written page.
func writePage(dest string, page []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeRenderFailure, "creating page directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".page-*")
	if err != nil {
		return errors.NewIOError(errors.ErrCodeRenderFailure, "creating temp page file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(page); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewIOError(errors.ErrCodeRenderFailure, "writing page", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError(errors.ErrCodeRenderFailure, "closing page", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError(errors.ErrCodeRenderFailure, "publishing page", err)
	}

	return nil
}
