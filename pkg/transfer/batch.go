package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/util"
)

// BatchOptions configure a batch run over many export documents.
type BatchOptions struct {
	// Workers is the number of parallel parsers (0 = util.GetOptimalPoolSize()).
	Workers int
	// Modes for apply; empty means DefaultModes of the store's collections.
	Modes []string
	// DryRun previews without writing.
	DryRun bool
	// ReadFile defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
	Logger   *slog.Logger
}

// BatchResult is the outcome for one document. Err is set when the file
// could not be read or parsed; Apply is nil on dry runs.
type BatchResult struct {
	Path    string       `json:"path"`
	Preview *Preview     `json:"preview,omitempty"`
	Apply   *ApplyResult `json:"apply,omitempty"`
	Err     error        `json:"-"`
	Error   string       `json:"error,omitempty"`
}

// BatchStats summarises a batch run.
type BatchStats struct {
	Files    int           `json:"files"`
	Parsed   int           `json:"parsed"`
	Failed   int           `json:"failed"`
	Ready    int           `json:"ready"`
	Applied  int           `json:"applied"`
	Duration time.Duration `json:"duration"`
}

// RunBatch previews every path in parallel and then applies the ready items
// of each document in path order, so later documents win for shared tokens.
func RunBatch(ctx context.Context, store tokens.Store, paths []string, opts BatchOptions) ([]BatchResult, BatchStats, error) {
	start := time.Now()
	logger := util.OrDefault(opts.Logger)
	stats := BatchStats{Files: len(paths)}

	modes := opts.Modes
	if len(modes) == 0 && !opts.DryRun {
		colls, err := store.LocalCollections(ctx)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to list collections: %w", err)
		}
		modes = DefaultModes(colls)
	}

	results := PreviewFiles(ctx, store, paths, opts)
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			r.Error = r.Err.Error()
			stats.Failed++
			continue
		}
		stats.Parsed++
		stats.Ready += r.Preview.ReadyCount
		if opts.DryRun {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		res := Apply(ctx, store, modes, r.Preview.Ready())
		r.Apply = &res
		stats.Applied += res.AppliedCount
		logger.Info("document applied", "path", r.Path, "applied", res.AppliedCount, "errors", len(res.Errors))
	}
	stats.Duration = time.Since(start)
	return results, stats, nil
}

// PreviewFiles parses every path against store with a worker pool. Results
// are returned in the order of paths.
func PreviewFiles(ctx context.Context, store tokens.Store, paths []string, opts BatchOptions) []BatchResult {
	pool := newPreviewPool(ctx, store, opts)
	pool.Start()

	results := make([]BatchResult, len(paths))
	var collected sync.WaitGroup
	collected.Add(1)
	go func() {
		defer collected.Done()
		for r := range pool.results {
			results[r.jobID] = r.BatchResult
		}
	}()

	for i, p := range paths {
		if err := pool.Submit(previewJob{path: p, jobID: i}); err != nil {
			results[i] = BatchResult{Path: p, Err: err}
		}
	}
	pool.Stop()
	collected.Wait()

	for i, p := range paths {
		if results[i].Path == "" {
			err := context.Cause(ctx)
			if err == nil {
				err = errors.New("document was not processed")
			}
			results[i] = BatchResult{Path: p, Err: err}
		}
	}
	return results
}

type previewJob struct {
	path  string
	jobID int
}

type previewResult struct {
	BatchResult
	jobID int
}

// previewPool is a fixed set of goroutines parsing export documents.
type previewPool struct {
	numWorkers int
	jobs       chan previewJob
	results    chan previewResult
	wg         sync.WaitGroup
	store      tokens.Store
	read       func(string) ([]byte, error)
	logger     *slog.Logger

	ctx     context.Context
	started atomic.Bool
	stopped atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

func newPreviewPool(ctx context.Context, store tokens.Store, opts BatchOptions) *previewPool {
	n := util.GetOptimalPoolSizeWithOverride(opts.Workers)
	read := opts.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	return &previewPool{
		numWorkers: n,
		jobs:       make(chan previewJob, n*2),
		results:    make(chan previewResult, n),
		store:      store,
		read:       read,
		logger:     util.OrDefault(opts.Logger),
		ctx:        ctx,
	}
}

func (p *previewPool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.logger.Debug("starting preview pool", "workers", p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *previewPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.results <- previewResult{BatchResult: p.process(job), jobID: job.jobID}
		}
	}
}

func (p *previewPool) process(job previewJob) BatchResult {
	data, err := p.read(job.path)
	if err != nil {
		p.jobsFailed.Add(1)
		return BatchResult{Path: job.path, Err: fmt.Errorf("failed to read document: %w", err)}
	}
	preview, err := Parse(p.ctx, p.store, data)
	if err != nil {
		p.jobsFailed.Add(1)
		return BatchResult{Path: job.path, Err: err}
	}
	p.jobsProcessed.Add(1)
	return BatchResult{Path: job.path, Preview: preview}
}

// Submit blocks while the queue is full.
func (p *previewPool) Submit(job previewJob) error {
	if p.stopped.Load() {
		return fmt.Errorf("preview pool is stopped")
	}
	p.jobsSubmitted.Add(1)
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("preview pool cancelled: %w", p.ctx.Err())
	case p.jobs <- job:
		return nil
	}
}

// Stop closes the queue, waits for in-flight jobs and closes results.
func (p *previewPool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.jobs)
	p.wg.Wait()
	close(p.results)

	p.logger.Debug("preview pool stopped",
		"jobs_submitted", p.jobsSubmitted.Load(),
		"jobs_processed", p.jobsProcessed.Load(),
		"jobs_failed", p.jobsFailed.Load())
}
