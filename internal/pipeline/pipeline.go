package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hejijunhao/vitals/internal/engine"
	"github.com/hejijunhao/vitals/internal/engine/dedup"
	"github.com/hejijunhao/vitals/internal/logging"
	"github.com/hejijunhao/vitals/internal/metrics"
	"github.com/hejijunhao/vitals/internal/model"
	"github.com/hejijunhao/vitals/internal/output"
	"github.com/hejijunhao/vitals/internal/output/csvfile"
	"github.com/hejijunhao/vitals/internal/source"
	"github.com/hejijunhao/vitals/internal/vitals"
)

const (
	DefaultInterval     = 5 * time.Second
	DefaultFetchTimeout = 30 * time.Second
	DefaultRetryBase    = time.Second
)

// Mode names, used as the metrics label and in logs.
const (
	ModeBatch    = "batch"
	ModeRealtime = "realtime"
)

// ErrInvalidBound is returned by Batch when asked for fewer than one cycle.
var ErrInvalidBound = errors.New("pipeline: batch cycle count must be at least 1")

// Stage names the step of a run that failed.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageParse    Stage = "parse"
	StageFinalize Stage = "finalize"
	StageInfer    Stage = "infer"
	StagePersist  Stage = "persist"
)

// StageError is a hard failure that aborted a run. Cycle is 1-based for
// fetch and parse, and 0 for the finalize stages.
type StageError struct {
	Stage Stage
	Cycle int
	Err   error
}

func (e *StageError) Error() string {
	if e.Cycle > 0 {
		return fmt.Sprintf("pipeline: %s (cycle %d): %v", e.Stage, e.Cycle, e.Err)
	}
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result summarises a successful run.
type Result struct {
	RunID       string
	Cycles      int
	Collected   int // rows accumulated, duplicates included
	Unique      int
	Path        string
	Predictions []model.Prediction
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the wait between cycles. Default: 5s.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithFetchTimeout bounds each fetch attempt. Zero disables the bound. Default: 30s.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Runner) { r.fetchTimeout = d }
}

// WithRetry retries a failed fetch up to attempts times within the same
// cycle, waiting base, 2*base, 4*base... between attempts. Default: no retries.
func WithRetry(attempts int, base time.Duration) Option {
	return func(r *Runner) {
		r.retryAttempts = max(attempts, 0)
		r.retryBase = base
	}
}

// WithDedup sets the duplicate-detection policy.
func WithDedup(cfg dedup.Config) Option {
	return func(r *Runner) { r.dedup = cfg }
}

// WithOutputPath sets the dataset path. "{run}" is replaced by the run ID.
func WithOutputPath(path string) Option {
	return func(r *Runner) {
		if path != "" {
			r.outputPath = path
		}
	}
}

// WithMirror sets a best-effort output that receives the predictions after
// the dataset has been written.
func WithMirror(o output.Output) Option {
	return func(r *Runner) { r.mirror = o }
}

// WithMetrics sets the collectors updated by each run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner drives fetch, parse and accumulate cycles and finalizes the run into
// a predictions dataset. A Runner holds no per-run state and may be reused.
type Runner struct {
	fetcher source.Fetcher
	engine  *engine.Engine

	interval      time.Duration
	fetchTimeout  time.Duration
	retryAttempts int
	retryBase     time.Duration
	dedup         dedup.Config
	outputPath    string
	mirror        output.Output
	metrics       *metrics.Metrics
}

// New creates a Runner reading from f and predicting with eng.
func New(f source.Fetcher, eng *engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		fetcher:      f,
		engine:       eng,
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		retryBase:    DefaultRetryBase,
		outputPath:   csvfile.DefaultPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Batch runs exactly n cycles, then finalizes. Cancelling ctx while waiting
// between cycles aborts the run without writing anything.
func (r *Runner) Batch(ctx context.Context, n int) (*Result, error) {
	if n < 1 {
		return nil, ErrInvalidBound
	}
	return r.run(ctx, ModeBatch, n)
}

// Realtime cycles until ctx is cancelled, then finalizes with whatever has
// been accumulated. A fetch in progress is never interrupted.
func (r *Runner) Realtime(ctx context.Context) (*Result, error) {
	return r.run(ctx, ModeRealtime, 0)
}

func (r *Runner) run(ctx context.Context, mode string, n int) (*Result, error) {
	runID := uuid.NewString()
	log := logging.ForRun(runID).With("mode", mode)
	log.Info("run started", "cycles", n, "interval", r.interval)

	acc := NewAccumulator(dedup.New(r.dedup))
	cycles := 0
	for {
		if mode == ModeBatch && cycles == n {
			break
		}
		if cycles > 0 {
			if err := r.wait(ctx); err != nil {
				if mode == ModeRealtime {
					break
				}
				r.metrics.RunFinished("cancelled")
				log.Warn("run cancelled", "cycles", cycles)
				return nil, fmt.Errorf("pipeline: batch cancelled after %d of %d cycles: %w", cycles, n, err)
			}
		}

		cycles++
		rows, err := r.cycle(ctx, mode, cycles, log)
		if err != nil {
			return nil, r.fail(log, err)
		}
		if err := acc.Append(rows...); err != nil {
			return nil, err
		}
		r.metrics.Cycle(mode, len(rows))
		log.Debug("cycle complete", "cycle", cycles, "rows", len(rows), "buffered", acc.Len())

		if mode == ModeRealtime && ctx.Err() != nil {
			break
		}
	}

	// Cancellation has been honoured by now; finalize runs to completion.
	return r.finalize(context.WithoutCancel(ctx), runID, cycles, acc, log)
}

// cycle performs one FETCH → PARSE step.
func (r *Runner) cycle(ctx context.Context, mode string, cycle int, log *slog.Logger) ([]model.Row, error) {
	fetchCtx := ctx
	if mode == ModeRealtime {
		fetchCtx = context.WithoutCancel(ctx)
	}

	raws, err := r.fetch(fetchCtx, cycle, log)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Cycle: cycle, Err: err}
	}
	if len(raws) == 0 {
		log.Info("empty page", "cycle", cycle)
		return nil, nil
	}

	rows := make([]model.Row, 0, len(raws))
	for _, raw := range raws {
		row, toks, err := vitals.ParseTokens(raw)
		if err != nil {
			return nil, &StageError{Stage: StageParse, Cycle: cycle, Err: err}
		}
		if extra := toks.Extra(); extra > 0 {
			log.Debug("extra vital-sign tokens ignored", "cycle", cycle, "id", raw.ID, "extra", extra)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fetch calls the fetcher, retrying transport failures with exponential
// backoff. Schema errors are returned immediately.
func (r *Runner) fetch(ctx context.Context, cycle int, log *slog.Logger) ([]model.RawRecord, error) {
	for attempt := 0; ; attempt++ {
		raws, err := r.fetchOnce(ctx)
		if err == nil {
			return raws, nil
		}
		if !errors.Is(err, source.ErrFetch) || attempt >= r.retryAttempts {
			return nil, err
		}

		wait := backoffDelay(r.retryBase, attempt)
		log.Warn("fetch failed, retrying", "cycle", cycle, "attempt", attempt+1, "wait", wait, "error", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %w", err, ctx.Err())
		case <-t.C:
		}
	}
}

func (r *Runner) fetchOnce(ctx context.Context) ([]model.RawRecord, error) {
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}
	start := time.Now()
	raws, err := r.fetcher.Fetch(ctx)
	r.metrics.Fetched(time.Since(start))
	return raws, err
}

// backoffDelay returns the wait before retry attempt+1: base, 2*base, 4*base...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << attempt
}

func (r *Runner) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.interval <= 0 {
		return nil
	}
	t := time.NewTimer(r.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// finalize runs DEDUP → INFER → PERSIST → MIRROR.
func (r *Runner) finalize(ctx context.Context, runID string, cycles int, acc *Accumulator, log *slog.Logger) (*Result, error) {
	collected := acc.Len()
	rows, err := acc.Finalize()
	if err != nil {
		return nil, r.fail(log, &StageError{Stage: StageFinalize, Err: err})
	}
	if len(rows) == 0 {
		return nil, r.fail(log, &StageError{Stage: StageFinalize, Err: engine.ErrEmptyRun})
	}

	preds, err := r.engine.Infer(ctx, rows)
	if err != nil {
		return nil, r.fail(log, &StageError{Stage: StageInfer, Err: err})
	}

	path := csvfile.ExpandPath(r.outputPath, runID)
	if err := csvfile.Persist(preds, path); err != nil {
		return nil, r.fail(log, &StageError{Stage: StagePersist, Err: err})
	}

	labels := make([]string, len(preds))
	for i, p := range preds {
		labels[i] = p.Label
	}
	r.metrics.Persisted(labels)
	r.metrics.RunFinished("ok")

	if r.mirror != nil {
		if err := r.mirror.Write(ctx, output.Batch{RunID: runID, Predictions: preds}); err != nil {
			log.Warn("mirror write failed", "error", err)
		}
	}

	log.Info("run complete", "cycles", cycles, "collected", collected, "unique", len(rows), "path", path)
	return &Result{
		RunID:       runID,
		Cycles:      cycles,
		Collected:   collected,
		Unique:      len(rows),
		Path:        path,
		Predictions: preds,
	}, nil
}

func (r *Runner) fail(log *slog.Logger, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		r.metrics.RunFinished(string(se.Stage))
		log.Error("run aborted", "stage", se.Stage, "cycle", se.Cycle, "error", se.Err)
	}
	return err
}
