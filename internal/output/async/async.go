package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hejijunhao/vitals/internal/output"
)

const (
	defaultBufferSize   = 16
	defaultDrainTimeout = 5 * time.Second
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async output: closed")

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity in batches. Default: 16.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the batch) when the
// buffer is full, instead of blocking.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithDrainTimeout bounds how long Close waits for queued batches. Default: 5s.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// Async decouples a run from slow mirrors via a buffered channel. The runner
// writes into the channel; a background goroutine drains it to the wrapped
// output. Errors from the inner output are passed to errFunc rather than
// propagated to the caller. Write must not be called concurrently with Close.
type Async struct {
	inner        output.Output
	ch           chan output.Batch
	done         chan struct{}
	errFunc      func(error)
	bufSize      int
	dropOnFull   bool
	drainTimeout time.Duration
	closed       atomic.Bool
	closeOnce    sync.Once
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		errFunc:      func(err error) { slog.Warn("async output write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan output.Batch, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write queues the batch. By default, blocks if the channel is full
// (backpressure). With WithDropOnFull, returns nil immediately and the batch
// is lost.
func (a *Async) Write(_ context.Context, batch output.Batch) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if a.dropOnFull {
		select {
		case a.ch <- batch:
		default:
			slog.Warn("async output buffer full, dropping batch",
				"run", batch.RunID, "predictions", len(batch.Predictions))
		}
		return nil
	}
	a.ch <- batch
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.ch)
		t := time.NewTimer(a.drainTimeout)
		defer t.Stop()
		select {
		case <-a.done:
		case <-t.C:
			slog.Warn("async output drain timed out", "timeout", a.drainTimeout)
		}
		err = a.inner.Close()
	})
	return err
}

// drain reads batches from the channel and writes them to the inner output.
func (a *Async) drain() {
	defer close(a.done)
	for batch := range a.ch {
		if err := a.inner.Write(context.Background(), batch); err != nil {
			a.errFunc(err)
		}
	}
}
