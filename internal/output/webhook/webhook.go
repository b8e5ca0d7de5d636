package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hejijunhao/vitals/internal/output"
)

const (
	defaultBatchSize = 50
	defaultTimeout   = 10 * time.Second
	defaultRetryBase = time.Second
	maxRetries       = 3
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets the maximum number of records per POST. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// WithRetryBase sets the first retry delay; later retries double it. Default: 1s.
func WithRetryBase(d time.Duration) Option {
	return func(o *Output) { o.retryBase = d }
}

// Output POSTs a run's predictions to an HTTP endpoint as JSON arrays of
// output.Record, at most batchSize records per request. Retries on 5xx with
// exponential backoff.
type Output struct {
	client    *http.Client
	url       string
	headers   map[string]string
	batchSize int
	retryBase time.Duration
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:    &http.Client{Timeout: defaultTimeout},
		url:       url,
		batchSize: defaultBatchSize,
		retryBase: defaultRetryBase,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Write sends the batch in chunks. It stops at the first chunk that fails.
func (o *Output) Write(ctx context.Context, batch output.Batch) error {
	records := output.Records(batch)
	for start := 0; start < len(records); start += o.batchSize {
		end := min(start+o.batchSize, len(records))
		body, err := json.Marshal(records[start:end])
		if err != nil {
			return fmt.Errorf("webhook: marshal: %w", err)
		}
		if err := o.postWithRetry(ctx, body); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; every Write completes synchronously.
func (o *Output) Close() error {
	return nil
}

// postWithRetry sends the body via HTTP POST with retry on 5xx.
func (o *Output) postWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(o.retryBase << (attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("webhook: %w", ctx.Err())
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: HTTP %d", resp.StatusCode)

		// Only retry on 5xx server errors.
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
