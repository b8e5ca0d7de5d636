package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hejijunhao/vitals/internal/engine"
	"github.com/hejijunhao/vitals/internal/engine/predictor"
	"github.com/hejijunhao/vitals/internal/model"
	"github.com/hejijunhao/vitals/internal/output"
	"github.com/hejijunhao/vitals/internal/source"
	"github.com/hejijunhao/vitals/internal/source/api"
	"github.com/hejijunhao/vitals/internal/vitals"
)

// --- mocks ---

// scriptedFetcher returns pages[i] (or errs[i]) on the i-th call and empty
// pages once the script runs out. onFetch, if set, runs before each call.
type scriptedFetcher struct {
	mu      sync.Mutex
	pages   [][]model.RawRecord
	errs    []error
	calls   int
	onFetch func(call int, ctx context.Context)
}

func (f *scriptedFetcher) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	if f.onFetch != nil {
		f.onFetch(call, ctx)
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call < len(f.pages) {
		return f.pages[call], nil
	}
	return nil, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// matrixPredictor labels every row "1" and remembers the matrix it saw.
type matrixPredictor struct {
	seen [][]float64
}

func (p *matrixPredictor) Predict(_ context.Context, f [][]float64) ([]string, error) {
	p.seen = f
	labels := make([]string, len(f))
	for i := range labels {
		labels[i] = predictor.LabelAlarm
	}
	return labels, nil
}

type mockMirror struct {
	mu      sync.Mutex
	batches []output.Batch
	err     error
}

func (m *mockMirror) Write(_ context.Context, b output.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, b)
	return m.err
}

func (m *mockMirror) Close() error { return nil }

func raw(id, signs, ts string) model.RawRecord {
	return model.RawRecord{ID: id, VitalSigns: signs, Timestamp: ts}
}

func newRunner(t *testing.T, f source.Fetcher, p predictor.Predictor, opts ...Option) (*Runner, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "predictions.csv")
	opts = append([]Option{WithInterval(0), WithOutputPath(path)}, opts...)
	return New(f, engine.New(p), opts...), path
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expected no artifact at %s", path)
}

// --- batch mode ---

func TestBatchEndToEndDeduplicatesAcrossCycles(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"patient_history":[{"id":"P1","vital_signs":"36.6 120 80 75 16","timestamp":"t1"}]}`)
	}))
	defer srv.Close()

	fetcher, err := api.New(source.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	p := &matrixPredictor{}
	r, path := newRunner(t, fetcher, p)

	res, err := r.Batch(context.Background(), 2)
	require.NoError(t, err)

	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, 2, res.Cycles)
	assert.Equal(t, 2, res.Collected)
	assert.Equal(t, 1, res.Unique)
	assert.Equal(t, path, res.Path)
	assert.NotEmpty(t, res.RunID)
	require.Equal(t, [][]float64{{36.6, 120, 80, 75, 16}}, p.seen)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "pat_id, body_temp, blood_pres_sys, blood_pres_dia, heart_rate, resp_rate, time_stmp, predic\n" +
		"P1, 36.6, 120, 80, 75, 16, t1, 1\n"
	assert.Equal(t, want, string(data))
}

func TestBatchRunsExactlyNCyclesOnEmptyPages(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher, err := api.New(source.Config{Endpoint: srv.URL})
	require.NoError(t, err)
	r, path := newRunner(t, fetcher, &matrixPredictor{})

	_, err = r.Batch(context.Background(), 4)
	require.ErrorIs(t, err, engine.ErrEmptyRun)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFinalize, se.Stage)
	assert.EqualValues(t, 4, hits.Load())
	assertNoFile(t, path)
}

func TestBatchRejectsInvalidBound(t *testing.T) {
	f := &scriptedFetcher{}
	r, _ := newRunner(t, f, &matrixPredictor{})

	for _, n := range []int{0, -1} {
		_, err := r.Batch(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidBound)
	}
	assert.Zero(t, f.Calls())
}

func TestBatchAbortsOnSchemaError(t *testing.T) {
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120 80 75 16", "t1")}},
		errs:  []error{nil, fmt.Errorf("%w: patient_history is not an array", source.ErrSchema)},
	}
	r, path := newRunner(t, f, &matrixPredictor{}, WithRetry(3, time.Millisecond))

	_, err := r.Batch(context.Background(), 3)
	require.ErrorIs(t, err, source.ErrSchema)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFetch, se.Stage)
	assert.Equal(t, 2, se.Cycle)
	assert.Equal(t, 2, f.Calls(), "schema errors must not be retried")
	assertNoFile(t, path)
}

func TestBatchAbortsOnShortVitalSigns(t *testing.T) {
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120", "t1")}},
	}
	r, path := newRunner(t, f, &matrixPredictor{})

	_, err := r.Batch(context.Background(), 2)
	require.ErrorIs(t, err, vitals.ErrParseWidth)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageParse, se.Stage)
	assert.Equal(t, 1, se.Cycle)
	assert.Equal(t, 1, f.Calls())
	assertNoFile(t, path)
}

func TestBatchAbortsOnFetchError(t *testing.T) {
	f := &scriptedFetcher{
		errs: []error{fmt.Errorf("%w: connection refused", source.ErrFetch)},
	}
	r, path := newRunner(t, f, &matrixPredictor{})

	_, err := r.Batch(context.Background(), 2)
	require.ErrorIs(t, err, source.ErrFetch)
	assert.Equal(t, 1, f.Calls())
	assertNoFile(t, path)
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	fetchErr := fmt.Errorf("%w: timeout", source.ErrFetch)
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{nil, nil, {raw("P1", "36.6 120 80 75 16", "t1")}},
		errs:  []error{fetchErr, fetchErr},
	}
	r, _ := newRunner(t, f, &matrixPredictor{}, WithRetry(2, time.Millisecond))

	res, err := r.Batch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Calls())
	assert.Equal(t, 1, res.Cycles)
	assert.Equal(t, 1, res.Unique)
}

func TestFetchRetriesExhausted(t *testing.T) {
	fetchErr := fmt.Errorf("%w: timeout", source.ErrFetch)
	f := &scriptedFetcher{errs: []error{fetchErr, fetchErr, fetchErr}}
	r, path := newRunner(t, f, &matrixPredictor{}, WithRetry(1, time.Millisecond))

	_, err := r.Batch(context.Background(), 1)
	require.ErrorIs(t, err, source.ErrFetch)
	assert.Equal(t, 2, f.Calls())
	assertNoFile(t, path)
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, backoffDelay(base, 0))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, 1))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, 2))
}

func TestBatchCancelDuringWaitWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120 80 75 16", "t1")}},
		onFetch: func(int, context.Context) {
			cancel()
		},
	}
	r, path := newRunner(t, f, &matrixPredictor{}, WithInterval(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := r.Batch(ctx, 3)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		var se *StageError
		assert.False(t, errors.As(err, &se))
	case <-time.After(5 * time.Second):
		t.Fatal("Batch did not return after cancellation")
	}
	assert.Equal(t, 1, f.Calls())
	assertNoFile(t, path)
}

func TestBatchPredictorContractViolation(t *testing.T) {
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120 80 75 16", "t1"), raw("P2", "37 110 70 80 14", "t1")}},
	}
	short := predictor.Func(func(context.Context, [][]float64) ([]string, error) {
		return []string{"0"}, nil
	})
	r, path := newRunner(t, f, short)

	_, err := r.Batch(context.Background(), 1)
	require.ErrorIs(t, err, engine.ErrPredictorContract)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageInfer, se.Stage)
	assertNoFile(t, path)
}

func TestOutputPathRunToken(t *testing.T) {
	dir := t.TempDir()
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120 80 75 16", "t1")}},
	}
	r := New(f, engine.New(&matrixPredictor{}),
		WithInterval(0),
		WithOutputPath(filepath.Join(dir, "run-{run}.csv")))

	res, err := r.Batch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-"+res.RunID+".csv"), res.Path)
	assert.FileExists(t, res.Path)
}

// --- mirrors ---

func TestMirrorReceivesPredictions(t *testing.T) {
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120 80 75 16", "t1")}},
	}
	m := &mockMirror{}
	r, _ := newRunner(t, f, &matrixPredictor{}, WithMirror(m))

	res, err := r.Batch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, m.batches, 1)
	assert.Equal(t, res.RunID, m.batches[0].RunID)
	assert.Equal(t, res.Predictions, m.batches[0].Predictions)
}

func TestMirrorFailureDoesNotFailRun(t *testing.T) {
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120 80 75 16", "t1")}},
	}
	m := &mockMirror{err: errors.New("broker down")}
	r, path := newRunner(t, f, &matrixPredictor{}, WithMirror(m))

	_, err := r.Batch(context.Background(), 1)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Len(t, m.batches, 1)
}

func TestMirrorNotCalledOnAbort(t *testing.T) {
	f := &scriptedFetcher{}
	m := &mockMirror{}
	r, _ := newRunner(t, f, &matrixPredictor{}, WithMirror(m))

	_, err := r.Batch(context.Background(), 1)
	require.Error(t, err)
	assert.Empty(t, m.batches)
}

// --- realtime mode ---

func TestRealtimeFinalizesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &scriptedFetcher{
		pages: [][]model.RawRecord{
			{raw("P1", "36.6 120 80 75 16", "t1")},
			{raw("P1", "36.6 120 80 75 16", "t1")},
			{raw("P2", "38.2 100 65 110 22", "t2")},
		},
		onFetch: func(call int, _ context.Context) {
			if call == 2 {
				cancel()
			}
		},
	}
	r, path := newRunner(t, f, &matrixPredictor{})

	res, err := r.Realtime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Cycles)
	assert.Equal(t, 3, res.Collected)
	assert.Equal(t, 2, res.Unique)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "P2, 38.2, 100, 65, 110, 22, t2, 1", lines[2])
}

func TestRealtimeFetchIsNotInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var fetchCtxErr error
	f := &scriptedFetcher{
		pages: [][]model.RawRecord{{raw("P1", "36.6 120 80 75 16", "t1")}},
		onFetch: func(_ int, fctx context.Context) {
			fetchCtxErr = fctx.Err()
		},
	}
	r, path := newRunner(t, f, &matrixPredictor{})

	res, err := r.Realtime(ctx)
	require.NoError(t, err)
	assert.NoError(t, fetchCtxErr, "fetch context must be detached from cancellation")
	assert.Equal(t, 1, res.Cycles)
	assert.FileExists(t, path)
}

func TestRealtimeEmptyRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &scriptedFetcher{
		onFetch: func(call int, _ context.Context) {
			if call == 1 {
				cancel()
			}
		},
	}
	r, path := newRunner(t, f, &matrixPredictor{})

	_, err := r.Realtime(ctx)
	require.ErrorIs(t, err, engine.ErrEmptyRun)
	assert.Equal(t, 2, f.Calls())
	assertNoFile(t, path)
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: StageFetch, Cycle: 3, Err: source.ErrFetch}
	assert.Equal(t, "pipeline: fetch (cycle 3): source: fetch failed", err.Error())

	err = &StageError{Stage: StageFinalize, Err: engine.ErrEmptyRun}
	assert.Equal(t, "pipeline: finalize: engine: no rows collected in run", err.Error())
}
