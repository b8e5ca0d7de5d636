package vitals

import (
	"context"
	"fmt"

	"github.com/hejijunhao/vitals/internal/engine"
	"github.com/hejijunhao/vitals/internal/engine/dedup"
	"github.com/hejijunhao/vitals/internal/engine/predictor"
	"github.com/hejijunhao/vitals/internal/model"
	"github.com/hejijunhao/vitals/internal/pipeline"
	"github.com/hejijunhao/vitals/internal/source"
	"github.com/hejijunhao/vitals/internal/source/api"
	"github.com/hejijunhao/vitals/internal/source/replay"
	parse "github.com/hejijunhao/vitals/internal/vitals"
)

// Predictor labels an M×5 feature matrix (body temperature, systolic and
// diastolic pressure, heart rate, respiratory rate) with one label per row.
type Predictor interface {
	Predict(ctx context.Context, features [][]float64) ([]string, error)
}

// Errors a run can fail with. Match them with errors.Is.
var (
	ErrEmptyRun          = engine.ErrEmptyRun
	ErrPredictorContract = engine.ErrPredictorContract
	ErrFetch             = source.ErrFetch
	ErrSchema            = source.ErrSchema
	ErrParseWidth        = parse.ErrParseWidth
)

// StageError names the stage and cycle at which a run aborted.
type StageError = pipeline.StageError

// Vitals runs the collection pipeline.
type Vitals struct {
	runner    *pipeline.Runner
	predictor Predictor
	close     func() error
}

// New builds a Vitals instance. Loading an ONNX model (WithModel) is the
// only expensive step.
func New(opts ...Option) (*Vitals, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	fetcher, err := newFetcher(o)
	if err != nil {
		return nil, fmt.Errorf("vitals: %w", err)
	}

	p, closeFn, err := newPredictor(o)
	if err != nil {
		return nil, fmt.Errorf("vitals: %w", err)
	}

	runner := pipeline.New(fetcher, engine.New(p),
		pipeline.WithInterval(o.pollInterval),
		pipeline.WithFetchTimeout(o.fetchTimeout),
		pipeline.WithRetry(o.retryAttempts, o.retryBase),
		pipeline.WithDedup(dedup.Config{IgnoreTimestamp: o.ignoreTimestamp}),
		pipeline.WithOutputPath(o.outputPath),
	)
	return &Vitals{runner: runner, predictor: p, close: closeFn}, nil
}

func newFetcher(o options) (source.Fetcher, error) {
	cfg := source.Config{
		Provider:   o.provider,
		Endpoint:   o.endpoint,
		APIKey:     o.apiKey,
		RecordsKey: o.recordsKey,
		Timeout:    o.fetchTimeout,
	}
	if o.provider == "replay" {
		return replay.New(cfg)
	}
	return api.New(cfg)
}

func newPredictor(o options) (Predictor, func() error, error) {
	nop := func() error { return nil }
	switch {
	case o.predictor != nil:
		return o.predictor, nop, nil
	case o.modelPath != "":
		m, err := predictor.NewONNX(o.modelPath, o.ortLib)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return predictor.NewRules(o.alarmThreshold), nop, nil
	}
}

// Batch polls exactly n times (n >= 1) and writes the dataset.
func (v *Vitals) Batch(ctx context.Context, n int) (*Result, error) {
	res, err := v.runner.Batch(ctx, n)
	if err != nil {
		return nil, err
	}
	return resultFromPipeline(res), nil
}

// Realtime polls until ctx is cancelled and then writes the dataset.
func (v *Vitals) Realtime(ctx context.Context) (*Result, error) {
	res, err := v.runner.Realtime(ctx)
	if err != nil {
		return nil, err
	}
	return resultFromPipeline(res), nil
}

// Predict parses a single vital-signs blob such as "36.6 120 80 75 16" and
// returns the predictor's label for it.
func (v *Vitals) Predict(ctx context.Context, blob string) (string, error) {
	row, err := parse.Parse(model.RawRecord{VitalSigns: blob})
	if err != nil {
		return "", err
	}
	preds, err := engine.New(v.predictor).Infer(ctx, []model.Row{row})
	if err != nil {
		return "", err
	}
	return preds[0].Label, nil
}

// Close releases model resources.
func (v *Vitals) Close() error {
	return v.close()
}

func resultFromPipeline(r *pipeline.Result) *Result {
	preds := make([]Prediction, len(r.Predictions))
	for i, p := range r.Predictions {
		preds[i] = predictionFromModel(p)
	}
	return &Result{
		RunID:       r.RunID,
		Cycles:      r.Cycles,
		Collected:   r.Collected,
		Unique:      r.Unique,
		Path:        r.Path,
		Predictions: preds,
	}
}
