package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hejijunhao/vitals/internal/engine/predictor"
	"github.com/hejijunhao/vitals/internal/model"
)

var (
	// ErrEmptyRun reports that a whole run produced no rows to predict on.
	ErrEmptyRun = errors.New("engine: no rows collected in run")

	// ErrPredictorContract reports a predictor that returned the wrong
	// number of labels.
	ErrPredictorContract = errors.New("engine: predictor contract violated")
)

// ContractError records the row/label mismatch behind ErrPredictorContract.
type ContractError struct {
	Rows   int
	Labels int
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("engine: predictor returned %d labels for %d rows", e.Labels, e.Rows)
}

func (e *ContractError) Unwrap() error { return ErrPredictorContract }

// Engine feeds deduplicated rows to a predictor and attaches the labels.
type Engine struct {
	predictor predictor.Predictor
}

// New creates an Engine around p.
func New(p predictor.Predictor) *Engine {
	return &Engine{predictor: p}
}

// Infer strips identifier and timestamp, asks the predictor for one label per
// row, and returns the rows with their labels in the original order.
func (e *Engine) Infer(ctx context.Context, rows []model.Row) ([]model.Prediction, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyRun
	}

	labels, err := e.predictor.Predict(ctx, Matrix(rows))
	if err != nil {
		return nil, fmt.Errorf("engine: predict: %w", err)
	}
	if len(labels) != len(rows) {
		return nil, &ContractError{Rows: len(rows), Labels: len(labels)}
	}

	out := make([]model.Prediction, len(rows))
	for i, r := range rows {
		out[i] = model.Prediction{Row: r, Label: labels[i]}
	}
	return out, nil
}

// Matrix returns the M×5 feature matrix for rows.
func Matrix(rows []model.Row) [][]float64 {
	m := make([][]float64, len(rows))
	for i := range rows {
		f := rows[i].Features
		m[i] = f[:]
	}
	return m
}
