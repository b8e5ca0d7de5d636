// Package predictor provides the models that label vital-sign feature rows.
package predictor

import "context"

// Predictor maps an M×5 feature matrix to exactly M labels in row order.
// M may be zero.
type Predictor interface {
	Predict(ctx context.Context, features [][]float64) ([]string, error)
}

// Func adapts a plain function to the Predictor interface.
type Func func(ctx context.Context, features [][]float64) ([]string, error)

func (f Func) Predict(ctx context.Context, features [][]float64) ([]string, error) {
	return f(ctx, features)
}

// Alarm labels emitted by the built-in predictors.
const (
	LabelAlarm  = "1"
	LabelNormal = "0"
)
