package output

import (
	"context"

	"github.com/hejijunhao/vitals/internal/model"
)

// Batch is the finalized result of one run.
type Batch struct {
	RunID       string
	Predictions []model.Prediction
}

// Output defines the interface for best-effort result mirrors that receive a
// run's predictions after the dataset file has been written.
type Output interface {
	Write(ctx context.Context, batch Batch) error
	Close() error
}
