package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/hejijunhao/vitals/internal/output"
)

// Multi publishes a finalized run to every configured mirror in order.
// A failing mirror is reported but does not stop the others, so one broken
// sink never hides results from the rest.
type Multi struct {
	mirrors []output.Output
}

// New creates a Multi over the given mirrors. An empty Multi is valid and
// publishes nothing.
func New(mirrors ...output.Output) *Multi {
	return &Multi{mirrors: mirrors}
}

// Len returns the number of mirrors.
func (m *Multi) Len() int {
	return len(m.mirrors)
}

// Write hands the batch to each mirror. Failures are tagged with the mirror's
// position and type and joined.
func (m *Multi) Write(ctx context.Context, batch output.Batch) error {
	var errs []error
	for i, mirror := range m.mirrors {
		if err := mirror.Write(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("mirror %d (%T): %w", i, mirror, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every mirror, in order, and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for i, mirror := range m.mirrors {
		if err := mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mirror %d (%T): close: %w", i, mirror, err))
		}
	}
	return errors.Join(errs...)
}
