package pipeline

import (
	"errors"

	"github.com/hejijunhao/vitals/internal/engine/dedup"
	"github.com/hejijunhao/vitals/internal/model"
)

// ErrFinalized is returned when an Accumulator is used after Finalize.
var ErrFinalized = errors.New("pipeline: accumulator already finalized")

// Accumulator is the append-only row buffer for one run. It is owned by a
// single Runner call and is not safe for concurrent use.
type Accumulator struct {
	dedup     *dedup.Deduplicator
	rows      []model.Row
	finalized bool
}

// NewAccumulator creates an empty Accumulator that deduplicates with d.
func NewAccumulator(d *dedup.Deduplicator) *Accumulator {
	if d == nil {
		d = dedup.New(dedup.Config{})
	}
	return &Accumulator{dedup: d}
}

// Append adds rows to the buffer. Rows are never rejected; only a finalized
// buffer refuses appends.
func (a *Accumulator) Append(rows ...model.Row) error {
	if a.finalized {
		return ErrFinalized
	}
	a.rows = append(a.rows, rows...)
	return nil
}

// Len returns the number of rows appended so far, duplicates included.
func (a *Accumulator) Len() int {
	return len(a.rows)
}

// Rows returns a copy of the buffered rows.
func (a *Accumulator) Rows() []model.Row {
	cp := make([]model.Row, len(a.rows))
	copy(cp, a.rows)
	return cp
}

// Finalize deduplicates the buffer and returns the distinct rows in
// first-occurrence order. It may be called once.
func (a *Accumulator) Finalize() ([]model.Row, error) {
	if a.finalized {
		return nil, ErrFinalized
	}
	a.finalized = true
	return a.dedup.Deduplicate(a.rows), nil
}
