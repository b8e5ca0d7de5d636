package dedup

import (
	"github.com/hejijunhao/vitals/internal/model"
)

// Config controls deduplication behavior.
type Config struct {
	// IgnoreTimestamp drops the timestamp from the equality key, so readings
	// that differ only in when they were taken collapse to the first one seen.
	IgnoreTimestamp bool
}

// Deduplicator removes rows that are value-equal under its key.
type Deduplicator struct {
	cfg Config
}

// New creates a Deduplicator with the given config.
func New(cfg Config) *Deduplicator {
	return &Deduplicator{cfg: cfg}
}

// Deduplicate returns rows with duplicates removed, in first-occurrence
// order. The input is not modified.
func (d *Deduplicator) Deduplicate(rows []model.Row) []model.Row {
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[model.Row]struct{}, len(rows))
	result := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		k := d.key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, r)
	}
	return result
}

func (d *Deduplicator) key(r model.Row) model.Row {
	if d.cfg.IgnoreTimestamp {
		r.Timestamp = ""
	}
	return r
}
