// Package replay serves patient history pages from a local JSON file. Every
// call returns the whole file, which mimics an endpoint with an overlapping
// history window and lets demo runs work offline.
package replay

import (
	"context"
	"fmt"
	"os"

	"github.com/hejijunhao/vitals/internal/model"
	"github.com/hejijunhao/vitals/internal/source"
)

func init() {
	source.Register("replay", func(cfg source.Config) (source.Fetcher, error) {
		return New(cfg)
	})
}

// Fetcher re-reads a JSON document from disk on every call.
type Fetcher struct {
	path string
	key  string
}

// New creates a replay Fetcher reading cfg.Endpoint as a file path.
func New(cfg source.Config) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("replay source: missing file path")
	}
	return &Fetcher{path: cfg.Endpoint, key: cfg.Key()}, nil
}

// Fetch reads and decodes the file. A missing or unreadable file wraps
// source.ErrFetch; a malformed document wraps source.ErrSchema.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("replay source: %w: %w", source.ErrFetch, err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("replay source: %w: %w", source.ErrFetch, err)
	}
	records, err := source.DecodeRecords(data, f.key)
	if err != nil {
		return nil, fmt.Errorf("replay source: %s: %w", f.path, err)
	}
	return records, nil
}
