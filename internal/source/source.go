// Package source defines how observation records are retrieved each cycle.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/hejijunhao/vitals/internal/model"
)

// DefaultRecordsKey is the top-level JSON key that holds the record array.
const DefaultRecordsKey = "patient_history"

var (
	// ErrFetch reports a transport failure: timeout, refused connection, DNS,
	// or an unreadable local file.
	ErrFetch = errors.New("source: fetch failed")

	// ErrSchema reports a response whose shape violates the endpoint contract.
	ErrSchema = errors.New("source: schema violation")
)

// Fetcher retrieves one page of raw records per call. A page that carries no
// usable records is returned as an empty slice with a nil error.
// Implementations perform no retries.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.RawRecord, error)
}

// Config holds source-specific connection settings. It is constant for a run.
type Config struct {
	Provider   string
	Endpoint   string        // URL for "api", file path for "replay"
	APIKey     string        // sent as a Bearer token when set
	RecordsKey string        // top-level key of the record array
	Timeout    time.Duration // per-request timeout
}

// Key returns RecordsKey, or DefaultRecordsKey when unset.
func (c Config) Key() string {
	if c.RecordsKey == "" {
		return DefaultRecordsKey
	}
	return c.RecordsKey
}
