// Package api fetches patient history pages from a remote HTTP endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hejijunhao/vitals/internal/httpclient"
	"github.com/hejijunhao/vitals/internal/model"
	"github.com/hejijunhao/vitals/internal/source"
)

func init() {
	source.Register("api", func(cfg source.Config) (source.Fetcher, error) {
		return New(cfg)
	})
}

// Fetcher issues one GET against the configured endpoint per call.
type Fetcher struct {
	client *httpclient.Client
	key    string
}

// New creates an api Fetcher. cfg.Endpoint is the full URL of the history
// endpoint.
func New(cfg source.Config) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("api source: missing endpoint")
	}
	return &Fetcher{
		client: httpclient.New(cfg.Endpoint, cfg.APIKey, httpclient.WithTimeout(cfg.Timeout)),
		key:    cfg.Key(),
	}, nil
}

// Fetch retrieves one page. Non-2xx responses are logged and yield an empty
// page; transport failures wrap source.ErrFetch; a 2xx body that does not
// match the contract wraps source.ErrSchema.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	body, err := f.client.Get(ctx, "", nil)
	if err != nil {
		var apiErr *httpclient.APIError
		if errors.As(err, &apiErr) {
			slog.Warn("empty page", "source", "api", "status", apiErr.StatusCode, "body", apiErr.Body)
			return nil, nil
		}
		return nil, fmt.Errorf("api source: %w: %w", source.ErrFetch, err)
	}

	records, err := source.DecodeRecords(body, f.key)
	if err != nil {
		return nil, fmt.Errorf("api source: %w", err)
	}
	return records, nil
}
