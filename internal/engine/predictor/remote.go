package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hejijunhao/vitals/internal/httpclient"
)

// Remote delegates prediction to a model service over HTTP. It POSTs
// {"features": [[...], ...]} and expects {"labels": [...]} back, where labels
// may be strings, numbers or booleans (true is the alarm label).
type Remote struct {
	client *httpclient.Client
}

// NewRemote creates a Remote predictor for the given URL.
func NewRemote(url, token string, timeout time.Duration) *Remote {
	return &Remote{client: httpclient.New(url, token, httpclient.WithTimeout(timeout))}
}

type remoteRequest struct {
	Features [][]float64 `json:"features"`
}

type remoteResponse struct {
	Labels []any `json:"labels"`
}

// Predict sends the matrix in one request. An empty matrix is answered
// locally.
func (r *Remote) Predict(ctx context.Context, features [][]float64) ([]string, error) {
	if len(features) == 0 {
		return []string{}, nil
	}

	var resp remoteResponse
	if err := r.client.PostJSON(ctx, "", remoteRequest{Features: features}, &resp); err != nil {
		return nil, fmt.Errorf("remote predictor: %w", err)
	}

	labels := make([]string, len(resp.Labels))
	for i, v := range resp.Labels {
		switch l := v.(type) {
		case string:
			labels[i] = l
		case json.Number:
			labels[i] = l.String()
		case bool:
			labels[i] = LabelNormal
			if l {
				labels[i] = LabelAlarm
			}
		default:
			return nil, fmt.Errorf("remote predictor: label %d has unsupported type %T", i, v)
		}
	}
	return labels, nil
}
