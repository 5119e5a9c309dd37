package metrics

import (
	"context"
	"time"
)

// Metrics is a point in time snapshot of the capture store
type Metrics struct {
	// Records is the number of captured webhooks currently stored
	Records int64 `json:"records"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting metrics from the store.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetRecordCount returns the number of stored webhooks
	GetRecordCount(ctx context.Context) (int64, error)
}

// Synthesis outcomes used as the "outcome" attribute
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeInvalid = "invalid"
)

// Recorder receives events from the request path
type Recorder interface {
	// Captured counts one ingested webhook
	Captured(ctx context.Context, method string)

	// Synthesized counts one synthesis request and how long it took
	Synthesized(ctx context.Context, outcome string, elapsed time.Duration)
}

// Noop discards every event
type Noop struct{}

func (Noop) Captured(context.Context, string) {}
func (Noop) Synthesized(context.Context, string, time.Duration) {}
