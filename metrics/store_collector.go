package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-inspector/capture"
)

// StoreCollector implements Collector over any capture.Reader
type StoreCollector struct {
	reader capture.Reader
	now    func() time.Time
}

// NewStoreCollector creates a new collector
func NewStoreCollector(reader capture.Reader) *StoreCollector {
	return &StoreCollector{
		reader: reader,
		now:    time.Now,
	}
}

// Collect gathers all metrics
func (c *StoreCollector) Collect(ctx context.Context) (Metrics, error) {
	records, err := c.GetRecordCount(ctx)
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{
		Records:   records,
		Timestamp: c.now().UTC(),
	}, nil
}

// GetRecordCount returns the number of stored webhooks
func (c *StoreCollector) GetRecordCount(ctx context.Context) (int64, error) {
	n, err := c.reader.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}
