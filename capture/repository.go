package capture

import (
	"context"
	"fmt"
)

/* Small, focused interfaces
 * Adapters live in subpackages (memory, sqlite, postgres, redis) and all satisfy Repository
 */

// MaxScanLimit caps the number of rows a single ScanAfter may return.
// Larger limits are clamped, not rejected.
const MaxScanLimit = 1000

// Reader provides read operations over captured records
type Reader interface {
	Get(ctx context.Context, id ID) (Record, error)
	/* ScanAfter returns up to limit records with ID strictly greater than after,
	 * ascending by ID. The zero ID scans from the beginning.
	 */
	ScanAfter(ctx context.Context, after ID, limit int) ([]Record, error)
	Count(ctx context.Context) (int64, error)
}

// Writer provides the append-only write path plus the administrative reset
type Writer interface {
	Insert(ctx context.Context, record Record) error
	DeleteAll(ctx context.Context) error
}

type Repository interface {
	Reader
	Writer
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ClampLimit validates a scan limit and clamps it to MaxScanLimit
func ClampLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if limit > MaxScanLimit {
		return MaxScanLimit, nil
	}
	return limit, nil
}
