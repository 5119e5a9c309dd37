package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/marcelsud/webhook-inspector/capture"
)

/* In-memory implementation of capture.Repository
 * Records are kept sorted by ID so ScanAfter is a binary search plus a slice copy
 * Handy for development and for exercising the pagination invariants in tests
 */

type Repository struct {
	mu      sync.RWMutex
	ordered []capture.ID
	records map[capture.ID]capture.Record
}

// NewRepository creates an empty in-memory store
func NewRepository() *Repository {
	return &Repository{
		records: make(map[capture.ID]capture.Record),
	}
}

// Insert appends a record, keeping the ID order
func (r *Repository) Insert(ctx context.Context, rec capture.Record) error {
	if err := ctx.Err(); err != nil {
		return capture.NewStorageError("insert", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return capture.NewStorageError("insert", capture.ErrDuplicateID)
	}

	// IDs are generated in increasing order, so the common case is an append
	i := len(r.ordered)
	if i > 0 && rec.ID.Compare(r.ordered[i-1]) < 0 {
		i = sort.Search(len(r.ordered), func(j int) bool {
			return r.ordered[j].Compare(rec.ID) > 0
		})
	}
	r.ordered = append(r.ordered, capture.ID{})
	copy(r.ordered[i+1:], r.ordered[i:])
	r.ordered[i] = rec.ID
	r.records[rec.ID] = clone(rec)

	return nil
}

// Get returns a record by ID
func (r *Repository) Get(ctx context.Context, id capture.ID) (capture.Record, error) {
	if err := ctx.Err(); err != nil {
		return capture.Record{}, capture.NewStorageError("get", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return capture.Record{}, capture.ErrNotFound
	}
	return clone(rec), nil
}

// ScanAfter returns up to limit records with ID greater than after
func (r *Repository) ScanAfter(ctx context.Context, after capture.ID, limit int) ([]capture.Record, error) {
	limit, err := capture.ClampLimit(limit)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, capture.NewStorageError("scan", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	start := sort.Search(len(r.ordered), func(i int) bool {
		return r.ordered[i].Compare(after) > 0
	})
	end := min(start+limit, len(r.ordered))

	out := make([]capture.Record, 0, end-start)
	for _, id := range r.ordered[start:end] {
		out = append(out, clone(r.records[id]))
	}
	return out, nil
}

// Count returns the number of stored records
func (r *Repository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.ordered)), nil
}

// DeleteAll drops every record
func (r *Repository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ordered = nil
	r.records = make(map[capture.ID]capture.Record)
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *Repository) Close(ctx context.Context) error {
	return nil
}

// clone copies the maps and pointers so callers can't mutate stored records
func clone(rec capture.Record) capture.Record {
	out := rec
	out.ContentType = cloneString(rec.ContentType)
	out.ContentLength = cloneString(rec.ContentLength)
	out.Body = cloneString(rec.Body)
	out.Headers = maps.Clone(rec.Headers)
	out.QueryParams = maps.Clone(rec.QueryParams)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
