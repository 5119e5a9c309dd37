// Package capturetest holds the behaviour every capture.Repository adapter must share.
// Adapter packages run it from their own tests against a fresh store.
package capturetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository; cleanup is registered on t by the factory itself
type Factory func(t *testing.T) capture.Repository

// NewRecord builds a fully populated record with a fresh identifier
func NewRecord(t *testing.T, index int) capture.Record {
	t.Helper()

	id, err := capture.NewID()
	require.NoError(t, err)

	body := fmt.Sprintf(`{"type":"payment_intent.succeeded","index":%d}`, index)
	return capture.Record{
		ID:            id,
		Method:        "POST",
		Pathname:      "/capture/stripe/webhook",
		IP:            "203.0.113.7",
		StatusCode:    200,
		ContentType:   capture.String("application/json"),
		ContentLength: capture.String(fmt.Sprint(len(body))),
		QueryParams:   map[string]string{"attempt": fmt.Sprint(index)},
		Headers: map[string]string{
			"content-type":     "application/json",
			"Stripe-Signature": "t=1,v1=abc",
		},
		Body:      capture.String(body),
		CreatedAt: id.Time(),
	}
}

// InsertRecords inserts n records in ID order and returns them
func InsertRecords(t *testing.T, ctx context.Context, repo capture.Repository, n int) []capture.Record {
	t.Helper()

	records := make([]capture.Record, 0, n)
	for i := 0; i < n; i++ {
		rec := NewRecord(t, i)
		require.NoError(t, repo.Insert(ctx, rec))
		records = append(records, rec)
	}
	return records
}

// AssertSameRecord compares every facet, using time equality for CreatedAt
func AssertSameRecord(t *testing.T, want, got capture.Record) {
	t.Helper()

	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s got %s", want.CreatedAt, got.CreatedAt)
	want.CreatedAt, got.CreatedAt = want.CreatedAt.UTC(), got.CreatedAt.UTC()
	assert.Equal(t, want, got)
}

// CollectAll pages through the store with the given page size
func CollectAll(t *testing.T, ctx context.Context, p *capture.Paginator, size int) []capture.Record {
	t.Helper()

	var all []capture.Record
	cursor := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10000, "pagination did not terminate")
		page, err := p.Page(ctx, cursor, size)
		require.NoError(t, err)
		all = append(all, page.Items...)
		if page.NextCursor == "" {
			return all
		}
		cursor = page.NextCursor
	}
}

// Run executes the adapter contract
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("round trip keeps every facet", func(t *testing.T) {
		repo := newRepo(t)
		rec := NewRecord(t, 1)

		require.NoError(t, repo.Insert(ctx, rec))

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		AssertSameRecord(t, rec, got)
	})

	t.Run("round trip keeps null facets and empty headers", func(t *testing.T) {
		repo := newRepo(t)
		id, err := capture.NewID()
		require.NoError(t, err)
		rec := capture.Record{
			ID:         id,
			Method:     "GET",
			Pathname:   "/capture/ping",
			IP:         "::1",
			StatusCode: 204,
			Headers:    map[string]string{},
			CreatedAt:  id.Time(),
		}

		require.NoError(t, repo.Insert(ctx, rec))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		AssertSameRecord(t, rec, got)
		assert.Nil(t, got.Body)
		assert.Nil(t, got.ContentType)
		assert.Nil(t, got.ContentLength)
		assert.Nil(t, got.QueryParams)
		assert.NotNil(t, got.Headers)
	})

	t.Run("round trip keeps empty body and empty query", func(t *testing.T) {
		repo := newRepo(t)
		rec := NewRecord(t, 2)
		rec.Body = capture.String("")
		rec.QueryParams = map[string]string{}

		require.NoError(t, repo.Insert(ctx, rec))

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Body)
		assert.Equal(t, "", *got.Body)
		require.NotNil(t, got.QueryParams)
		assert.Empty(t, got.QueryParams)
	})

	t.Run("round trip keeps non UTF-8 header and query bytes", func(t *testing.T) {
		repo := newRepo(t)
		rec := NewRecord(t, 3)
		rec.Headers = map[string]string{
			"x-name":     "caf\xe9",
			"x-\xfe-raw": "ok",
			"x-nul":      "a\x00b",
		}
		rec.QueryParams = map[string]string{"q": "\xff"}

		require.NoError(t, repo.Insert(ctx, rec))

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		AssertSameRecord(t, rec, got)
		assert.Equal(t, "caf\xe9", got.Headers["x-name"])
		assert.Equal(t, "\xff", got.QueryParams["q"])
	})

	t.Run("round trip keeps a literal $base64 key", func(t *testing.T) {
		repo := newRepo(t)
		rec := NewRecord(t, 4)
		rec.QueryParams = map[string]string{"$base64": "e30="}

		require.NoError(t, repo.Insert(ctx, rec))

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		AssertSameRecord(t, rec, got)
	})

	t.Run("get unknown id returns not found", func(t *testing.T) {
		repo := newRepo(t)
		id, err := capture.NewID()
		require.NoError(t, err)

		_, err = repo.Get(ctx, id)
		assert.ErrorIs(t, err, capture.ErrNotFound)
	})

	t.Run("duplicate id is a storage error", func(t *testing.T) {
		repo := newRepo(t)
		rec := NewRecord(t, 1)
		require.NoError(t, repo.Insert(ctx, rec))

		err := repo.Insert(ctx, rec)
		require.Error(t, err)
		assert.ErrorIs(t, err, capture.ErrDuplicateID)
		var storageErr *capture.StorageError
		assert.True(t, errors.As(err, &storageErr))
	})

	t.Run("repeated gets are identical", func(t *testing.T) {
		repo := newRepo(t)
		rec := NewRecord(t, 1)
		require.NoError(t, repo.Insert(ctx, rec))

		first, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		second, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		AssertSameRecord(t, first, second)
	})

	t.Run("scan is ascending and honours after and limit", func(t *testing.T) {
		repo := newRepo(t)
		records := InsertRecords(t, ctx, repo, 5)

		all, err := repo.ScanAfter(ctx, capture.ID{}, 10)
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i := range records {
			assert.Equal(t, records[i].ID, all[i].ID)
		}

		tail, err := repo.ScanAfter(ctx, records[1].ID, 2)
		require.NoError(t, err)
		require.Len(t, tail, 2)
		assert.Equal(t, records[2].ID, tail[0].ID)
		assert.Equal(t, records[3].ID, tail[1].ID)

		none, err := repo.ScanAfter(ctx, records[4].ID, 2)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("scan rejects non-positive limits and clamps large ones", func(t *testing.T) {
		repo := newRepo(t)
		InsertRecords(t, ctx, repo, 2)

		_, err := repo.ScanAfter(ctx, capture.ID{}, 0)
		assert.ErrorIs(t, err, capture.ErrInvalidLimit)

		rows, err := repo.ScanAfter(ctx, capture.ID{}, capture.MaxScanLimit*10)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("count and delete all", func(t *testing.T) {
		repo := newRepo(t)
		InsertRecords(t, ctx, repo, 3)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		require.NoError(t, repo.DeleteAll(ctx))

		n, err = repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		rows, err := repo.ScanAfter(ctx, capture.ID{}, 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("pagination yields every record exactly once", func(t *testing.T) {
		repo := newRepo(t)
		records := InsertRecords(t, ctx, repo, 23)

		for _, size := range []int{1, 2, 5, 7, 23, 50} {
			p := capture.NewPaginator(repo, size, 100)
			all := CollectAll(t, ctx, p, size)
			require.Len(t, all, len(records), "page size %d", size)
			for i := range records {
				assert.Equal(t, records[i].ID, all[i].ID, "page size %d position %d", size, i)
			}
		}
	})

	t.Run("records inserted after a cursor appear on later pages only", func(t *testing.T) {
		repo := newRepo(t)
		InsertRecords(t, ctx, repo, 4)
		p := capture.NewPaginator(repo, 2, 100)

		first, err := p.Page(ctx, "", 2)
		require.NoError(t, err)
		require.NotEmpty(t, first.NextCursor)

		late := NewRecord(t, 99)
		require.NoError(t, repo.Insert(ctx, late))

		again, err := p.Page(ctx, "", 2)
		require.NoError(t, err)
		assert.Equal(t, first.Items[0].ID, again.Items[0].ID)
		assert.Equal(t, first.Items[1].ID, again.Items[1].ID)

		var rest []capture.Record
		cursor := first.NextCursor
		for cursor != "" {
			page, err := p.Page(ctx, cursor, 2)
			require.NoError(t, err)
			rest = append(rest, page.Items...)
			cursor = page.NextCursor
		}
		require.Len(t, rest, 3)
		assert.Equal(t, late.ID, rest[2].ID)
	})

	t.Run("concurrent inserts are all visible", func(t *testing.T) {
		repo := newRepo(t)
		const workers, perWorker = 8, 10

		batches := make([][]capture.Record, workers)
		for w := range batches {
			for i := 0; i < perWorker; i++ {
				batches[w] = append(batches[w], NewRecord(t, w*perWorker+i))
			}
		}

		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for _, batch := range batches {
			wg.Add(1)
			go func(batch []capture.Record) {
				defer wg.Done()
				for _, rec := range batch {
					errs <- repo.Insert(ctx, rec)
				}
			}(batch)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all := CollectAll(t, ctx, capture.NewPaginator(repo, 7, 100), 7)
		require.Len(t, all, workers*perWorker)
		seen := make(map[capture.ID]bool, len(all))
		for i, rec := range all {
			assert.False(t, seen[rec.ID], "duplicate %s", rec.ID)
			seen[rec.ID] = true
			if i > 0 {
				assert.Equal(t, 1, rec.ID.Compare(all[i-1].ID))
			}
		}
	})
}
