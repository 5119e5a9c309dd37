//go:build !integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/capture/capturetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
Unit tests with sqlmock: they check the SQL issued and the error mapping,
not real database behaviour. The contract itself runs in the integration suite.

Run with: go test ./capture/postgres/...
*/

var columns = []string{"id", "method", "pathname", "ip", "status_code", "content_type", "content_length", "query_params", "headers", "body", "created_at"}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &Repository{DB: db}, mock
}

func TestRepository_Insert_Unit(t *testing.T) {
	ctx := context.Background()

	t.Run("insert record", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		rec := capturetest.NewRecord(t, 1)

		mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
			WithArgs(
				rec.ID.String(),
				"POST",
				"/capture/stripe/webhook",
				"203.0.113.7",
				200,
				"application/json",
				*rec.ContentLength,
				`{"attempt":"1"}`,
				`{"Stripe-Signature":"t=1,v1=abc","content-type":"application/json"}`,
				*rec.Body,
				rec.CreatedAt.UTC(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Insert(ctx, rec))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent facets are sent as NULL", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id, err := capture.NewID()
		require.NoError(t, err)

		mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
			WithArgs(id.String(), "GET", "/capture", "::1", 204, nil, nil, nil, nil, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Insert(ctx, capture.Record{ID: id, Method: "GET", Pathname: "/capture", IP: "::1", StatusCode: 204, CreatedAt: id.Time()})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate id", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		rec := capturetest.NewRecord(t, 1)

		mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := repo.Insert(ctx, rec)
		assert.ErrorIs(t, err, capture.ErrDuplicateID)
		var storageErr *capture.StorageError
		assert.ErrorAs(t, err, &storageErr)
	})

	t.Run("other failures are storage errors", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		boom := errors.New("connection reset by peer")

		mock.ExpectExec(regexp.QuoteMeta(insertQuery)).WillReturnError(boom)

		err := repo.Insert(ctx, capturetest.NewRecord(t, 1))
		assert.ErrorIs(t, err, boom)
		var storageErr *capture.StorageError
		assert.ErrorAs(t, err, &storageErr)
	})
}

func TestRepository_Get_Unit(t *testing.T) {
	ctx := context.Background()

	t.Run("existing record", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		rec := capturetest.NewRecord(t, 3)

		rows := sqlmock.NewRows(columns).AddRow(
			rec.ID.String(), rec.Method, rec.Pathname, rec.IP, rec.StatusCode,
			*rec.ContentType, *rec.ContentLength,
			[]byte(`{"attempt": "3"}`),
			[]byte(`{"content-type": "application/json", "Stripe-Signature": "t=1,v1=abc"}`),
			*rec.Body, rec.CreatedAt,
		)
		mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).WithArgs(rec.ID.String()).WillReturnRows(rows)

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		capturetest.AssertSameRecord(t, rec, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null columns", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id, err := capture.NewID()
		require.NoError(t, err)

		rows := sqlmock.NewRows(columns).AddRow(
			id.String(), "GET", "/capture", "::1", 204, nil, nil, nil, []byte(`{}`), nil, id.Time(),
		)
		mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).WithArgs(id.String()).WillReturnRows(rows)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.Body)
		assert.Nil(t, got.ContentType)
		assert.Nil(t, got.QueryParams)
		assert.Equal(t, map[string]string{}, got.Headers)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id, err := capture.NewID()
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).WithArgs(id.String()).WillReturnError(sql.ErrNoRows)

		_, err = repo.Get(ctx, id)
		assert.ErrorIs(t, err, capture.ErrNotFound)
	})
}

func TestRepository_ScanAfter_Unit(t *testing.T) {
	ctx := context.Background()

	t.Run("passes cursor and limit", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		a, b := capturetest.NewRecord(t, 1), capturetest.NewRecord(t, 2)

		rows := sqlmock.NewRows(columns)
		for _, rec := range []capture.Record{a, b} {
			rows.AddRow(rec.ID.String(), rec.Method, rec.Pathname, rec.IP, rec.StatusCode,
				*rec.ContentType, *rec.ContentLength, nil, []byte(`{}`), *rec.Body, rec.CreatedAt)
		}
		mock.ExpectQuery(regexp.QuoteMeta(scanQuery)).
			WithArgs(capture.ID{}.String(), 3).
			WillReturnRows(rows)

		got, err := repo.ScanAfter(ctx, capture.ID{}, 3)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, a.ID, got[0].ID)
		assert.Equal(t, b.ID, got[1].ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("large limits are clamped", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(scanQuery)).
			WithArgs(sqlmock.AnyArg(), capture.MaxScanLimit).
			WillReturnRows(sqlmock.NewRows(columns))

		got, err := repo.ScanAfter(ctx, capture.ID{}, capture.MaxScanLimit+500)
		require.NoError(t, err)
		assert.Empty(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid limit never hits the database", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		_, err := repo.ScanAfter(ctx, capture.ID{}, 0)
		assert.ErrorIs(t, err, capture.ErrInvalidLimit)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Count_Unit(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRepository_DeleteAll_Unit(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(deleteAllQuery)).WillReturnResult(sqlmock.NewResult(0, 7))

	require.NoError(t, repo.DeleteAll(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
