package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite" // pure Go SQLite driver
	"github.com/marcelsud/webhook-inspector/capture"
)

/*
SQLite implementation of capture.Repository

Single file, no server. Identifiers are stored in canonical text form,
which sorts the same way as the raw bytes, so the primary key index
serves ScanAfter directly. created_at is kept as unix milliseconds.
*/

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

const (
	insertQuery = `INSERT INTO webhooks (id, method, pathname, ip, status_code, content_type, content_length, query_params, headers, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`
	selectQuery = `SELECT id, method, pathname, ip, status_code, content_type, content_length, query_params, headers, body, created_at
		FROM webhooks WHERE id = ?`
	scanQuery = `SELECT id, method, pathname, ip, status_code, content_type, content_length, query_params, headers, body, created_at
		FROM webhooks WHERE id > ? ORDER BY id LIMIT ?`
	countQuery     = `SELECT COUNT(*) FROM webhooks`
	deleteAllQuery = `DELETE FROM webhooks`
)

type Repository struct {
	DB *sql.DB
}

// NewRepository opens (or creates) the database file at path and ensures the schema exists
func NewRepository(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?%s", path, pragmas))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	r := &Repository{DB: db}
	if err := r.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Insert(ctx context.Context, rec capture.Record) error {
	query, err := capture.MarshalMap(rec.QueryParams)
	if err != nil {
		return capture.NewStorageError("encoding query params", err)
	}
	headers, err := capture.MarshalMap(rec.Headers)
	if err != nil {
		return capture.NewStorageError("encoding headers", err)
	}

	result, err := r.DB.ExecContext(ctx, insertQuery,
		rec.ID.String(),
		rec.Method,
		rec.Pathname,
		rec.IP,
		rec.StatusCode,
		rec.ContentType,
		rec.ContentLength,
		query,
		headers,
		rec.Body,
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return capture.NewStorageError("inserting record", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return capture.NewStorageError("getting rows affected", err)
	}
	if n == 0 {
		return capture.NewStorageError("inserting record", capture.ErrDuplicateID)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id capture.ID) (capture.Record, error) {
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, selectQuery, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return capture.Record{}, capture.ErrNotFound
	}
	if err != nil {
		return capture.Record{}, capture.NewStorageError("selecting record", err)
	}
	return rec, nil
}

func (r *Repository) ScanAfter(ctx context.Context, after capture.ID, limit int) ([]capture.Record, error) {
	limit, err := capture.ClampLimit(limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, scanQuery, after.String(), limit)
	if err != nil {
		return nil, capture.NewStorageError("scanning records", err)
	}
	defer rows.Close()

	records := make([]capture.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, capture.NewStorageError("scanning record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, capture.NewStorageError("iterating records", err)
	}
	return records, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return 0, capture.NewStorageError("counting records", err)
	}
	return n, nil
}

func (r *Repository) DeleteAll(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, deleteAllQuery); err != nil {
		return capture.NewStorageError("deleting records", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *Repository) Close(ctx context.Context) error {
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

func (r *Repository) CreateTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS webhooks (
  id TEXT PRIMARY KEY,
  method TEXT NOT NULL,
  pathname TEXT NOT NULL,
  ip TEXT NOT NULL,
  status_code INTEGER NOT NULL,
  content_type TEXT,
  content_length TEXT,
  query_params TEXT,
  headers TEXT,
  body TEXT,
  created_at INTEGER NOT NULL
);`
	if _, err := r.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (capture.Record, error) {
	var (
		rec       capture.Record
		id        string
		query     *string
		headers   *string
		createdAt int64
	)
	err := s.Scan(
		&id,
		&rec.Method,
		&rec.Pathname,
		&rec.IP,
		&rec.StatusCode,
		&rec.ContentType,
		&rec.ContentLength,
		&query,
		&headers,
		&rec.Body,
		&createdAt,
	)
	if err != nil {
		return capture.Record{}, err
	}

	if rec.ID, err = capture.ParseID(id); err != nil {
		return capture.Record{}, fmt.Errorf("parsing id %q: %w", id, err)
	}
	if rec.QueryParams, err = capture.UnmarshalMap(query); err != nil {
		return capture.Record{}, err
	}
	if rec.Headers, err = capture.UnmarshalMap(headers); err != nil {
		return capture.Record{}, err
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return rec, nil
}
