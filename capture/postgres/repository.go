package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/marcelsud/webhook-inspector/capture"
)

/*
PostgreSQL implementation of capture.Repository

- uuid primary key: Postgres compares uuids bytewise, which is the order ScanAfter needs
- jsonb for the map facets, NULL when absent
- timestamptz for created_at, always read back in UTC
*/

const uniqueViolation = "23505"

const (
	insertQuery = `
		INSERT INTO webhooks (id, method, pathname, ip, status_code, content_type, content_length, query_params, headers, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	selectQuery = `
		SELECT id, method, pathname, ip, status_code, content_type, content_length, query_params, headers, body, created_at
		FROM webhooks WHERE id = $1
	`
	scanQuery = `
		SELECT id, method, pathname, ip, status_code, content_type, content_length, query_params, headers, body, created_at
		FROM webhooks WHERE id > $1 ORDER BY id LIMIT $2
	`
	countQuery     = "SELECT COUNT(*) FROM webhooks"
	deleteAllQuery = "DELETE FROM webhooks"
)

type Repository struct {
	DB *sql.DB
}

// NewRepository creates a repository with the default pool (25, 5, 5 min)
func NewRepository(connectionString string) (*Repository, error) {
	return NewRepositoryWithPoolConfig(connectionString, 25, 5, 5)
}

// NewRepositoryWithPoolConfig creates a repository with a custom pool.
// maxOpenConns: maximum simultaneous connections (0 = unlimited)
// maxIdleConns: idle connections kept in the pool
// maxLifeMinutes: how long a connection may be reused
func NewRepositoryWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Repository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Repository{
		DB: db,
	}, nil
}

// Insert appends a record; an existing id is reported as capture.ErrDuplicateID
func (r *Repository) Insert(ctx context.Context, rec capture.Record) error {
	query, err := capture.MarshalMap(rec.QueryParams)
	if err != nil {
		return capture.NewStorageError("encoding query params", err)
	}
	headers, err := capture.MarshalMap(rec.Headers)
	if err != nil {
		return capture.NewStorageError("encoding headers", err)
	}

	_, err = r.DB.ExecContext(ctx, insertQuery,
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
		rec.CreatedAt.UTC(),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return capture.NewStorageError("inserting record", capture.ErrDuplicateID)
	}
	if err != nil {
		return capture.NewStorageError("inserting record", err)
	}
	return nil
}

// Get returns a record by id
func (r *Repository) Get(ctx context.Context, id capture.ID) (capture.Record, error) {
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, selectQuery, id.String()))
	if err == sql.ErrNoRows {
		return capture.Record{}, capture.ErrNotFound
	}
	if err != nil {
		return capture.Record{}, capture.NewStorageError("selecting record", err)
	}
	return rec, nil
}

// ScanAfter returns up to limit records with id greater than after, ascending
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

// Count returns the number of stored records
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return 0, capture.NewStorageError("counting records", err)
	}
	return n, nil
}

// DeleteAll removes every record
func (r *Repository) DeleteAll(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, deleteAllQuery); err != nil {
		return capture.NewStorageError("deleting records", err)
	}
	return nil
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

// Close closes the connection pool
func (r *Repository) Close(ctx context.Context) error {
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

// CreateTable creates the webhooks table
func (r *Repository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS webhooks (
			id UUID PRIMARY KEY,
			method TEXT NOT NULL,
			pathname TEXT NOT NULL,
			ip TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			content_type TEXT,
			content_length TEXT,
			query_params JSONB,
			headers JSONB,
			body TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)
	`

	_, err := r.DB.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	return nil
}

// DropTable removes the webhooks table (handy for tests)
func (r *Repository) DropTable(ctx context.Context) error {
	query := "DROP TABLE IF EXISTS webhooks CASCADE"

	_, err := r.DB.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (capture.Record, error) {
	var (
		rec     capture.Record
		id      string
		query   *string
		headers *string
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
		&rec.CreatedAt,
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
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
