package capture

import (
	"context"
	"fmt"
)

/* Service is the business layer over a Repository
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines ingestion and retrieval of captured webhooks
type UseCase interface {
	Capture(ctx context.Context, req Request) (Record, error)
	List(ctx context.Context, cursor string, limit int) (Page, error)
	Get(ctx context.Context, id string) (Record, error)
	Reset(ctx context.Context) error
}

type Service struct {
	Repo      Repository
	Paginator *Paginator
	newID     func() (ID, error)
}

// NewService creates a capture service with the given page sizing
func NewService(repo Repository, pageSize, maxPageSize int) *Service {
	return &Service{
		Repo:      repo,
		Paginator: NewPaginator(repo, pageSize, maxPageSize),
		newID:     NewID,
	}
}

// Capture assigns an identifier to req and appends it to the store.
// CreatedAt is derived from the identifier so both orderings agree.
func (s *Service) Capture(ctx context.Context, req Request) (Record, error) {
	id, err := s.newID()
	if err != nil {
		return Record{}, err
	}

	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	record := Record{
		ID:            id,
		Method:        req.Method,
		Pathname:      req.Pathname,
		IP:            req.IP,
		StatusCode:    req.StatusCode,
		ContentType:   req.ContentType,
		ContentLength: req.ContentLength,
		QueryParams:   req.QueryParams,
		Headers:       headers,
		Body:          req.Body,
		CreatedAt:     id.Time(),
	}

	if err := s.Repo.Insert(ctx, record); err != nil {
		return Record{}, fmt.Errorf("inserting record: %w", err)
	}
	return record, nil
}

// List returns the page after cursor
func (s *Service) List(ctx context.Context, cursor string, limit int) (Page, error) {
	page, err := s.Paginator.Page(ctx, cursor, limit)
	if err != nil {
		return Page{}, fmt.Errorf("listing records: %w", err)
	}
	return page, nil
}

// Get returns the record for the textual identifier id
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}
	r, err := s.Repo.Get(ctx, parsed)
	if err != nil {
		return Record{}, fmt.Errorf("selecting record: %w", err)
	}
	return r, nil
}

// Reset deletes every record. Administrative only, never used by ingestion or retrieval.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.Repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}
