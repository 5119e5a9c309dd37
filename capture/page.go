package capture

import (
	"context"
	"fmt"
)

// Page is one slice of the store in ascending ID order
type Page struct {
	Items []Record
	// NextCursor is empty when the end of the data was reached
	NextCursor string
}

/* Paginator turns ScanAfter into cursor-addressed pages
 * One extra row is requested to learn whether more data follows without a second round trip
 * New records always sort after every cursor issued so far, so sequential pages never
 * skip or repeat a record while the store grows
 */
type Paginator struct {
	Reader      Reader
	DefaultSize int
	MaxSize     int
}

// NewPaginator creates a paginator; sizes are sanitised against MaxScanLimit
func NewPaginator(r Reader, defaultSize, maxSize int) *Paginator {
	if maxSize <= 0 || maxSize >= MaxScanLimit {
		maxSize = MaxScanLimit - 1
	}
	if defaultSize <= 0 || defaultSize > maxSize {
		defaultSize = maxSize
	}
	return &Paginator{
		Reader:      r,
		DefaultSize: defaultSize,
		MaxSize:     maxSize,
	}
}

// Size resolves the effective page size: non-positive means default, oversize is clamped
func (p *Paginator) Size(requested int) int {
	switch {
	case requested <= 0:
		return p.DefaultSize
	case requested > p.MaxSize:
		return p.MaxSize
	default:
		return requested
	}
}

// Page returns the page following token
func (p *Paginator) Page(ctx context.Context, token string, size int) (Page, error) {
	cursor, err := ParseCursor(token)
	if err != nil {
		return Page{}, err
	}
	size = p.Size(size)

	rows, err := p.Reader.ScanAfter(ctx, cursor.After(), size+1)
	if err != nil {
		return Page{}, fmt.Errorf("scanning records: %w", err)
	}

	page := Page{Items: rows}
	if len(rows) > size {
		page.Items = rows[:size]
		page.NextCursor = CursorAfter(page.Items[size-1].ID).String()
	}
	if page.Items == nil {
		page.Items = []Record{}
	}
	return page, nil
}
