package capture

import "time"

/* Record is one captured inbound HTTP request
 * Uses value semantics as it represents data, not behavior
 * Nullable facets are pointers (or nil maps) so "absent" survives a round trip
 */
type Record struct {
	ID            ID
	Method        string
	Pathname      string
	IP            string
	StatusCode    int
	ContentType   *string
	ContentLength *string
	QueryParams   map[string]string
	Headers       map[string]string
	Body          *string
	CreatedAt     time.Time
}

// Request describes an inbound HTTP request before it is assigned an identity
type Request struct {
	Method        string
	Pathname      string
	IP            string
	StatusCode    int
	ContentType   *string
	ContentLength *string
	QueryParams   map[string]string
	Headers       map[string]string
	Body          *string
}

// Summary is the reduced projection used for listings
type Summary struct {
	ID        ID
	Method    string
	Pathname  string
	CreatedAt time.Time
}

// Summary projects the record onto the listing fields
func (r Record) Summary() Summary {
	return Summary{
		ID:        r.ID,
		Method:    r.Method,
		Pathname:  r.Pathname,
		CreatedAt: r.CreatedAt,
	}
}

// String returns a pointer to s, handy for the nullable facets
func String(s string) *string {
	return &s
}
