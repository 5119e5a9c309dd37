package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

/* ID is the time-ordered identifier of a captured record
 * 48-bit unix millisecond prefix followed by version, variant and random bits (UUIDv7)
 * Byte order equals creation order, so the ID doubles as primary key and scan cursor
 */
type ID uuid.UUID

// canonicalIDLength is the length of the 8-4-4-4-12 textual form
const canonicalIDLength = 36

// NewID returns a fresh identifier for the current wall-clock millisecond.
// IDs generated by one process are strictly increasing.
func NewID() (ID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return ID{}, fmt.Errorf("generating identifier: %w", err)
	}
	return ID(u), nil
}

// ParseID parses the canonical textual form of an identifier
func ParseID(s string) (ID, error) {
	if len(s) != canonicalIDLength {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	id := ID(u)
	if !id.valid() {
		return ID{}, fmt.Errorf("%w: %q is not a version 7 identifier", ErrInvalidIdentifier, s)
	}
	return id, nil
}

func (id ID) valid() bool {
	u := uuid.UUID(id)
	return u.Version() == 7 && u.Variant() == uuid.RFC4122
}

// String returns the canonical lower-case textual form
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value, which sorts before every generated ID
func (id ID) IsZero() bool {
	return id == ID{}
}

// Compare returns -1, 0 or +1 comparing the identifiers byte-wise
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Time returns the creation time embedded in the identifier, in UTC with millisecond precision
func (id ID) Time() time.Time {
	ms := binary.BigEndian.Uint64(id[:8]) >> 16
	return time.UnixMilli(int64(ms)).UTC()
}

// MarshalText encodes the ID in its canonical form
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes the canonical form
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

/* Cursor is the opaque position right after a record in ID order
 * The zero Cursor addresses the beginning of the store
 * Callers only ever see the encoded token, never the binary layout
 */
type Cursor struct {
	after ID
}

// CursorAfter returns the cursor positioned right after id
func CursorAfter(id ID) Cursor {
	return Cursor{after: id}
}

// ParseCursor decodes a token produced by Cursor.String.
// The empty token is the start of the store.
func ParseCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if len(raw) != len(ID{}) {
		return Cursor{}, fmt.Errorf("%w: decoded %d bytes", ErrInvalidCursor, len(raw))
	}
	var id ID
	copy(id[:], raw)
	if !id.valid() {
		return Cursor{}, fmt.Errorf("%w: not a version 7 identifier", ErrInvalidCursor)
	}
	return Cursor{after: id}, nil
}

// After returns the identifier the cursor sits behind; the zero ID at the start
func (c Cursor) After() ID {
	return c.after
}

// IsStart reports whether the cursor addresses the beginning of the store
func (c Cursor) IsStart() bool {
	return c.after.IsZero()
}

// String encodes the cursor as an opaque token; empty at the start
func (c Cursor) String() string {
	if c.IsStart() {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(c.after[:])
}
