// Package pagination implements keyset paging over (timestamp, id) pairs.
// Cursors are opaque to clients; they only ever echo back what a previous
// page returned.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// cursorLen is 8 bytes of unix nanoseconds followed by the 16 byte id.
const cursorLen = 8 + 16

var ErrInvalidCursor = errors.New("invalid cursor")

// Params are the raw paging inputs read off a request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the last row a page returned. At is whichever timestamp the
// query orders by: created_at for listings and reviews, updated_at for
// pending edits.
type Cursor struct {
	At time.Time
	ID uuid.UUID
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Trim can tell if a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(c Cursor) string {
	buf := make([]byte, cursorLen)
	binary.BigEndian.PutUint64(buf[:8], uint64(c.At.UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseCursor returns nil for a blank value. Any malformed value yields
// ErrInvalidCursor.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) != cursorLen {
		return nil, ErrInvalidCursor
	}
	id, err := uuid.FromBytes(raw[8:])
	if err != nil || id == uuid.Nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{
		At: time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8]))).UTC(),
		ID: id,
	}, nil
}

// Trim cuts a page fetched with LimitWithBuffer back to limit and returns the
// cursor for the next page, empty when there is none.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(cursorOf(rows[len(rows)-1]))
}
