package pagination

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{At: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("ParseCursor error: %v", err)
	}
	if !parsed.At.Equal(cursor.At) || parsed.ID != cursor.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", parsed, cursor)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	if c, err := ParseCursor("  "); c != nil || err != nil {
		t.Fatalf("expected nil cursor for blank input, got %v %v", c, err)
	}
	for _, bad := range []string{"not base64!", "c2hvcnQ", EncodeCursor(Cursor{At: time.Now()})} {
		if _, err := ParseCursor(bad); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected ErrInvalidCursor for %q, got %v", bad, err)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit {
		t.Fatalf("expected default limit")
	}
	if NormalizeLimit(1000) != MaxLimit {
		t.Fatalf("expected max limit")
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("expected buffered limit 11")
	}
}

func TestTrim(t *testing.T) {
	now := time.Now().UTC()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	cursorOf := func(id uuid.UUID) Cursor { return Cursor{At: now, ID: id} }

	page, next := Trim(ids, 2, cursorOf)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected trimmed page with cursor, got %d %q", len(page), next)
	}
	parsed, err := ParseCursor(next)
	if err != nil || parsed.ID != ids[1] {
		t.Fatalf("expected cursor at last kept row, got %v %v", parsed, err)
	}

	page, next = Trim(ids[:2], 2, cursorOf)
	if len(page) != 2 || next != "" {
		t.Fatalf("expected final page without cursor")
	}
}

func TestCursorIsCompactAndURLSafe(t *testing.T) {
	encoded := EncodeCursor(Cursor{At: time.Now(), ID: uuid.New()})
	if len(encoded) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(encoded))
	}
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("cursor is not URL safe: %s", encoded)
	}
}
