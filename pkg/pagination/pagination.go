// Package pagination implements keyset cursors. A cursor is the opaque
// encoding of the sort key of the last row on the previous page.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

const sep = "|"

type Params struct {
	Limit  int
	Cursor string
}

// Cursor keys rows ordered by (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// SeqCursor keys rows ordered by (created_at, seq).
type SeqCursor struct {
	CreatedAt time.Time
	Seq       int64
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// anything not positive.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Page trims rows fetched with limit+1 down to limit. When the extra row is
// present it returns the cursor of the last kept row.
func Page[T any](rows []T, limit int, cursorOf func(*T) string) ([]T, string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, ""
	}
	return rows[:limit], cursorOf(&rows[limit-1])
}

func EncodeCursor(c Cursor) string {
	return pack(c.CreatedAt, c.ID.String())
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	at, key, err := unpack(value)
	if err != nil || key == "" {
		return nil, err
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: at, ID: id}, nil
}

func EncodeSeqCursor(c SeqCursor) string {
	return pack(c.CreatedAt, strconv.FormatInt(c.Seq, 10))
}

// ParseSeqCursor returns nil for a blank value.
func ParseSeqCursor(value string) (*SeqCursor, error) {
	at, key, err := unpack(value)
	if err != nil || key == "" {
		return nil, err
	}
	seq, err := strconv.ParseInt(key, 10, 64)
	if err != nil || seq <= 0 {
		return nil, fmt.Errorf("invalid cursor sequence %q", key)
	}
	return &SeqCursor{CreatedAt: at, Seq: seq}, nil
}

func pack(at time.Time, key string) string {
	raw := at.UTC().Format(time.RFC3339Nano) + sep + key
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// unpack yields an empty key for a blank cursor.
func unpack(value string) (time.Time, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decode cursor: %w", err)
	}
	stamp, key, found := strings.Cut(string(raw), sep)
	if !found || key == "" {
		return time.Time{}, "", errors.New("invalid cursor format")
	}
	at, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return at, key, nil
}
