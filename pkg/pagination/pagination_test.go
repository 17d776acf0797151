package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultLimit, -5: DefaultLimit, 10: 10, MaxLimit: MaxLimit, 1000: MaxLimit} {
		assert.Equal(t, want, NormalizeLimit(in), "limit %d", in)
	}
}

func TestPage(t *testing.T) {
	label := func(n *int) string { return "after-" + string(rune('0'+*n)) }

	rows, next := Page([]int{1, 2, 3, 4}, 3, label)
	assert.Equal(t, []int{1, 2, 3}, rows)
	assert.Equal(t, "after-3", next)

	rows, next = Page([]int{1, 2}, 3, label)
	assert.Equal(t, []int{1, 2}, rows)
	assert.Empty(t, next)
}

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	id := uuid.New()

	c, err := ParseCursor(EncodeCursor(Cursor{CreatedAt: ts, ID: id}))
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(ts))
	assert.Equal(t, id, c.ID)

	s, err := ParseSeqCursor(EncodeSeqCursor(SeqCursor{CreatedAt: ts.In(time.FixedZone("WIB", 7*3600)), Seq: 42}))
	require.NoError(t, err)
	assert.True(t, s.CreatedAt.Equal(ts))
	assert.EqualValues(t, 42, s.Seq)
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	c, err := ParseSeqCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = ParseSeqCursor("!!not-base64")
	assert.Error(t, err)

	bad := base64.StdEncoding.EncodeToString([]byte("2026-01-01T00:00:00Z|abc"))
	_, err = ParseSeqCursor(bad)
	assert.Error(t, err, "non-numeric sequence")
	_, err = ParseCursor(bad)
	assert.Error(t, err, "non-uuid id")

	noKey := base64.StdEncoding.EncodeToString([]byte("2026-01-01T00:00:00Z|"))
	_, err = ParseCursor(noKey)
	assert.Error(t, err, "missing key")
}
