package capture_test

import (
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Run("strictly increasing in generation order", func(t *testing.T) {
		prev, err := capture.NewID()
		require.NoError(t, err)
		for i := 0; i < 5000; i++ {
			next, err := capture.NewID()
			require.NoError(t, err)
			require.Equal(t, 1, next.Compare(prev), "iteration %d", i)
			require.Greater(t, next.String(), prev.String())
			prev = next
		}
	})

	t.Run("embeds the current millisecond", func(t *testing.T) {
		before := time.Now().Add(-time.Millisecond)
		id, err := capture.NewID()
		require.NoError(t, err)
		after := time.Now().Add(time.Second)

		assert.True(t, id.Time().After(before), "%s before %s", id.Time(), before)
		assert.True(t, id.Time().Before(after))
		assert.Equal(t, time.UTC, id.Time().Location())
		assert.Equal(t, 0, id.Time().Nanosecond()%int(time.Millisecond))
	})
}

func TestParseID(t *testing.T) {
	id, err := capture.NewID()
	require.NoError(t, err)

	t.Run("canonical form round trips", func(t *testing.T) {
		parsed, err := capture.ParseID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("upper case is accepted", func(t *testing.T) {
		parsed, err := capture.ParseID(strings.ToUpper(id.String()))
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	invalid := []string{
		"",
		"not-a-valid-id",
		strings.ReplaceAll(id.String(), "-", ""),
		"{" + id.String() + "}",
		"urn:uuid:" + id.String(),
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8", // version 1
		"550e8400-e29b-41d4-a716-446655440000", // version 4
		"0192d4f0-7b1c-7zzz-8000-000000000000",
	}
	for _, s := range invalid {
		t.Run("rejects "+s, func(t *testing.T) {
			_, err := capture.ParseID(s)
			assert.ErrorIs(t, err, capture.ErrInvalidIdentifier)
		})
	}
}

func TestCursor(t *testing.T) {
	id, err := capture.NewID()
	require.NoError(t, err)

	t.Run("encode and decode", func(t *testing.T) {
		token := capture.CursorAfter(id).String()
		assert.NotEmpty(t, token)
		assert.NotContains(t, token, id.String())

		c, err := capture.ParseCursor(token)
		require.NoError(t, err)
		assert.Equal(t, id, c.After())
		assert.False(t, c.IsStart())
	})

	t.Run("empty token is the start", func(t *testing.T) {
		c, err := capture.ParseCursor("")
		require.NoError(t, err)
		assert.True(t, c.IsStart())
		assert.True(t, c.After().IsZero())
		assert.Equal(t, "", c.String())
	})

	for _, token := range []string{"%%%", "AAAA", id.String(), "AAAAAAAAAAAAAAAAAAAAAA"} {
		t.Run("rejects "+token, func(t *testing.T) {
			_, err := capture.ParseCursor(token)
			assert.ErrorIs(t, err, capture.ErrInvalidCursor)
		})
	}
}

func TestID_Text(t *testing.T) {
	id, err := capture.NewID()
	require.NoError(t, err)

	b, err := id.MarshalText()
	require.NoError(t, err)

	var decoded capture.ID
	require.NoError(t, decoded.UnmarshalText(b))
	assert.Equal(t, id, decoded)
	assert.Error(t, decoded.UnmarshalText([]byte("nope")))
}
