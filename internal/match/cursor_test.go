package match

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	eq := func(a, b string) bool { return a == b }
	feed := []string{"e", "d", "c", "b", "a"}

	idx, ok := Cursor("c", feed, eq)
	require.True(t, ok)
	require.Equal(t, 2, idx)
	require.Equal(t, []string{"d", "e"}, Fresh(feed, idx))

	idx, ok = Cursor("e", feed, eq)
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.Empty(t, Fresh(feed, idx))

	_, ok = Cursor("zz", feed, eq)
	require.False(t, ok)
}

func TestCursorIdempotent(t *testing.T) {
	eq := func(a, b string) bool { return a == b }
	feed := []string{"c", "b", "a"}

	for i := 0; i < 2; i++ {
		idx, ok := Cursor(feed[0], feed, eq)
		require.True(t, ok)
		require.Empty(t, Fresh(feed, idx))
	}
}
