package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, w *Window, from, to int) {
	t.Helper()
	for tok := from; tok < to; tok++ {
		require.NoError(t, w.Push(tok))
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(0, 0)
	require.Error(t, err)
	_, err = New(8, 8)
	require.Error(t, err)
	_, err = New(8, -1)
	require.Error(t, err)

	w, err := New(8, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, w.Size())
	assert.Equal(t, 3, w.Keep())
	assert.Equal(t, 0, w.NPast())
}

func TestEvictKeepsPrefixAndHalvesTail(t *testing.T) {
	t.Parallel()

	w, err := New(16, 4)
	require.NoError(t, err)
	fill(t, w, 100, 116)
	prefix := w.Prefix()

	require.True(t, w.NeedsEviction(1))
	require.False(t, w.NeedsEviction(0))

	nPast, reprocess, err := w.Evict(1)
	require.NoError(t, err)
	assert.Equal(t, 4, nPast)
	assert.Equal(t, w.Keep(), w.NPast())
	assert.Equal(t, prefix, w.Prefix())
	assert.Equal(t, []int{100, 101, 102, 103}, w.Tokens())
	// (16-4)/2 = 6 most recent tokens
	assert.Equal(t, []int{110, 111, 112, 113, 114, 115}, reprocess)
}

func TestEvictTrimsToFitPending(t *testing.T) {
	t.Parallel()

	w, err := New(10, 2)
	require.NoError(t, err)
	fill(t, w, 0, 10)

	// (10-2)/2 = 4, but only 10-2-5 = 3 slots remain next to 5 pending tokens
	nPast, reprocess, err := w.Evict(5)
	require.NoError(t, err)
	assert.Equal(t, 2, nPast)
	assert.Equal(t, []int{7, 8, 9}, reprocess)
}

func TestEvictOverflow(t *testing.T) {
	t.Parallel()

	w, err := New(8, 6)
	require.NoError(t, err)
	fill(t, w, 0, 8)

	_, _, err = w.Evict(3)
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 8, w.NPast(), "failed eviction must leave the window intact")
}

func TestPushFull(t *testing.T) {
	t.Parallel()

	w, err := New(2, 0)
	require.NoError(t, err)
	fill(t, w, 0, 2)
	require.ErrorIs(t, w.Push(3), ErrOverflow)
}

func TestRepeatedEvictionPreservesPrefix(t *testing.T) {
	t.Parallel()

	w, err := New(12, 3)
	require.NoError(t, err)
	fill(t, w, 0, 3)
	prefix := w.Prefix()

	next := 3
	for range 50 {
		if w.NeedsEviction(1) {
			_, reprocess, err := w.Evict(1)
			require.NoError(t, err)
			require.Equal(t, w.Keep(), w.NPast())
			for _, tok := range reprocess {
				require.NoError(t, w.Push(tok))
			}
		}
		require.NoError(t, w.Push(next))
		next++
		require.Equal(t, prefix, w.Prefix())
	}
}

func TestRing(t *testing.T) {
	t.Parallel()

	r := NewRing(3, -1)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{-1, -1, -1}, r.Tokens())

	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{-1, 1, 2}, r.Tokens())
	assert.Equal(t, 2, r.Last(0))
	assert.Equal(t, 1, r.Last(1))

	r.Push(3)
	r.Push(4)
	assert.Equal(t, []int{2, 3, 4}, r.Tokens())
	assert.Equal(t, []int{9, 2, 3, 4}, r.AppendTo([]int{9}))

	empty := NewRing(0, 0)
	empty.Push(5)
	assert.Empty(t, empty.Tokens())
}
