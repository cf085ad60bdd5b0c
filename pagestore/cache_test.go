package pagestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_MissThenHit(t *testing.T) {
	c := newCache(2, 8)

	out := make([]byte, 8)
	require.False(t, c.get(1, out))

	c.put(1, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.True(t, c.get(1, out))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)
}

func TestCache_PutRefreshesExistingSlot(t *testing.T) {
	c := newCache(2, 4)

	c.put(10, []byte{1, 1, 1, 1})
	c.put(10, []byte{2, 2, 2, 2})

	out := make([]byte, 4)
	require.True(t, c.get(10, out))
	require.Equal(t, []byte{2, 2, 2, 2}, out)
}

func TestCache_EvictsWhenFull(t *testing.T) {
	c := newCache(1, 4)

	c.put(1, []byte{1, 1, 1, 1})
	c.put(2, []byte{2, 2, 2, 2})

	out := make([]byte, 4)
	require.False(t, c.get(1, out))
	require.True(t, c.get(2, out))
	require.Equal(t, []byte{2, 2, 2, 2}, out)
}
