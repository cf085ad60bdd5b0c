package clockx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClock_New_DefaultCapacity(t *testing.T) {
	c := New(0)
	require.NotNil(t, c)
	require.Equal(t, 1, c.Capacity())
	require.Equal(t, 0, c.Size())
}

func TestClock_Touch_MakesPresent(t *testing.T) {
	c := New(3)

	c.Touch(1)
	require.Equal(t, 1, c.Size())

	// Touching again is idempotent for Size.
	c.Touch(1)
	require.Equal(t, 1, c.Size())
}

func TestClock_Evict_NoneOccupied(t *testing.T) {
	c := New(2)

	id, ok := c.Evict()
	require.False(t, ok)
	require.Equal(t, -1, id)
}

func TestClock_Evict_SecondChanceAndRemovesVictim(t *testing.T) {
	c := New(3)
	for i := 0; i < 3; i++ {
		c.Touch(i)
	}
	require.Equal(t, 3, c.Size())

	v1, ok := c.Evict()
	require.True(t, ok)
	require.GreaterOrEqual(t, v1, 0)
	require.Less(t, v1, 3)
	require.Equal(t, 2, c.Size())

	v2, ok := c.Evict()
	require.True(t, ok)
	require.NotEqual(t, v1, v2)
	require.Equal(t, 1, c.Size())

	v3, ok := c.Evict()
	require.True(t, ok)
	require.NotEqual(t, v1, v3)
	require.NotEqual(t, v2, v3)
	require.Equal(t, 0, c.Size())

	_, ok = c.Evict()
	require.False(t, ok)
}

func TestClock_Remove_DecrementsSize(t *testing.T) {
	c := New(3)
	c.Touch(0)
	c.Touch(1)
	require.Equal(t, 2, c.Size())

	c.Remove(0)
	require.Equal(t, 1, c.Size())

	// Remove again is a no-op.
	c.Remove(0)
	require.Equal(t, 1, c.Size())
}

func TestClock_BoundsChecks(t *testing.T) {
	c := New(2)

	c.Touch(-1)
	c.Touch(2)
	c.Remove(-1)
	c.Remove(2)

	require.Equal(t, 0, c.Size())
}
