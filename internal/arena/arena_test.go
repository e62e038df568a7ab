package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArena_AllocGetFree(t *testing.T) {
	a := New[string]()

	h1 := a.Alloc("one")
	h2 := a.Alloc("two")
	require.NotEqual(t, h1, h2)

	v, ok := a.Get(h1)
	require.True(t, ok)
	require.Equal(t, "one", v)

	require.True(t, a.Free(h1))
	_, ok = a.Get(h1)
	require.False(t, ok, "freed handle must not resolve")

	// Reuse of the slot must bump the generation, so the old handle stays stale.
	h3 := a.Alloc("three")
	require.Equal(t, h1.index, h3.index)
	require.NotEqual(t, h1.generation, h3.generation)

	v, ok = a.Get(h2)
	require.True(t, ok)
	require.Equal(t, "two", v)
}

func TestArena_ZeroHandleIsNull(t *testing.T) {
	a := New[int]()
	var zero Handle
	require.True(t, zero.IsZero())
	_, ok := a.Get(zero)
	require.False(t, ok)
}

func TestArena_MustGetPanicsOnStaleHandle(t *testing.T) {
	a := New[int]()
	h := a.Alloc(42)
	a.Free(h)
	require.Panics(t, func() { a.MustGet(h) })
}

func TestArena_SetUpdatesLiveSlot(t *testing.T) {
	a := New[int]()
	h := a.Alloc(1)
	require.True(t, a.Set(h, 2))
	v, ok := a.Get(h)
	require.True(t, ok)
	require.Equal(t, 2, v)

	a.Free(h)
	require.False(t, a.Set(h, 3))
}

func TestArena_Len(t *testing.T) {
	a := New[int]()
	require.Equal(t, 0, a.Len())
	h1 := a.Alloc(1)
	a.Alloc(2)
	require.Equal(t, 2, a.Len())
	a.Free(h1)
	require.Equal(t, 1, a.Len())
}
