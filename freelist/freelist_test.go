package freelist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/segalloc/arena"
)

func newIndex() *Index { return New(DefaultClassNum, DefaultShift) }

func TestClassOf(t *testing.T) {
	idx := newIndex()
	require.Equal(t, 0, idx.ClassOf(1))
	require.Equal(t, 0, idx.ClassOf(48))
	require.Equal(t, 0, idx.ClassOf(63))
	require.Equal(t, 1, idx.ClassOf(64))
	require.Equal(t, DefaultClassNum-1, idx.ClassOf(1<<40))
}

func TestClassOfRespectsCustomClassNum(t *testing.T) {
	idx := New(4, DefaultShift)
	require.Equal(t, 3, idx.ClassOf(1<<40))
	require.Equal(t, 4, idx.ClassNum())
}

func newBlock(t *testing.T, a *arena.Arena, size uint64) arena.Offset {
	t.Helper()
	off, ok := a.Extend(size)
	require.True(t, ok)
	a.SetSize(off, size)
	a.SetFreed(off, true)
	return off
}

func TestInsertUnlinkSingle(t *testing.T) {
	a := arena.New(0)
	idx := newIndex()
	off := newBlock(t, a, 64)

	idx.Insert(a, off)
	require.Equal(t, off, idx.Head(idx.ClassOf(64)))

	idx.Unlink(a, off)
	require.Equal(t, arena.NoOffset, idx.Head(idx.ClassOf(64)))
}

func TestInsertOrderIsLIFO(t *testing.T) {
	a := arena.New(0)
	idx := newIndex()
	first := newBlock(t, a, 64)
	second := newBlock(t, a, 64)

	idx.Insert(a, first)
	idx.Insert(a, second)

	class := idx.ClassOf(64)
	require.Equal(t, second, idx.Head(class))
	require.Equal(t, first, a.HeaderAt(second).Next())
	require.Equal(t, arena.NoOffset, a.HeaderAt(first).Next())
	require.Equal(t, second, a.HeaderAt(first).Prev())
}

func TestUnlinkMiddle(t *testing.T) {
	a := arena.New(0)
	idx := newIndex()
	x := newBlock(t, a, 64)
	y := newBlock(t, a, 64)
	z := newBlock(t, a, 64)
	idx.Insert(a, x)
	idx.Insert(a, y)
	idx.Insert(a, z) // list: z -> y -> x

	idx.Unlink(a, y)

	require.Equal(t, arena.NoOffset, a.HeaderAt(z).Prev())
	require.Equal(t, x, a.HeaderAt(z).Next())
	require.Equal(t, z, a.HeaderAt(x).Prev())
}

func TestFindFitAdvancesClasses(t *testing.T) {
	a := arena.New(0)
	idx := newIndex()
	big := newBlock(t, a, 4096)
	idx.Insert(a, big)

	off, ok := idx.FindFit(a, 64)
	require.True(t, ok)
	require.Equal(t, big, off)

	_, ok = idx.FindFit(a, 1<<40)
	require.False(t, ok)
}
