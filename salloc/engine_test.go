package salloc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestAllocateZeroReturnsNoPtr(t *testing.T) {
	e := newTestEngine(t)
	off, err := e.Allocate(0)
	require.NoError(t, err)
	require.Equal(t, Offset(NoPtr), off)
}

func TestFreeNoPtrIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	require.NotPanics(t, func() { e.Free(NoPtr) })
	require.NoError(t, e.CheckHeap())
}

func TestReallocateNoPtrBehavesAsAllocate(t *testing.T) {
	e := newTestEngine(t)
	off, err := e.Reallocate(NoPtr, 32)
	require.NoError(t, err)
	require.NotEqual(t, Offset(NoPtr), off)
}

func TestReallocateZeroBehavesAsFree(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Allocate(32)
	require.NoError(t, err)

	off, err := e.Reallocate(p, 0)
	require.NoError(t, err)
	require.Equal(t, Offset(NoPtr), off)
	require.NoError(t, e.CheckHeap())
}

// S1 (basic): init; a=allocate(32); b=allocate(32); free(a); free(b).
func TestScenarioS1Basic(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.Allocate(32)
	require.NoError(t, err)
	b, err := e.Allocate(32)
	require.NoError(t, err)

	e.Free(a)
	e.Free(b)
	require.NoError(t, e.CheckHeap())
}

// S2 (split): init; p=allocate(16). The initial free block splits.
func TestScenarioS2Split(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, e.CheckHeap())
}

// S3 (coalesce middle): a,b,c=allocate(64); free(a); free(c); free(b).
// After the final free, a single free block should cover a∪b∪c and the
// trailing tail.
func TestScenarioS3CoalesceMiddle(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.Allocate(64)
	require.NoError(t, err)
	b, err := e.Allocate(64)
	require.NoError(t, err)
	c, err := e.Allocate(64)
	require.NoError(t, err)

	e.Free(a)
	e.Free(c)
	e.Free(b)
	require.NoError(t, e.CheckHeap())

	total := 0
	for class := 0; class < e.idx.ClassNum(); class++ {
		for off := e.idx.Head(class); off != NoPtr; off = e.a.HeaderAt(off).Next() {
			total++
		}
	}
	require.Equal(t, 1, total, "expected exactly one free block after full coalesce")
}

// S4 (extend reuses tail): requesting more than the free tail holds should
// only grow the arena by the shortfall, not the full request.
func TestScenarioS4ExtendReusesTail(t *testing.T) {
	e := newTestEngine(t)
	tail, err := e.Allocate(64)
	require.NoError(t, err)
	e.Free(tail)

	hiBefore := e.a.Hi()
	_, err = e.Allocate(4096)
	require.NoError(t, err)
	hiAfter := e.a.Hi()

	require.Less(t, uint64(hiAfter-hiBefore), uint64(blockSizeFor(4096)),
		"extension should be less than a full fresh block when a free tail is reused")
	require.NoError(t, e.CheckHeap())
}

// S5 (realloc grow): p=allocate(16); write X; q=reallocate(p,1024); bytes
// 0..15 of q equal X.
func TestScenarioS5ReallocGrowPreservesPrefix(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Allocate(16)
	require.NoError(t, err)
	pattern := bytes.Repeat([]byte{0xAB}, 16)
	e.WriteBytes(p, pattern)

	q, err := e.Reallocate(p, 1024)
	require.NoError(t, err)
	require.Equal(t, pattern, e.ReadBytes(q, 16))
	require.NoError(t, e.CheckHeap())
}

// S6 (realloc shrink preserves prefix): p=allocate(1024); write X;
// q=reallocate(p,16); bytes 0..15 of q equal the first 16 bytes of X.
func TestScenarioS6ReallocShrinkPreservesPrefix(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Allocate(1024)
	require.NoError(t, err)
	pattern := bytes.Repeat([]byte{0xCD}, 16)
	e.WriteBytes(p, pattern)

	q, err := e.Reallocate(p, 16)
	require.NoError(t, err)
	require.Equal(t, pattern, e.ReadBytes(q, 16))
	require.NoError(t, e.CheckHeap())
}

// R1: free(allocate(n)) returns the heap to a state passing every
// invariant, equivalent up to coalescing.
func TestRoundTripR1FreeAfterAllocate(t *testing.T) {
	e := newTestEngine(t)
	for _, n := range []uint64{1, 16, 64, 1024, 4096} {
		p, err := e.Allocate(n)
		require.NoError(t, err)
		e.Free(p)
		require.NoError(t, e.CheckHeap())
	}
}

// R2: reallocate(p, old_size_of(p)) returns p unchanged.
func TestRoundTripR2ReallocateSameSize(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Allocate(100)
	require.NoError(t, err)

	q, err := e.Reallocate(p, 100)
	require.NoError(t, err)
	require.Equal(t, p, q)
}

// R3: reallocate(p, n); free preserves the first min(n, old_size) payload
// bytes.
func TestRoundTripR3ReallocateThenFreePreservesPrefix(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.Allocate(200)
	require.NoError(t, err)
	pattern := bytes.Repeat([]byte{0x7F}, 200)
	e.WriteBytes(p, pattern)

	q, err := e.Reallocate(p, 50)
	require.NoError(t, err)
	require.Equal(t, pattern[:50], e.ReadBytes(q, 50))
	e.Free(q)
	require.NoError(t, e.CheckHeap())
}

func TestOutOfMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHeapSize = 128
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	_, err = e.Allocate(1 << 20)
	require.ErrorIs(t, err, ErrOutOfMemory)
}
