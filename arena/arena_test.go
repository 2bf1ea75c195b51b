package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtendGrowsMonotonically(t *testing.T) {
	a := New(0)
	require.Equal(t, Offset(0), a.Lo())
	require.Equal(t, Offset(0), a.Hi())

	off1, ok := a.Extend(64)
	require.True(t, ok)
	require.Equal(t, Offset(0), off1)
	require.Equal(t, Offset(64), a.Hi())

	off2, ok := a.Extend(32)
	require.True(t, ok)
	require.Equal(t, Offset(64), off2)
	require.Equal(t, Offset(96), a.Hi())
}

func TestExtendRespectsMaxSize(t *testing.T) {
	a := New(64)
	_, ok := a.Extend(64)
	require.True(t, ok)
	_, ok = a.Extend(1)
	require.False(t, ok, "extend beyond maxSize must fail")
}

func TestHeaderFooterRoundTrip(t *testing.T) {
	a := New(0)
	off, ok := a.Extend(MinBlockSize + 16)
	require.True(t, ok)

	a.SetSize(off, MinBlockSize+16)
	a.SetFreed(off, true)

	h := a.HeaderAt(off)
	require.Equal(t, uint64(MinBlockSize+16), h.Size())
	require.True(t, h.Freed())

	f := a.FooterOf(off, h.Size())
	require.Equal(t, h.Size(), f.Size())
	require.Equal(t, h.Freed(), f.Freed())

	h.SetNext(Offset(8))
	h.SetPrev(Offset(16))
	require.Equal(t, Offset(8), h.Next())
	require.Equal(t, Offset(16), h.Prev())
}

func TestNextPrevBlockNavigation(t *testing.T) {
	a := New(0)
	size := uint64(MinBlockSize)
	off1, _ := a.Extend(size)
	a.SetSize(off1, size)
	off2, _ := a.Extend(size)
	a.SetSize(off2, size)

	require.Equal(t, off2, a.NextBlock(off1))
	require.Equal(t, NoOffset, a.NextBlock(off2))
	require.Equal(t, off1, a.PrevBlock(off2))
	require.Equal(t, NoOffset, a.PrevBlock(off1))
}

func TestAlign(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 16, 15: 16, 16: 16, 17: 32, 48: 48, 49: 64}
	for in, want := range cases {
		require.Equal(t, want, Align(in), "Align(%d)", in)
	}
}

func TestReadWrite(t *testing.T) {
	a := New(0)
	off, _ := a.Extend(32)
	data := []byte("0123456789abcdef")
	a.Write(off, data)
	require.Equal(t, data, a.Read(off, uint64(len(data))))

	a.ZeroBytes(off, 4)
	require.Equal(t, []byte{0, 0, 0, 0}, a.Read(off, 4))
}
