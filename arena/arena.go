// Package arena supplies the byte-addressed backing store for the
// allocator: a single contiguous, monotonically growing region standing in
// for an sbrk-style OS heap, plus the boundary-tag navigation primitives
// that read and write block headers and footers within it.
//
// Arena is not safe for concurrent use; callers serialize access the same
// way the engine that owns an Arena does.
package arena

import "encoding/binary"

// Offset addresses a byte within an Arena, relative to its base (which is
// always index 0 of the backing slice). Offset stands in for a raw pointer
// so that the backing slice can grow (and be moved by the Go runtime)
// without invalidating any block identity held by upper layers.
type Offset uint64

// NoOffset is the sentinel for "no block" / a null payload pointer.
const NoOffset = Offset(^uint64(0))

const (
	// Alignment all block sizes and returned payload offsets are
	// multiples of this value.
	Alignment = 16

	// HSIZE is the header size: size(8) + freed flag(8) + next(8) + prev(8).
	HSIZE = 32
	// FSIZE is the footer size: size(8) + freed flag(8).
	FSIZE = 16

	// MinBlockSize is the smallest legal block: header + footer, no payload.
	MinBlockSize = HSIZE + FSIZE
)

// Arena is the growing heap region.
type Arena struct {
	buf     []byte
	maxSize uint64 // 0 means unbounded
}

// New creates an empty Arena. maxSize bounds total growth (0 = unbounded);
// it exists only to give the resource-exhaustion path something to trip on
// in tests without actually allocating multi-gigabyte slices.
func New(maxSize uint64) *Arena {
	return &Arena{maxSize: maxSize}
}

// Lo returns the current low boundary of the arena (always 0: the base is
// fixed at construction, per the spec's heap_base).
func (a *Arena) Lo() Offset { return 0 }

// Hi returns the current high boundary of the arena (heap_end), which
// advances monotonically as Extend is called.
func (a *Arena) Hi() Offset { return Offset(len(a.buf)) }

// Extend requests n additional bytes from the backing store, appending
// them to the end of the arena. Returns the offset at which the new region
// begins (the future block header), and false if growth would exceed the
// configured maxSize (the resource-exhaustion path; the external
// heap_extend primitive is assumed to be this call in the real system).
func (a *Arena) Extend(n uint64) (Offset, bool) {
	if a.maxSize != 0 && uint64(len(a.buf))+n > a.maxSize {
		return 0, false
	}
	start := Offset(len(a.buf))
	a.buf = append(a.buf, make([]byte, n)...)
	return start, true
}

// CopyBytes copies n bytes of payload from src to dst. Stands in for the
// driver-supplied memcpy primitive.
func (a *Arena) CopyBytes(dst, src Offset, n uint64) {
	copy(a.buf[uint64(dst):uint64(dst)+n], a.buf[uint64(src):uint64(src)+n])
}

// ZeroBytes zero-fills n bytes of payload starting at off. Stands in for
// the driver-supplied memset primitive.
func (a *Arena) ZeroBytes(off Offset, n uint64) {
	clear(a.buf[uint64(off) : uint64(off)+n])
}

// Read returns a copy of n bytes of payload starting at off, for callers
// (tests, the CLI) that need to inspect arena content directly.
func (a *Arena) Read(off Offset, n uint64) []byte {
	out := make([]byte, n)
	copy(out, a.buf[uint64(off):uint64(off)+n])
	return out
}

// Write copies data into the arena starting at off.
func (a *Arena) Write(off Offset, data []byte) {
	copy(a.buf[uint64(off):uint64(off)+uint64(len(data))], data)
}

// Header is a view onto the header fields of the block at off. It is only
// valid while the Arena's backing slice has not been grown since it was
// obtained (Extend may reallocate the slice); callers should re-derive a
// Header after any Extend call.
type Header struct {
	buf []byte
	off Offset
}

// HeaderAt returns a view onto the header of the block starting at off.
func (a *Arena) HeaderAt(off Offset) Header {
	return Header{buf: a.buf, off: off}
}

func (h Header) Size() uint64 {
	return binary.LittleEndian.Uint64(h.buf[h.off : h.off+8])
}

func (h Header) SetSize(size uint64) {
	binary.LittleEndian.PutUint64(h.buf[h.off:h.off+8], size)
}

func (h Header) Freed() bool {
	return binary.LittleEndian.Uint64(h.buf[h.off+8:h.off+16]) != 0
}

func (h Header) SetFreed(freed bool) {
	var v uint64
	if freed {
		v = 1
	}
	binary.LittleEndian.PutUint64(h.buf[h.off+8:h.off+16], v)
}

func (h Header) Next() Offset {
	return Offset(binary.LittleEndian.Uint64(h.buf[h.off+16 : h.off+24]))
}

func (h Header) SetNext(next Offset) {
	binary.LittleEndian.PutUint64(h.buf[h.off+16:h.off+24], uint64(next))
}

func (h Header) Prev() Offset {
	return Offset(binary.LittleEndian.Uint64(h.buf[h.off+24 : h.off+32]))
}

func (h Header) SetPrev(prev Offset) {
	binary.LittleEndian.PutUint64(h.buf[h.off+24:h.off+32], uint64(prev))
}

// Payload returns the offset of the first payload byte of the block whose
// header starts at off: B + HSIZE.
func (h Header) Payload() Offset { return h.off + HSIZE }

// Footer is a view onto the footer fields of a block.
type Footer struct {
	buf []byte
	off Offset
}

func (a *Arena) footerAt(off Offset) Footer {
	return Footer{buf: a.buf, off: off}
}

func (f Footer) Size() uint64 {
	return binary.LittleEndian.Uint64(f.buf[f.off : f.off+8])
}

func (f Footer) SetSize(size uint64) {
	binary.LittleEndian.PutUint64(f.buf[f.off:f.off+8], size)
}

func (f Footer) Freed() bool {
	return binary.LittleEndian.Uint64(f.buf[f.off+8:f.off+16]) != 0
}

func (f Footer) SetFreed(freed bool) {
	var v uint64
	if freed {
		v = 1
	}
	binary.LittleEndian.PutUint64(f.buf[f.off+8:f.off+16], v)
}

// FooterOf returns the footer view for the block of the given size
// starting at off: B + size - FSIZE.
func (a *Arena) FooterOf(off Offset, size uint64) Footer {
	return a.footerAt(off + Offset(size) - FSIZE)
}

// HeaderOf returns the header offset for a block given its footer offset
// and size: F + FSIZE - size.
func HeaderOf(footerOff Offset, size uint64) Offset {
	return footerOff + FSIZE - Offset(size)
}

// SetSize rewrites both the header and footer size fields of the block at
// off; the footer written is the one at off + size - FSIZE for the new
// size. Callers must set size before any other field that depends on it
// (SetFreed locates the footer from the header's size).
func (a *Arena) SetSize(off Offset, size uint64) {
	h := a.HeaderAt(off)
	h.SetSize(size)
	a.FooterOf(off, size).SetSize(size)
}

// SetFreed rewrites both the header and footer freed bit of the block at
// off. The block's current size (already written) determines where the
// footer lives.
func (a *Arena) SetFreed(off Offset, freed bool) {
	h := a.HeaderAt(off)
	h.SetFreed(freed)
	a.FooterOf(off, h.Size()).SetFreed(freed)
}

// NextBlock returns the header at off + size, or NoOffset if that address
// is at or beyond the current heap end.
func (a *Arena) NextBlock(off Offset) Offset {
	size := a.HeaderAt(off).Size()
	next := off + Offset(size)
	if next >= a.Hi() {
		return NoOffset
	}
	return next
}

// PrevBlock reads the footer immediately preceding off (at off - FSIZE)
// and, if that address is within the arena, subtracts its recorded size
// from off to find the previous block's header. Returns NoOffset if
// off - FSIZE underflows the arena's low boundary.
//
// The original C source computed this as a dereferenced-footer-pointer
// subtraction (`(void*)block - prev_footer->size`), conflating address
// arithmetic with a value read in one expression; here the footer's size
// is read first and the offset arithmetic performed separately.
func (a *Arena) PrevBlock(off Offset) Offset {
	if uint64(off) < uint64(a.Lo())+FSIZE {
		return NoOffset
	}
	footerOff := off - FSIZE
	size := a.footerAt(footerOff).Size()
	return off - Offset(size)
}

// Align rounds x up to the nearest multiple of Alignment.
func Align(x uint64) uint64 {
	return Alignment * ((x + Alignment - 1) / Alignment)
}
