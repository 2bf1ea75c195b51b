// Package salloc is the root allocator engine: it composes the arena's
// boundary-tagged backing store and the freelist's segregated size-class
// index into the classic four-operation interface (allocate, free,
// reallocate, zero-allocate) plus init and a heap-consistency hook.
package salloc

import (
	"math"

	"go.uber.org/zap"

	"github.com/shenjiangwei/segalloc/arena"
	"github.com/shenjiangwei/segalloc/checker"
	"github.com/shenjiangwei/segalloc/freelist"
	"github.com/shenjiangwei/segalloc/stats"
)

// Offset addresses a payload or block within the engine's arena.
type Offset = arena.Offset

// NoPtr stands in for a null payload pointer: the degenerate-input return
// value for Allocate/Reallocate failures that are not out-of-memory, and
// the expected argument to Free/Reallocate meaning "no block".
const NoPtr = arena.NoOffset

// Engine is the allocator. It is not safe for concurrent use; serialize
// calls externally (rpcpool does this with a single mutex).
type Engine struct {
	a   *arena.Arena
	idx *freelist.Index
	cfg Config
	log *zap.SugaredLogger
	st  stats.Counters
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger injects a logger; a nil *zap.SugaredLogger is equivalent to
// not calling WithLogger at all (logging stays a no-op).
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine constructs an Engine with an empty arena (heap_lo == heap_hi)
// and the given configuration. The first call that needs space triggers
// the initial heap extension.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		a:   arena.New(cfg.MaxHeapSize),
		idx: freelist.New(cfg.ClassNum, cfg.Shift),
		cfg: cfg,
		log: nopLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log.Debugw("engine initialized", "alignment", cfg.Alignment, "chunksize", cfg.ChunkSize)
	return e, nil
}

// Stats returns a snapshot of the engine's telemetry counters.
func (e *Engine) Stats() stats.Counters { return e.st.Snapshot() }

// ReadBytes returns a copy of n bytes of payload starting at off.
func (e *Engine) ReadBytes(off Offset, n uint64) []byte { return e.a.Read(off, n) }

// WriteBytes copies data into the payload starting at off.
func (e *Engine) WriteBytes(off Offset, data []byte) { e.a.Write(off, data) }

// blockSizeFor computes the aligned, overhead-inclusive block size for a
// requested payload size.
func blockSizeFor(payload uint64) uint64 {
	raw := payload + arena.HSIZE + arena.FSIZE
	if raw < arena.MinBlockSize {
		raw = arena.MinBlockSize
	}
	return arena.Align(raw)
}

// Allocate reserves a block of at least size payload bytes and returns the
// offset of its first payload byte. size == 0 returns NoPtr with no error,
// per the degenerate-input contract; a size too large to fit any block
// returns ErrRequestTooLarge; running out of arena space returns
// ErrOutOfMemory.
func (e *Engine) Allocate(size uint64) (Offset, error) {
	if size == 0 {
		return NoPtr, nil
	}
	if size > math.MaxUint64-arena.HSIZE-arena.FSIZE-arena.Alignment {
		return NoPtr, ErrRequestTooLarge
	}
	asize := blockSizeFor(size)

	off, ok := e.idx.FindFit(e.a, asize)
	if !ok {
		var err error
		off, err = e.extendAndFit(asize)
		if err != nil {
			e.log.Errorw("allocate failed", "size", size, "error", err)
			return NoPtr, err
		}
	}
	e.idx.Unlink(e.a, off)
	off = e.allocateFit(off, asize)
	e.st.RecordAlloc(size)
	e.log.Debugw("allocated", "size", size, "block", asize, "offset", uint64(off))
	return e.a.HeaderAt(off).Payload(), nil
}

// allocateFit marks the free block at off (size already >= asize) used,
// splitting off a trailing free remainder when it is large enough to be
// its own block. A remainder is merged with the following block when that
// block is free, so no two adjacent blocks are left free.
func (e *Engine) allocateFit(off Offset, asize uint64) Offset {
	blockSize := e.a.HeaderAt(off).Size()
	remainder := blockSize - asize
	if remainder >= arena.MinBlockSize {
		newOff := off + Offset(asize)
		if next := e.a.NextBlock(off); next != arena.NoOffset && e.a.HeaderAt(next).Freed() {
			e.idx.Unlink(e.a, next)
			remainder += e.a.HeaderAt(next).Size()
		}
		e.a.SetSize(newOff, remainder)
		e.a.SetFreed(newOff, true)
		e.idx.Insert(e.a, newOff)
		e.a.SetSize(off, asize)
	}
	e.a.SetFreed(off, false)
	return off
}

// extendAndFit grows the arena by enough to satisfy asize, reusing and
// coalescing into the last block if it is free (the "no last block" case
// is just the lastFree == NoOffset branch, handled uniformly rather than
// as a special case), and returns the resulting free block.
func (e *Engine) extendAndFit(asize uint64) (Offset, error) {
	lastFree := Offset(NoPtr)
	if e.a.Hi() > e.a.Lo() {
		last := e.a.PrevBlock(e.a.Hi())
		if last != arena.NoOffset && e.a.HeaderAt(last).Freed() {
			lastFree = last
		}
	}

	need := asize
	if lastFree != NoPtr {
		have := e.a.HeaderAt(lastFree).Size()
		if have >= need {
			need = 0
		} else {
			need -= have
		}
	}

	if need > 0 {
		if lastFree == NoPtr && need < e.cfg.ChunkSize {
			need = e.cfg.ChunkSize
		}
		need = arena.Align(need)

		grown, ok := e.a.Extend(need)
		if !ok {
			return NoPtr, ErrOutOfMemory
		}
		e.st.RecordExtend(need)
		e.log.Debugw("heap extended", "bytes", need)

		if lastFree != NoPtr {
			e.idx.Unlink(e.a, lastFree)
			e.a.SetSize(lastFree, e.a.HeaderAt(lastFree).Size()+need)
			e.a.SetFreed(lastFree, true)
		} else {
			e.a.SetSize(grown, need)
			e.a.SetFreed(grown, true)
			lastFree = grown
		}
	}

	e.idx.Insert(e.a, lastFree)
	return lastFree, nil
}

// mergeKind tags which neighbors of a freed block are themselves free.
type mergeKind int

const (
	mergeNone mergeKind = iota
	mergeLeft
	mergeRight
	mergeBoth
)

// Free releases the block whose payload starts at ptr, coalescing with
// any free neighbor. Free(NoPtr) is a no-op. Freeing an address the
// engine did not hand out, or double-freeing, is undefined -- the engine
// does not check for it; checker.Walk can detect the resulting corruption
// after the fact.
func (e *Engine) Free(ptr Offset) {
	if ptr == NoPtr {
		return
	}
	off := ptr - arena.HSIZE
	size := e.a.HeaderAt(off).Size()
	payload := size - arena.HSIZE - arena.FSIZE

	prevOff := e.a.PrevBlock(off)
	nextOff := e.a.NextBlock(off)
	prevFree := prevOff != arena.NoOffset && e.a.HeaderAt(prevOff).Freed()
	nextFree := nextOff != arena.NoOffset && e.a.HeaderAt(nextOff).Freed()

	var kind mergeKind
	switch {
	case prevFree && nextFree:
		kind = mergeBoth
	case prevFree:
		kind = mergeLeft
	case nextFree:
		kind = mergeRight
	default:
		kind = mergeNone
	}

	switch kind {
	case mergeNone:
		e.a.SetFreed(off, true)
		e.idx.Insert(e.a, off)
	case mergeRight:
		e.idx.Unlink(e.a, nextOff)
		e.a.SetSize(off, size+e.a.HeaderAt(nextOff).Size())
		e.a.SetFreed(off, true)
		e.idx.Insert(e.a, off)
	case mergeLeft:
		e.idx.Unlink(e.a, prevOff)
		e.a.SetSize(prevOff, e.a.HeaderAt(prevOff).Size()+size)
		e.a.SetFreed(prevOff, true)
		e.idx.Insert(e.a, prevOff)
	case mergeBoth:
		e.idx.Unlink(e.a, prevOff)
		e.idx.Unlink(e.a, nextOff)
		total := e.a.HeaderAt(prevOff).Size() + size + e.a.HeaderAt(nextOff).Size()
		e.a.SetSize(prevOff, total)
		e.a.SetFreed(prevOff, true)
		e.idx.Insert(e.a, prevOff)
	}

	e.st.RecordFree(payload)
	e.log.Debugw("freed", "offset", uint64(off), "merge", int(kind))
}

// Reallocate resizes the block at ptr to hold size payload bytes,
// preserving min(old, new) payload bytes of content. Reallocate(NoPtr, n)
// behaves as Allocate(n); Reallocate(ptr, 0) behaves as Free(ptr) and
// returns NoPtr.
func (e *Engine) Reallocate(ptr Offset, size uint64) (Offset, error) {
	if ptr == NoPtr {
		return e.Allocate(size)
	}
	if size == 0 {
		e.Free(ptr)
		return NoPtr, nil
	}
	if size > math.MaxUint64-arena.HSIZE-arena.FSIZE-arena.Alignment {
		return NoPtr, ErrRequestTooLarge
	}

	off := ptr - arena.HSIZE
	oldBlockSize := e.a.HeaderAt(off).Size()
	oldPayload := oldBlockSize - arena.HSIZE - arena.FSIZE
	newAsize := blockSizeFor(size)

	if newAsize <= oldBlockSize {
		e.allocateFit(off, newAsize)
		e.st.RecordRealloc(int64(size) - int64(oldPayload))
		return ptr, nil
	}

	nextOff := e.a.NextBlock(off)
	if nextOff != arena.NoOffset && e.a.HeaderAt(nextOff).Freed() {
		combined := oldBlockSize + e.a.HeaderAt(nextOff).Size()
		if combined >= newAsize {
			e.idx.Unlink(e.a, nextOff)
			e.a.SetSize(off, combined)
			e.allocateFit(off, newAsize)
			e.st.RecordRealloc(int64(size) - int64(oldPayload))
			return ptr, nil
		}
	}

	newPtr, err := e.Allocate(size)
	if err != nil {
		return NoPtr, err
	}
	copySize := oldPayload
	if size < copySize {
		copySize = size
	}
	e.a.CopyBytes(newPtr, ptr, copySize)
	e.Free(ptr)
	// Count the move as one reallocate, not as a separate allocate and free.
	e.st.Mallocs--
	e.st.Frees--
	e.st.RecordRealloc(0)
	return newPtr, nil
}

// ZeroAllocate allocates space for count elements of size bytes each,
// zero-filling the result. It is the calloc-equivalent operation.
func (e *Engine) ZeroAllocate(count, size uint64) (Offset, error) {
	total := count * size
	ptr, err := e.Allocate(total)
	if err != nil {
		return NoPtr, err
	}
	if ptr != NoPtr {
		e.a.ZeroBytes(ptr, total)
	}
	e.st.RecordZeroAlloc()
	return ptr, nil
}

// CheckHeap verifies every universal invariant over the current arena and
// free-list state, returning the first checker.Violation found.
func (e *Engine) CheckHeap() error {
	return checker.Walk(e.a, e.idx, e.a.Lo(), e.a.Hi())
}
