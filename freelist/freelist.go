// Package freelist implements the segregated free-list index: a
// configurable number of doubly-linked lists, bucketed by approximate
// log2 size, with insert, unlink, and first-fit search over the arena's
// boundary-tagged blocks.
package freelist

import (
	"math/bits"

	"github.com/shenjiangwei/segalloc/arena"
)

const (
	// DefaultClassNum is the number of size classes used when no
	// override is configured.
	DefaultClassNum = 16
	// DefaultShift converts a floor(log2(size)) value into a class
	// index when no override is configured.
	DefaultShift = 5
	// MinClassSize is the smallest size a class mapping is defined for.
	MinClassSize = arena.MinBlockSize
)

// Index holds the free-list heads for a fixed number of size classes. The
// zero value is not usable; construct with New.
type Index struct {
	classNum int
	shift    int
	heads    []arena.Offset
}

// New returns an empty free-list index with classNum classes, bucketed by
// floor(log2(size)) - shift.
func New(classNum, shift int) *Index {
	idx := &Index{
		classNum: classNum,
		shift:    shift,
		heads:    make([]arena.Offset, classNum),
	}
	for i := range idx.heads {
		idx.heads[i] = arena.NoOffset
	}
	return idx
}

// ClassNum reports the number of size classes this index was built with.
func (idx *Index) ClassNum() int { return idx.classNum }

// Head returns the head of the given class, or arena.NoOffset if empty.
func (idx *Index) Head(class int) arena.Offset {
	return idx.heads[class]
}

// ClassOf maps a block size to its size class: clamp(floor(log2(size)) -
// shift, 0, classNum-1).
func (idx *Index) ClassOf(size uint64) int {
	if size < 1 {
		size = 1
	}
	class := bits.Len64(size) - 1 - idx.shift
	if class < 0 {
		class = 0
	}
	if class > idx.classNum-1 {
		class = idx.classNum - 1
	}
	return class
}

// Insert adds the block at off to the head of its size class's list. The
// block's size field must already reflect the size it is being inserted
// under.
func (idx *Index) Insert(a *arena.Arena, off arena.Offset) {
	h := a.HeaderAt(off)
	class := idx.ClassOf(h.Size())
	head := idx.heads[class]

	h.SetPrev(arena.NoOffset)
	h.SetNext(head)
	if head != arena.NoOffset {
		a.HeaderAt(head).SetPrev(off)
	}
	idx.heads[class] = off
}

// Unlink removes the block at off from its current size class's list. The
// class is recomputed from the block's current size, so callers must not
// mutate a block's size between Unlink and the matching Insert.
func (idx *Index) Unlink(a *arena.Arena, off arena.Offset) {
	h := a.HeaderAt(off)
	class := idx.ClassOf(h.Size())
	prev := h.Prev()
	next := h.Next()

	if prev == arena.NoOffset {
		idx.heads[class] = next
	} else {
		a.HeaderAt(prev).SetNext(next)
	}
	if next != arena.NoOffset {
		a.HeaderAt(next).SetPrev(prev)
	}
	h.SetNext(arena.NoOffset)
	h.SetPrev(arena.NoOffset)
}

// FindFit performs first-fit search: starting at class_of(asize), scan
// each class's list in insertion order for the first block whose size is
// at least asize, advancing to higher classes until one is found or all
// classes are exhausted.
func (idx *Index) FindFit(a *arena.Arena, asize uint64) (arena.Offset, bool) {
	start := idx.ClassOf(asize)
	for class := start; class < idx.classNum; class++ {
		for cur := idx.heads[class]; cur != arena.NoOffset; cur = a.HeaderAt(cur).Next() {
			if a.HeaderAt(cur).Size() >= asize {
				return cur, true
			}
		}
	}
	return arena.NoOffset, false
}
