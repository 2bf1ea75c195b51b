// Package checker implements the heap-consistency checker: a
// traversal-based verifier for the universal invariants (P1-P6 in the
// spec) used in debug builds. It operates directly on an arena.Arena and
// freelist.Index so it has no dependency on the engine package and cannot
// create an import cycle with it.
package checker

import (
	"github.com/cockroachdb/errors"

	"github.com/shenjiangwei/segalloc/arena"
	"github.com/shenjiangwei/segalloc/freelist"
)

// Violation names a single broken invariant, identifying the invariant
// and the offending block so a caller can log or assert on it directly
// instead of re-deriving the failure from a bare boolean.
type Violation struct {
	Invariant string
	Block     arena.Offset
}

func (v *Violation) Error() string {
	return errors.Newf("checkheap: invariant %s violated at block %d", v.Invariant, v.Block).Error()
}

// Walk traverses the arena from heapBase to heapEnd and every free list,
// checking:
//
//	P1 tiling        - blocks tile the arena exactly, no gaps or overlap.
//	P2 tag consistency - header and footer agree on size and freed.
//	P3 membership    - arena-walk free blocks == union of free lists.
//	P4 classification - every free block sits in class_of(its size).
//	P5 coalesced     - no two adjacent blocks are both free.
//	P6 alignment     - every block starts 16-aligned.
//
// It returns the first Violation found, wrapped with errors.Wrap context,
// or nil if the heap is consistent.
func Walk(a *arena.Arena, idx *freelist.Index, heapBase, heapEnd arena.Offset) error {
	walked := make(map[arena.Offset]bool)

	cur := heapBase
	var prevFreed bool
	havePrev := false
	for cur < heapEnd {
		if uint64(cur)%arena.Alignment != 0 {
			return wrap(&Violation{Invariant: "P6-alignment", Block: cur})
		}
		h := a.HeaderAt(cur)
		size := h.Size()
		if size < arena.MinBlockSize {
			return wrap(&Violation{Invariant: "P1-tiling", Block: cur})
		}
		foot := a.FooterOf(cur, size)
		if foot.Size() != size || foot.Freed() != h.Freed() {
			return wrap(&Violation{Invariant: "P2-tag-consistency", Block: cur})
		}
		if havePrev && prevFreed && h.Freed() {
			return wrap(&Violation{Invariant: "P5-coalesced", Block: cur})
		}
		if h.Freed() {
			walked[cur] = true
			class := idx.ClassOf(size)
			if !onList(a, idx, class, cur) {
				return wrap(&Violation{Invariant: "P3-membership", Block: cur})
			}
		}
		prevFreed = h.Freed()
		havePrev = true
		cur += arena.Offset(size)
	}
	if cur != heapEnd {
		return wrap(&Violation{Invariant: "P1-tiling", Block: cur})
	}

	for class := 0; class < idx.ClassNum(); class++ {
		for off := idx.Head(class); off != arena.NoOffset; off = a.HeaderAt(off).Next() {
			h := a.HeaderAt(off)
			if !h.Freed() {
				return wrap(&Violation{Invariant: "P3-membership", Block: off})
			}
			if idx.ClassOf(h.Size()) != class {
				return wrap(&Violation{Invariant: "P4-classification", Block: off})
			}
			if !walked[off] {
				return wrap(&Violation{Invariant: "P3-membership", Block: off})
			}
		}
	}

	return nil
}

// onList reports whether off appears on class's free list.
func onList(a *arena.Arena, idx *freelist.Index, class int, off arena.Offset) bool {
	for cur := idx.Head(class); cur != arena.NoOffset; cur = a.HeaderAt(cur).Next() {
		if cur == off {
			return true
		}
	}
	return false
}

func wrap(v *Violation) error {
	return errors.Wrapf(v, "heap consistency check failed")
}
