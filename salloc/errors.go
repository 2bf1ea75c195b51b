package salloc

import "github.com/cockroachdb/errors"

// ErrOutOfMemory is returned by Allocate, Reallocate, and ZeroAllocate when
// growing the arena to satisfy a request would exceed the engine's
// configured maximum heap size, or the arena itself refuses to grow.
var ErrOutOfMemory = errors.New("salloc: out of memory")

// ErrRequestTooLarge is returned when a single requested size, once
// aligned and given its boundary-tag overhead, would not fit in any
// representable block.
var ErrRequestTooLarge = errors.New("salloc: requested size too large")
