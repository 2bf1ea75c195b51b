// Package stats collects allocator telemetry: operation counts, live and
// peak memory usage, and heap-extension activity. These figures are
// diagnostic only -- the spec's open question about whether counters like
// these are part of the contract is resolved here by keeping them
// entirely separate from the correctness-critical engine state.
package stats

// Counters is a snapshot of allocator telemetry. The zero value is a
// valid, all-zero starting point.
type Counters struct {
	Mallocs       uint64
	Frees         uint64
	Reallocs      uint64
	ZeroAllocs    uint64
	Extends       uint64
	BytesExtended uint64
	LiveBytes     uint64
	PeakLiveBytes uint64
}

// RecordAlloc tracks a successful allocation of n live payload bytes.
func (c *Counters) RecordAlloc(n uint64) {
	c.Mallocs++
	c.LiveBytes += n
	if c.LiveBytes > c.PeakLiveBytes {
		c.PeakLiveBytes = c.LiveBytes
	}
}

// RecordFree tracks a free of n live payload bytes.
func (c *Counters) RecordFree(n uint64) {
	c.Frees++
	if n > c.LiveBytes {
		c.LiveBytes = 0
	} else {
		c.LiveBytes -= n
	}
}

// RecordRealloc tracks a reallocate call; the caller reports the net
// change in live bytes (new minus old), which may be negative.
func (c *Counters) RecordRealloc(delta int64) {
	c.Reallocs++
	if delta >= 0 {
		c.LiveBytes += uint64(delta)
	} else {
		shrink := uint64(-delta)
		if shrink > c.LiveBytes {
			c.LiveBytes = 0
		} else {
			c.LiveBytes -= shrink
		}
	}
	if c.LiveBytes > c.PeakLiveBytes {
		c.PeakLiveBytes = c.LiveBytes
	}
}

// RecordZeroAlloc tracks a zero-allocate call.
func (c *Counters) RecordZeroAlloc() {
	c.ZeroAllocs++
}

// RecordExtend tracks a heap extension of n bytes.
func (c *Counters) RecordExtend(n uint64) {
	c.Extends++
	c.BytesExtended += n
}

// Fragmentation estimates wasted heap space as 1 - live/heapSize. Returns
// 0 if heapSize is 0.
func (c *Counters) Fragmentation(heapSize uint64) float64 {
	if heapSize == 0 {
		return 0
	}
	return 1 - float64(c.LiveBytes)/float64(heapSize)
}

// Snapshot returns a copy of the current counters, safe to hold onto after
// further operations mutate the original.
func (c *Counters) Snapshot() Counters {
	return *c
}
