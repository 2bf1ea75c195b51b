package salloc

import (
	"github.com/prataprc/gosettings"

	"github.com/shenjiangwei/segalloc/freelist"
)

// Config collects the allocator's tunables. The zero value is not usable;
// use DefaultConfig or FromSettings.
type Config struct {
	// Alignment is the payload alignment. The engine only logs it; block
	// sizes and payload offsets are always rounded to arena.Alignment.
	Alignment uint64
	// ChunkSize is the minimum number of bytes requested from the arena
	// when a heap extension cannot reuse a free last block (the extension
	// is then max(request, ChunkSize)); when the last block is free, only
	// the shortfall is requested.
	ChunkSize uint64
	// ClassNum is the number of segregated free-list size classes.
	ClassNum int
	// Shift converts floor(log2(size)) into a class index.
	Shift int
	// MinClassSize is the smallest block size a class mapping is defined
	// for (header + footer, no payload). The engine does not read it; the
	// minimum block size is always arena.MinBlockSize.
	MinClassSize uint64
	// MaxHeapSize caps total arena growth; 0 means unbounded.
	MaxHeapSize uint64
}

// DefaultConfig returns the tunables named in the specification:
// ALIGNMENT=16, CHUNKSIZE=2048, CLASSNUM=16, SHIFT=5, MIN_CLASS_SIZE=48.
func DefaultConfig() Config {
	return Config{
		Alignment:    16,
		ChunkSize:    2048,
		ClassNum:     freelist.DefaultClassNum,
		Shift:        freelist.DefaultShift,
		MinClassSize: freelist.MinClassSize,
		MaxHeapSize:  0,
	}
}

// FromSettings overlays values present in a gosettings.Settings map onto
// DefaultConfig, recognizing the keys "alignment", "chunksize", "classnum",
// "shift", "minclasssize", and "maxheapsize". Keys not present keep their
// default value; unrecognized keys are ignored.
func FromSettings(setts gosettings.Settings) Config {
	cfg := DefaultConfig()
	if v, ok := setts["alignment"]; ok {
		cfg.Alignment = toUint64(v)
	}
	if v, ok := setts["chunksize"]; ok {
		cfg.ChunkSize = toUint64(v)
	}
	if v, ok := setts["classnum"]; ok {
		cfg.ClassNum = int(toUint64(v))
	}
	if v, ok := setts["shift"]; ok {
		cfg.Shift = int(toUint64(v))
	}
	if v, ok := setts["minclasssize"]; ok {
		cfg.MinClassSize = toUint64(v)
	}
	if v, ok := setts["maxheapsize"]; ok {
		cfg.MaxHeapSize = toUint64(v)
	}
	return cfg
}

func toUint64(v interface{}) uint64 {
	switch val := v.(type) {
	case uint64:
		return val
	case int64:
		return uint64(val)
	case int:
		return uint64(val)
	case float64:
		return uint64(val)
	default:
		return 0
	}
}
