package main

import (
	"bytes"

	"github.com/shenjiangwei/segalloc/salloc"
)

func writePattern(e *salloc.Engine, off salloc.Offset, pattern []byte) {
	e.WriteBytes(off, pattern)
}

func readMatches(e *salloc.Engine, off salloc.Offset, pattern []byte) bool {
	got := e.ReadBytes(off, uint64(len(pattern)))
	return bytes.Equal(got, pattern)
}
