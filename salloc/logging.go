package salloc

import "go.uber.org/zap"

// nopLogger is substituted whenever a caller constructs an Engine without
// supplying a logger, so Engine methods never need a nil check before
// logging.
var nopLogger = zap.NewNop().Sugar()
