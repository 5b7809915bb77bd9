// Package assert collects small helpers used by the cache's debug and test
// code. None of it is required for correct operation of the cache itself.
package assert

import (
	"bytes"
	"runtime"
	"strconv"
)

// GoroutineID returns an identifier for the calling goroutine. The result is
// (a) different between goroutines and (b) consistent for a given goroutine
// for the lifetime of that goroutine. It must only be used for debugging,
// logging, or lock-order test assertions, never for production control flow.
func GoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}
