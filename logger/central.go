// Package logger implements a small ring-buffer log shared by every
// goroutine in the texture cache: the upload goroutine, the stream
// goroutine pool, and the submission goroutine driving them. Entries are
// tagged so a caller can filter by subsystem ("upload", "stream", "db", ...)
// without pulling in a structured logging dependency the rest of the
// pipeline has no other use for.
package logger

import (
	"fmt"
	"io"
)

// Permission implementations indicate whether the environment making a log
// request is allowed to create new log entries.
type Permission interface {
	AllowLogging() bool
}

type allow struct{}

func (allow) AllowLogging() bool { return true }

// Allow is a Permission that always allows logging.
var Allow Permission = allow{}

// only one central log for the entire process; there is no need for more.
var central *logger

// maxCentral bounds the central logger so a long-running cache process does
// not grow its log without limit.
const maxCentral = 1024

func init() {
	central = newLogger(maxCentral)
}

// Log adds an entry to the central logger.
func Log(perm Permission, tag, detail string) {
	if perm == Allow || perm.AllowLogging() {
		central.log(tag, detail)
	}
}

// Logf adds a formatted entry to the central logger.
func Logf(perm Permission, tag, format string, args ...interface{}) {
	if perm == Allow || perm.AllowLogging() {
		central.log(tag, fmt.Sprintf(format, args...))
	}
}

// Clear removes every entry from the central logger.
func Clear() {
	central.clear()
}

// Write dumps the full contents of the central logger to w.
func Write(w io.Writer) bool {
	return central.write(w)
}

// Tail writes the last n entries to w.
func Tail(w io.Writer, n int) {
	central.tail(w, n)
}

// SetEcho causes every future log entry to also be written to w immediately.
// If writeRecent is true the entries already in the buffer are written too.
func SetEcho(w io.Writer, writeRecent bool) {
	central.setEcho(w, writeRecent)
}

// BorrowLog gives f read access to the current entries under the logger's
// lock. f must not retain the slice after it returns.
func BorrowLog(f func([]Entry)) {
	central.borrow(f)
}
