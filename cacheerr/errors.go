// Package cacheerr classifies the errors the texture cache can return into
// the small number of categories described for the pipeline: a malformed
// document or asset (Parse), a filesystem failure (IO), and a programming
// error that should never happen in a correct caller (Policy). A fourth case
// — an asset the database promises but that is missing on disk — is
// deliberately not an error at all; functions that hit it return a plain
// bool, and no Class exists for it.
//
// Class values double as sentinels: errors.Is(err, cacheerr.Parse) reports
// whether err (or anything it wraps) was classified Parse, the same way the
// host codebase's own curated.Is() reports whether an error matches a given
// pattern, but built on the standard library's wrapping instead of a
// hand-rolled pattern string.
package cacheerr

import "fmt"

// Class identifies the broad category of a cache error.
type Class struct {
	name string
}

func (c Class) Error() string { return c.name }

var (
	// Parse marks a malformed on-disk document: the JSON database, a DDS
	// header, or a low-mip cache record with an unrecognised magic/version.
	Parse = Class{"parse error"}

	// IO marks a filesystem failure: a missing file, a failed read, or a
	// failed rename during the database save sequence.
	IO = Class{"i/o error"}

	// Policy marks a programming error by the caller: a zero-dimension
	// decode request, or adding a hash that is already present.
	Policy = Class{"policy violation"}
)

// Error is the concrete error type returned by the cache for Parse, IO, and
// Policy failures.
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Class)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Class, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Class this error was raised with,
// allowing errors.Is(err, cacheerr.Parse) to work without a type assertion.
func (e *Error) Is(target error) bool {
	c, ok := target.(Class)
	return ok && e.Class == c
}

// Wrap returns a classified error describing a failure during op. It
// returns nil if err is nil, so call sites can write
// "return cacheerr.Wrap(cacheerr.IO, "load asset", err)" unconditionally.
func Wrap(class Class, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: class, Op: op, Err: err}
}

// Newf builds a classified error from a format string, with no wrapped
// cause of its own.
func Newf(class Class, op, format string, args ...interface{}) error {
	return &Error{Class: class, Op: op, Err: fmt.Errorf(format, args...)}
}
