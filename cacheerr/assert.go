package cacheerr

import "github.com/kirahall/n64texcache/logger"

// Assertions controls what happens when a Policy violation is detected.
// With Assertions true (the default, meant for development and tests) a
// violation panics immediately, mirroring the host's "assert in debug"
// contract. With Assertions false it is logged and swallowed, mirroring
// "undefined in release" without actually inflicting undefined behaviour —
// Go has no way to opt out of memory safety, so the closest honest
// equivalent is "log it and let the caller limp on".
var Assertions = true

// Assert panics (or logs, see Assertions) if cond is false. op and detail
// describe the violated precondition, e.g. Assert(w > 0 && h > 0, "queueUpload", "zero-dimension decode request").
func Assert(cond bool, op, detail string) {
	if cond {
		return
	}
	err := Newf(Policy, op, "%s", detail)
	if Assertions {
		panic(err)
	}
	logger.Log(logger.Allow, "assert", err.Error())
}
