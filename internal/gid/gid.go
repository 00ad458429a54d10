// Package gid reports the identifier of the calling goroutine.
//
// The Go runtime exposes no public API for this; Current parses the
// header line of runtime.Stack's output, the same trick used by
// goroutine-leak detectors and race-safety checkers. No library in the
// example corpus provides this, so it stays on the standard library.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current returns the id of the calling goroutine.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
