// Package assert aborts on broken internal contracts.
//
// A failed assertion means a bug in the caller, never a runtime condition,
// so it panics with the location of the violated check.
package assert

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// That panics with msg when cond is false.
func That(cond bool, msg string) {
	if cond {
		return
	}
	fail(msg)
}

// Thatf is That with a formatted message.
func Thatf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	fail(fmt.Sprintf(format, args...))
}

func fail(msg string) {
	where := "unknown"
	if pc, file, line, ok := runtime.Caller(2); ok {
		name := "?"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		where = fmt.Sprintf("%s %s:%d", name, filepath.Base(file), line)
	}
	panic(fmt.Sprintf("assertion failed: %s [%s]", msg, where))
}
