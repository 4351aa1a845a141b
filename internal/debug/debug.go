//go:build debug

// Package debug includes debugging helpers.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/timandy/routine"
)

// Enabled is true if the package is being built with the debug tag, which
// enables trace logging and internal assertions.
const Enabled = true

// Log prints debugging information to stderr.
//
// The line is prefixed with the calling file, line and goroutine id so that
// interleaved traces from concurrent writers can be told apart.
func Log(operation string, format string, args ...any) {
	_, file, line, _ := runtime.Caller(1)
	file = filepath.Base(file)

	fmt.Fprintf(os.Stderr, "%s:%d [g%04d] %s: %s\n",
		file, line, routine.Goid(), operation, fmt.Sprintf(format, args...))
}

// Assert panics if cond is false, but only in debug mode.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("rcuja: internal assertion failed: "+format, args...))
	}
}
