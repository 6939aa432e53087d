package gitcmd

import (
	"sync/atomic"

	"github.com/tasuku43/yb/internal/infra/output"
)

// verbose is read by inspection workers while they run.
var verbose atomic.Bool

// SetVerbose makes every command echo its stdout and stderr.
func SetVerbose(v bool) {
	verbose.Store(v)
}

func IsVerbose() bool {
	return verbose.Load()
}

// Logf announces a mutating command before it runs.
func Logf(format string, args ...any) {
	output.Logf("$ "+format, args...)
}

func echo(res Result) {
	output.LogLines(res.Stdout)
	output.LogLines(res.Stderr)
}
