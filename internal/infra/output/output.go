// Package output routes progress lines to whichever renderer the command
// installed. Inspection workers log concurrently, so every line is emitted
// under one lock.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tasuku43/yb/internal/infra/debuglog"
)

const (
	Indent       = "  "
	StepPrefix   = "•"
	LogConnector = "└─"
)

// StepLogger receives progress lines while a plan is applied.
type StepLogger interface {
	Step(text string)
	Log(text string)
	LogOutput(text string)
}

var (
	mu        sync.Mutex
	logger    StepLogger
	fallback  io.Writer = os.Stdout
	stepIndex atomic.Uint64
)

// SetStepLogger installs l. nil restores plain output.
func SetStepLogger(l StepLogger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func Step(text string) {
	debuglog.SetStep(stepIndex.Add(1), stepID(text))
	emit(func(l StepLogger) { l.Step(text) }, Indent+StepPrefix+" "+text)
}

func Log(text string) {
	emit(func(l StepLogger) { l.Log(text) }, Indent+Indent+LogConnector+" "+text)
}

func Logf(format string, args ...any) {
	Log(fmt.Sprintf(format, args...))
}

func LogOutput(text string) {
	emit(func(l StepLogger) { l.LogOutput(text) }, LogOutputPrefix()+text)
}

// LogLines emits each non-blank line of text as command output.
func LogLines(text string) {
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			LogOutput(line)
		}
	}
}

func LogOutputPrefix() string {
	return Indent + Indent + strings.Repeat(" ", utf8.RuneCountInString(LogConnector)+1)
}

func emit(toLogger func(StepLogger), plain string) {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		toLogger(logger)
		return
	}
	fmt.Fprintln(fallback, plain)
}

// stepID turns step text into a short slug for the debug log.
func stepID(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.Trim(b.String(), "-")
	switch {
	case id == "":
		return "step"
	case len(id) > 32:
		return id[:32]
	default:
		return id
	}
}
