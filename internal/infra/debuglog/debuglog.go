package debuglog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type loggerState struct {
	mu      sync.Mutex
	enabled atomic.Bool
	file    *os.File
	logger  *log.Logger
	path    string
}

var state loggerState
var traceSeq uint64
var ctxState debugContext

type debugContext struct {
	mu     sync.Mutex
	phase  string
	prompt string
	step   string
	stepID string
}

// Enable starts writing trace records to <stateDir>/logs/debug-YYYYMMDD.log.
func Enable(stateDir string) error {
	if strings.TrimSpace(stateDir) == "" {
		return fmt.Errorf("state directory is required")
	}
	logDir := filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("create debug log dir: %w", err)
	}
	name := fmt.Sprintf("debug-%s.log", time.Now().Format("20060102"))
	path := filepath.Join(logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open debug log file: %w", err)
	}
	logger := log.NewWithOptions(file, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Formatter:       log.LogfmtFormatter,
	}).With("pid", os.Getpid())

	state.mu.Lock()
	if state.file != nil {
		_ = state.file.Close()
	}
	state.file = file
	state.logger = logger
	state.path = path
	state.enabled.Store(true)
	state.mu.Unlock()
	return nil
}

func Close() error {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.enabled.Store(false)
	state.logger = nil
	state.path = ""
	if state.file == nil {
		return nil
	}
	err := state.file.Close()
	state.file = nil
	return err
}

func Enabled() bool {
	return state.enabled.Load()
}

// Path returns the current log file, or "" when logging is off.
func Path() string {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.path
}

func NewTrace(prefix string) string {
	value := atomic.AddUint64(&traceSeq, 1)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cmd"
	}
	return fmt.Sprintf("%s:%x", prefix, value)
}

func FormatCommand(name string, args []string) string {
	if len(args) == 0 {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func LogCommand(trace, cmd string) {
	logRecord(trace, "cmd", "cmd", cmd)
}

func LogStdoutLines(trace, text string) {
	logOutputLines(trace, "stdout", text)
}

func LogStderrLines(trace, text string) {
	logOutputLines(trace, "stderr", text)
}

func LogExit(trace string, code int) {
	logRecord(trace, "exit", "code", code)
}

// Logf records a free-form message outside of any command trace.
func Logf(format string, args ...any) {
	logRecord("", "info", "msg", fmt.Sprintf(format, args...))
}

func SetPrompt(label string) {
	ctxState.mu.Lock()
	ctxState.phase = "prompt"
	ctxState.prompt = strings.TrimSpace(label)
	ctxState.step = ""
	ctxState.stepID = ""
	ctxState.mu.Unlock()
}

func ClearPrompt() {
	ctxState.mu.Lock()
	if ctxState.phase == "prompt" {
		ctxState.phase = ""
	}
	ctxState.prompt = ""
	ctxState.mu.Unlock()
}

func SetStep(index uint64, stepID string) {
	ctxState.mu.Lock()
	ctxState.phase = "steps"
	ctxState.prompt = ""
	ctxState.step = fmt.Sprintf("%d", index)
	ctxState.stepID = strings.TrimSpace(stepID)
	ctxState.mu.Unlock()
}

func SetPhase(phase string) {
	ctxState.mu.Lock()
	ctxState.phase = strings.TrimSpace(phase)
	ctxState.prompt = ""
	ctxState.step = ""
	ctxState.stepID = ""
	ctxState.mu.Unlock()
}

func logOutputLines(trace, kind, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		logRecord(trace, kind, "line", line)
	}
}

func logRecord(trace, kind string, key string, value any) {
	if !Enabled() {
		return
	}
	trace = strings.TrimSpace(trace)
	if trace == "" {
		trace = "none"
	}
	phase, prompt, step, stepID := snapshotContext()
	if phase == "" {
		phase = "none"
	}
	keyvals := []any{"trace", trace, "phase", phase}
	if prompt != "" {
		keyvals = append(keyvals, "prompt", prompt)
	}
	if step != "" {
		keyvals = append(keyvals, "step", step)
	}
	if stepID != "" {
		keyvals = append(keyvals, "step_id", stepID)
	}
	keyvals = append(keyvals, key, value)

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.logger == nil {
		return
	}
	state.logger.Debug(kind, keyvals...)
}

func snapshotContext() (string, string, string, string) {
	ctxState.mu.Lock()
	defer ctxState.mu.Unlock()
	return ctxState.phase, ctxState.prompt, ctxState.step, ctxState.stepID
}
