package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tasuku43/yb/internal/infra/debuglog"
)

// ErrNotAllowed is returned for git subcommands outside the allowlist.
var ErrNotAllowed = errors.New("git subcommand not allowed")

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type Options struct {
	Dir string
	// ShowOutput prints stdout/stderr even when verbose mode is off.
	ShowOutput bool
}

// Run executes git with args. Credential prompts are disabled so a remote
// that wants a password fails instead of hanging.
func Run(ctx context.Context, args []string, opts Options) (Result, error) {
	if len(args) == 0 {
		return Result{ExitCode: -1}, fmt.Errorf("git command is required")
	}
	if _, ok := allowedSubcommands[args[0]]; !ok {
		return Result{Stderr: ErrNotAllowed.Error(), ExitCode: -1}, fmt.Errorf("%w: %q", ErrNotAllowed, args[0])
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	trace := traceStart(args, opts.Dir)
	started := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
	}
	traceEnd(trace, result, time.Since(started))
	if opts.ShowOutput || IsVerbose() {
		echo(result)
	}

	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("git %s: %w", args[0], ctxErr)
	}
	return result, fmt.Errorf("git %s exited %d: %w", args[0], result.ExitCode, err)
}

func traceStart(args []string, dir string) string {
	if !debuglog.Enabled() {
		return ""
	}
	trace := debuglog.NewTrace("git")
	debuglog.LogCommand(trace, debuglog.FormatCommand("git", args))
	if dir != "" {
		debuglog.Logf("trace=%s dir=%s", trace, dir)
	}
	return trace
}

func traceEnd(trace string, res Result, took time.Duration) {
	if trace == "" {
		return
	}
	debuglog.LogStdoutLines(trace, res.Stdout)
	debuglog.LogStderrLines(trace, res.Stderr)
	debuglog.LogExit(trace, res.ExitCode)
	debuglog.Logf("trace=%s took=%s", trace, took.Round(time.Millisecond))
}

// Read-only queries plus the mutations the executor can plan.
var allowedSubcommands = map[string]struct{}{
	"branch":       {},
	"checkout":     {},
	"clean":        {},
	"clone":        {},
	"config":       {},
	"diff":         {},
	"fetch":        {},
	"for-each-ref": {},
	"merge":        {},
	"reset":        {},
	"rev-list":     {},
	"rev-parse":    {},
	"show-ref":     {},
	"status":       {},
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// wrapStderr attaches trimmed stderr to a failed command error.
func wrapStderr(name string, res Result, err error) error {
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return fmt.Errorf("git %s failed: %w: %s", name, err, msg)
	}
	return fmt.Errorf("git %s failed: %w", name, err)
}
