// Package runcmd executes a command in every repository under the sources
// directory, one after another.
package runcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"

	"github.com/tasuku43/yb/internal/domain/repostate"
	"github.com/tasuku43/yb/internal/domain/workspace"
	"github.com/tasuku43/yb/internal/infra/debuglog"
	"github.com/tasuku43/yb/internal/infra/gitcmd"
)

// ErrNoCommand is returned when argv is empty.
var ErrNoCommand = errors.New("no command given")

// Target is a repository the command runs in.
type Target struct {
	Name string
	Path string
}

type Result struct {
	Target
	// ExitCode is -1 when the process was killed by a signal.
	ExitCode int
	// Err is set when the command could not be started.
	Err error
}

func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// Before is called ahead of each repository, After once it finished.
	Before func(Target)
	After  func(Result)
}

// Targets lists the git repositories directly under the sources directory.
// Directories that are not the top of their own work tree are skipped.
func Targets(ctx context.Context, ws *workspace.Workspace) ([]Target, error) {
	names, err := repostate.ScanSources(ws.SourcesDir())
	if err != nil {
		return nil, err
	}
	var targets []Target
	for _, name := range names {
		path := filepath.Join(ws.SourcesDir(), name)
		top, ok, err := gitcmd.ShowToplevel(ctx, path)
		if err != nil || !ok || !sameDir(top, path) {
			continue
		}
		targets = append(targets, Target{Name: name, Path: path})
	}
	return targets, nil
}

func sameDir(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}

// Run executes argv in every target. A failing repository does not stop the
// others.
func Run(ctx context.Context, ws *workspace.Workspace, argv []string, opts Options) ([]Result, error) {
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	targets, err := Targets(ctx, ws)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		if opts.Before != nil {
			opts.Before(t)
		}
		res := execIn(ctx, t, argv, opts)
		if opts.After != nil {
			opts.After(res)
		}
		results = append(results, res)
	}
	return results, nil
}

func execIn(ctx context.Context, t Target, argv []string, opts Options) Result {
	res := Result{Target: t}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.Path
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	trace := ""
	if debuglog.Enabled() {
		trace = debuglog.NewTrace("run")
		debuglog.LogCommand(trace, debuglog.FormatCommand(argv[0], argv[1:]))
		debuglog.Logf("trace=%s dir=%s", trace, t.Path)
	}
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = fmt.Errorf("start %s: %w", argv[0], err)
	}
	if trace != "" {
		debuglog.LogExit(trace, res.ExitCode)
	}
	return res
}

// Failures returns the results that did not exit cleanly.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}
