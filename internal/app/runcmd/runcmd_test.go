package runcmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tasuku43/yb/internal/domain/workspace"
	"github.com/tasuku43/yb/internal/testutil/gittest"
)

func bareWorkspace(t *testing.T, tmp string) *workspace.Workspace {
	t.Helper()
	t.Setenv("YB_ROOT", "")
	root := filepath.Join(tmp, "bare")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	ws, err := workspace.Open(root)
	if err != nil {
		t.Fatalf("workspace.Open error: %v", err)
	}
	return ws
}

func TestTargetsListsTopLevelRepositories(t *testing.T) {
	tmp := gittest.Setup(t)
	ws := bareWorkspace(t, tmp)
	poky := gittest.NewRemote(t, tmp, "poky")
	oe := gittest.NewRemote(t, tmp, "meta-openembedded")
	poky.Clone(filepath.Join(ws.SourcesDir(), "poky"), "master")
	oe.Clone(filepath.Join(ws.SourcesDir(), "meta-openembedded"), "master")
	if err := os.MkdirAll(filepath.Join(ws.SourcesDir(), "downloads"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	targets, err := Targets(context.Background(), ws)
	if err != nil {
		t.Fatalf("Targets error: %v", err)
	}
	var names []string
	for _, target := range targets {
		names = append(names, target.Name)
	}
	if diff := cmp.Diff([]string{"meta-openembedded", "poky"}, names); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestRunReportsExitCodesPerRepository(t *testing.T) {
	tmp := gittest.Setup(t)
	ws := bareWorkspace(t, tmp)
	poky := gittest.NewRemote(t, tmp, "poky")
	poky.Commit("honister", gittest.Layer("meta"))
	oe := gittest.NewRemote(t, tmp, "meta-openembedded")
	poky.Clone(filepath.Join(ws.SourcesDir(), "poky"), "honister")
	oe.Clone(filepath.Join(ws.SourcesDir(), "meta-openembedded"), "master")

	var out bytes.Buffer
	var before []string
	results, err := Run(context.Background(), ws, []string{"git", "rev-parse", "--verify", "--quiet", "refs/heads/honister"}, Options{
		Stdout: &out,
		Stderr: &out,
		Before: func(t Target) { before = append(before, t.Name) },
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if diff := cmp.Diff([]string{"meta-openembedded", "poky"}, before); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if len(results) != 2 || results[0].ExitCode == 0 || results[1].ExitCode != 0 {
		t.Fatalf("results = %+v", results)
	}
	failed := Failures(results)
	if len(failed) != 1 || failed[0].Name != "meta-openembedded" {
		t.Fatalf("Failures = %+v", failed)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Fatalf("command output not forwarded")
	}
}

func TestRunRequiresCommand(t *testing.T) {
	ws := bareWorkspace(t, t.TempDir())
	if _, err := Run(context.Background(), ws, nil, Options{}); !errors.Is(err, ErrNoCommand) {
		t.Fatalf("Run error = %v, want ErrNoCommand", err)
	}
}

func TestRunReportsStartFailure(t *testing.T) {
	tmp := gittest.Setup(t)
	ws := bareWorkspace(t, tmp)
	poky := gittest.NewRemote(t, tmp, "poky")
	poky.Clone(filepath.Join(ws.SourcesDir(), "poky"), "master")

	results, err := Run(context.Background(), ws, []string{"yb-no-such-command"}, Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(results) != 1 || results[0].Err == nil || results[0].ExitCode != -1 {
		t.Fatalf("results = %+v", results)
	}
}
