package repostate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tasuku43/yb/internal/testutil/gittest"
)

func TestInspectMissingAndPlainDirectory(t *testing.T) {
	gittest.Setup(t)
	ctx := context.Background()
	dir := t.TempDir()

	st := Inspect(ctx, filepath.Join(dir, "poky"), nil, Options{})
	if st.Present {
		t.Fatalf("missing directory reported present")
	}

	plain := filepath.Join(dir, "plain")
	if err := os.MkdirAll(plain, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	st = Inspect(ctx, plain, nil, Options{})
	if !st.Present || st.IsRepo {
		t.Fatalf("plain dir = present %v repo %v", st.Present, st.IsRepo)
	}
}

func TestInspectNestedDirectoryIsNotARepo(t *testing.T) {
	tmp := gittest.Setup(t)
	remote := gittest.NewRemote(t, tmp, "poky")
	clone := filepath.Join(tmp, "ws", "poky")
	remote.Clone(clone, "master")
	nested := filepath.Join(clone, "meta")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	st := Inspect(context.Background(), nested, nil, Options{})
	if st.IsRepo {
		t.Fatalf("subdirectory of a repository reported as a repository")
	}
}

func TestInspectTrackingState(t *testing.T) {
	ctx := context.Background()
	tmp := gittest.Setup(t)
	remote := gittest.NewRemote(t, tmp, "poky")
	remote.Commit("honister", gittest.Layer("meta"))
	clone := filepath.Join(tmp, "ws", "sources", "poky")
	remote.Clone(clone, "master")

	// Upstream advances after the clone; inspection must fetch to see it.
	remote.Commit("master", map[string]string{"NEWS": "1\n"})
	remote.Commit("master", map[string]string{"NEWS": "2\n"})
	gittest.WriteFile(t, filepath.Join(clone, "scratch.txt"), "wip\n")

	expect := &Expectation{URLs: []string{remote.URL}, Refspec: "honister"}
	st := Inspect(ctx, clone, expect, Options{})
	if len(st.Warnings) != 0 {
		t.Fatalf("warnings = %v", st.Warnings)
	}
	if !st.IsRepo || st.Branch != "master" || st.MatchedRemote != "origin" {
		t.Fatalf("state = %+v", st)
	}
	if st.Upstream == nil || st.Upstream.Remote != "origin" || st.Upstream.Branch != "master" {
		t.Fatalf("upstream = %+v", st.Upstream)
	}
	if !st.AheadBehindKnown || st.Ahead != 0 || st.Behind != 2 {
		t.Fatalf("ahead/behind = %v %d/%d, want known 0/2", st.AheadBehindKnown, st.Ahead, st.Behind)
	}
	if !st.Dirty || st.Untracked != 1 {
		t.Fatalf("dirty = %v untracked = %d", st.Dirty, st.Untracked)
	}
	if st.Target == nil || st.Target.LocalBranch || !st.Target.RemoteBranch || st.Target.Tag {
		t.Fatalf("target = %+v", st.Target)
	}
}

func TestInspectFetchFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	tmp := gittest.Setup(t)
	remote := gittest.NewRemote(t, tmp, "poky")
	clone := filepath.Join(tmp, "ws", "poky")
	remote.Clone(clone, "master")
	if err := os.RemoveAll(remote.Path); err != nil {
		t.Fatalf("remove remote: %v", err)
	}

	st := Inspect(ctx, clone, &Expectation{URLs: []string{remote.URL}, Refspec: "master"}, Options{})
	if !st.FetchFailed || len(st.Warnings) == 0 {
		t.Fatalf("expected fetch warning, got %+v", st)
	}
	if st.AheadBehindKnown {
		t.Fatalf("ahead/behind known after failed fetch")
	}
	if Classify(st) != KindUnknown {
		t.Fatalf("Classify = %s, want unknown", Classify(st))
	}
}

func TestInspectAllKeepsOrder(t *testing.T) {
	tmp := gittest.Setup(t)
	var reqs []Request
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		remote := gittest.NewRemote(t, tmp, name)
		dest := filepath.Join(tmp, "ws", name)
		remote.Clone(dest, "master")
		reqs = append(reqs, Request{Path: dest, Expect: &Expectation{URLs: []string{remote.URL}, Refspec: "master"}})
	}
	reqs = append(reqs, Request{Path: filepath.Join(tmp, "ws", "missing")})

	states := InspectAll(context.Background(), reqs, Options{Jobs: 2})
	if len(states) != len(reqs) {
		t.Fatalf("states = %d, want %d", len(states), len(reqs))
	}
	for i, st := range states {
		if st.Path != reqs[i].Path {
			t.Fatalf("states[%d].Path = %s, want %s", i, st.Path, reqs[i].Path)
		}
	}
	if states[5].Present {
		t.Fatalf("missing repo reported present")
	}
	if Classify(states[0]) != KindClean {
		t.Fatalf("Classify = %s, want clean (%+v)", Classify(states[0]), states[0])
	}
}

func TestScanSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"poky", ".cache", "meta-oe"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	gittest.WriteFile(t, filepath.Join(dir, "notes.txt"), "x")
	names, err := ScanSources(dir)
	if err != nil {
		t.Fatalf("ScanSources error: %v", err)
	}
	if len(names) != 2 || names[0] != "meta-oe" || names[1] != "poky" {
		t.Fatalf("ScanSources = %v", names)
	}
	if names, err := ScanSources(filepath.Join(dir, "absent")); err != nil || names != nil {
		t.Fatalf("ScanSources(absent) = %v, %v", names, err)
	}
}
