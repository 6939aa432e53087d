package syncplan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tasuku43/yb/internal/domain/layerconf"
	"github.com/tasuku43/yb/internal/domain/repostate"
	"github.com/tasuku43/yb/internal/domain/spec"
)

const pokyURL = "https://git.yoctoproject.org/poky"

func pokySpec() spec.Spec {
	return spec.Spec{
		Version: spec.FormatVersion,
		Name:    "honister",
		Repos: []spec.Repo{{
			Name:    "poky",
			URL:     pokyURL,
			Refspec: "honister",
			Layers:  []spec.Layer{{Name: "meta"}, {Name: "meta-poky"}},
		}},
	}
}

func readLayers(t *testing.T, dir string, layers ...string) layerconf.Config {
	t.Helper()
	path := layerconf.PathFor(filepath.Join(dir, "build"))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "BBLAYERS ?= \" \\\n"
	for _, l := range layers {
		content += "  " + l + " \\\n"
	}
	content += "  \"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := layerconf.Read(path)
	if err != nil {
		t.Fatalf("layerconf.Read error: %v", err)
	}
	return cfg
}

// cleanOn returns a clean repository state on branch tracking origin/branch.
func cleanOn(path, branch string) repostate.State {
	return repostate.State{
		Path:             path,
		Present:          true,
		IsRepo:           true,
		Head:             "1111111111111111111111111111111111111111",
		Branch:           branch,
		Upstream:         &repostate.Tracking{Remote: "origin", Branch: branch, Ref: "origin/" + branch},
		AheadBehindKnown: true,
		Remotes:          []repostate.Remote{{Name: "origin", URL: pokyURL}},
		MatchedRemote:    "origin",
		Target:           &repostate.Target{Refspec: "honister", RemoteBranch: true},
	}
}

func kinds(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, string(a.Kind)+" "+filepath.Base(a.Path))
	}
	return out
}

func TestBuildClonesAbsentRepository(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	cfg := readLayers(t, dir)

	plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, Layers: cfg, LayerConfigPath: cfg.Path}, Options{})

	want := []Action{
		{Kind: ActionClone, Repo: "poky", Path: filepath.Join(sources, "poky"), URL: pokyURL, Ref: "honister"},
		{Kind: ActionAddLayer, Repo: "poky", Path: filepath.Join(sources, "poky", "meta")},
		{Kind: ActionAddLayer, Repo: "poky", Path: filepath.Join(sources, "poky", "meta-poky")},
	}
	if diff := cmp.Diff(want, plan.Actions()); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	if plan.HasConflicts() || plan.IsEmpty() {
		t.Fatalf("HasConflicts = %v, IsEmpty = %v", plan.HasConflicts(), plan.IsEmpty())
	}
}

func TestBuildCreatesLayerConfigFirst(t *testing.T) {
	dir := t.TempDir()
	path := layerconf.PathFor(filepath.Join(dir, "build"))
	cfg, err := layerconf.Read(path)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	plan := Build(Input{Spec: pokySpec(), SourcesDir: filepath.Join(dir, "sources"), Layers: cfg, LayerConfigPath: path}, Options{})
	if len(plan.Layers) != 3 || plan.Layers[0].Kind != ActionCreateLayerConfig || plan.Layers[0].Path != path {
		t.Fatalf("layer actions = %+v", plan.Layers)
	}
}

func TestBuildCreatesTrackingBranch(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))
	st := cleanOn(path, "master")

	plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}, Options{})

	want := []Action{
		{Kind: ActionCreateTrackingBranch, Repo: "poky", Path: path, Remote: "origin", Ref: "honister"},
		{Kind: ActionCheckout, Repo: "poky", Path: path, Ref: "honister"},
	}
	if diff := cmp.Diff(want, plan.Actions()); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDirtySwitchIsConflictWithoutForce(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))
	st := cleanOn(path, "master")
	st.Dirty = true
	st.Unstaged = 1
	in := Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}

	plan := Build(in, Options{})
	if len(plan.Actions()) != 0 {
		t.Fatalf("actions = %v, want none", plan.Actions())
	}
	if !plan.HasConflicts() || !plan.RequiresForce() {
		t.Fatalf("HasConflicts = %v, RequiresForce = %v", plan.HasConflicts(), plan.RequiresForce())
	}
	conflict := plan.Repos[0].Conflict
	if !strings.Contains(conflict.Error(), "uncommitted changes") {
		t.Fatalf("conflict = %v", conflict)
	}
	if conflict.Blocked[0].Kind != ActionResetHard {
		t.Fatalf("blocked = %v", conflict.Blocked)
	}

	forced := Build(in, Options{Force: true})
	got := make([]ActionKind, 0)
	for _, a := range forced.Actions() {
		got = append(got, a.Kind)
	}
	want := []ActionKind{ActionResetHard, ActionCreateTrackingBranch, ActionCheckout}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("forced kinds mismatch (-want +got):\n%s", diff)
	}
	if forced.HasConflicts() {
		t.Fatalf("forced plan still has conflicts")
	}
}

func TestBuildForcedSwitchCleansUntrackedFiles(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))
	st := cleanOn(path, "master")
	st.Dirty = true
	st.Untracked = 2
	in := Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}

	plan := Build(in, Options{})
	blocked := make([]ActionKind, 0)
	for _, a := range plan.Repos[0].Conflict.Blocked {
		blocked = append(blocked, a.Kind)
	}
	want := []ActionKind{ActionResetHard, ActionClean, ActionCreateTrackingBranch, ActionCheckout}
	if diff := cmp.Diff(want, blocked); diff != "" {
		t.Fatalf("blocked kinds mismatch (-want +got):\n%s", diff)
	}
	if !(Action{Kind: ActionClean}).Destructive() {
		t.Fatalf("clean must be destructive")
	}
}

func TestBuildDivergedLocalBranchNeedsForce(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))
	st := cleanOn(path, "master")
	st.Target = &repostate.Target{
		Refspec:               "honister",
		LocalBranch:           true,
		LocalUpstream:         &repostate.Tracking{Remote: "origin", Branch: "honister", Ref: "origin/honister"},
		LocalAhead:            1,
		LocalBehind:           2,
		LocalAheadBehindKnown: true,
		RemoteBranch:          true,
	}
	in := Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}

	if plan := Build(in, Options{}); !plan.RequiresForce() {
		t.Fatalf("diverged switch should require force")
	}
	forced := Build(in, Options{Force: true})
	want := []Action{
		{Kind: ActionCheckout, Repo: "poky", Path: path, Ref: "honister"},
		{Kind: ActionResetHard, Repo: "poky", Path: path, Ref: "origin/honister"},
	}
	if diff := cmp.Diff(want, forced.Actions()); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSwitchToLocalBranchFastForwards(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))
	st := cleanOn(path, "master")
	st.Target = &repostate.Target{
		Refspec:               "honister",
		LocalBranch:           true,
		LocalUpstream:         &repostate.Tracking{Remote: "origin", Branch: "honister", Ref: "origin/honister"},
		LocalBehind:           3,
		LocalAheadBehindKnown: true,
		RemoteBranch:          true,
	}
	plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}, Options{})
	want := []ActionKind{ActionCheckout, ActionFastForward}
	var got []ActionKind
	for _, a := range plan.Actions() {
		got = append(got, a.Kind)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildOnTargetBranch(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))

	cases := []struct {
		name    string
		mutate  func(st *repostate.State)
		actions []ActionKind
		notice  string
	}{
		{name: "clean", mutate: func(*repostate.State) {}},
		{name: "behind", mutate: func(st *repostate.State) { st.Behind = 2 }, actions: []ActionKind{ActionFastForward}},
		{name: "dirty and behind", mutate: func(st *repostate.State) { st.Behind = 1; st.Dirty = true }, actions: []ActionKind{ActionFastForward}},
		{name: "ahead", mutate: func(st *repostate.State) { st.Ahead = 1 }, notice: "unpushed"},
		{name: "diverged", mutate: func(st *repostate.State) { st.Ahead, st.Behind = 1, 1 }, notice: "diverged"},
		{name: "no upstream", mutate: func(st *repostate.State) { st.Upstream = nil }, notice: "no upstream"},
		{name: "fetch failed", mutate: func(st *repostate.State) { st.AheadBehindKnown = false; st.FetchFailed = true }, notice: "unknown"},
		{name: "tracked by other name", mutate: func(st *repostate.State) {
			st.Branch = "my-honister"
			st.Target.TrackedBy = "my-honister"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := cleanOn(path, "honister")
			tc.mutate(&st)
			plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}, Options{})
			var got []ActionKind
			for _, a := range plan.Actions() {
				got = append(got, a.Kind)
			}
			if diff := cmp.Diff(tc.actions, got); diff != "" {
				t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
			}
			if plan.HasConflicts() {
				t.Fatalf("unexpected conflict: %v", plan.Repos[0].Conflict)
			}
			notices := strings.Join(plan.Repos[0].Notices, "\n")
			if tc.notice == "" && notices != "" {
				t.Fatalf("unexpected notices: %s", notices)
			}
			if !strings.Contains(notices, tc.notice) {
				t.Fatalf("notices = %q, want %q", notices, tc.notice)
			}
		})
	}
}

func TestBuildTagRefspec(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))
	tagCommit := "2222222222222222222222222222222222222222"
	st := cleanOn(path, "master")
	st.Target = &repostate.Target{Refspec: "honister", Tag: true, TagCommit: tagCommit}

	plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}, Options{})
	want := []Action{{Kind: ActionCheckout, Repo: "poky", Path: path, Ref: "honister", Detached: true}}
	if diff := cmp.Diff(want, plan.Actions()); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}

	st.Branch = ""
	st.Detached = true
	st.Upstream = nil
	st.Head = tagCommit
	plan = Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}, Options{})
	if !plan.IsEmpty() {
		t.Fatalf("plan at tag = %v", plan.Actions())
	}
}

func TestBuildConflicts(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), filepath.Join(path, "meta-poky"))

	cases := []struct {
		name   string
		state  repostate.State
		reason string
	}{
		{name: "not a repository", state: repostate.State{Path: path, Present: true}, reason: "not a git repository"},
		{name: "foreign remote", state: func() repostate.State {
			st := cleanOn(path, "master")
			st.MatchedRemote = ""
			return st
		}(), reason: "no remote points at"},
		{name: "unknown refspec", state: func() repostate.State {
			st := cleanOn(path, "master")
			st.Target = &repostate.Target{Refspec: "honister"}
			return st
		}(), reason: "neither a branch"},
		{name: "unknown refspec after failed fetch", state: func() repostate.State {
			st := cleanOn(path, "master")
			st.FetchFailed = true
			st.Target = &repostate.Target{Refspec: "honister"}
			return st
		}(), reason: "could not be fetched"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": tc.state}, Layers: cfg}, Options{Force: true})
			conflict := plan.Repos[0].Conflict
			if conflict == nil {
				t.Fatalf("expected conflict, got actions %v", plan.Actions())
			}
			if conflict.ForceResolvable() {
				t.Fatalf("%s should not be resolvable by force", tc.name)
			}
			if !strings.Contains(conflict.Error(), tc.reason) {
				t.Fatalf("conflict = %q, want %q", conflict.Error(), tc.reason)
			}
		})
	}
}

func TestBuildRemovesUnreferencedLayer(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	path := filepath.Join(sources, "poky")
	stale := filepath.Join(sources, "meta-old")
	cfg := readLayers(t, dir, filepath.Join(path, "meta"), stale, filepath.Join(path, "meta-poky"))
	st := cleanOn(path, "honister")

	plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}, Options{})
	want := []Action{{Kind: ActionRemoveLayer, Path: stale}}
	if diff := cmp.Diff(want, plan.Actions()); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildOrdersReposBeforeLayers(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	s := pokySpec()
	s.Repos = append(s.Repos, spec.Repo{
		Name:    "meta-openembedded",
		URL:     "https://git.openembedded.org/meta-openembedded",
		Refspec: "honister",
		Layers:  []spec.Layer{{Name: "meta-oe"}},
	})
	s.Repos[0], s.Repos[1] = s.Repos[1], s.Repos[0]
	cfg := readLayers(t, dir)

	plan := Build(Input{Spec: s, SourcesDir: sources, Layers: cfg}, Options{})
	got := kinds(plan.Actions())
	want := []string{
		"clone meta-openembedded",
		"clone poky",
		"add-layer meta-oe",
		"add-layer meta",
		"add-layer meta-poky",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	for _, a := range plan.Actions() {
		if a.Kind == ActionCheckout || a.Kind == ActionCreateTrackingBranch {
			t.Fatalf("clone must not be followed by branch actions: %v", a)
		}
	}
}

func TestBuildUsesRelocatedPathForLayers(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	relocated := filepath.Join(sources, "poky-upstream")
	cfg := readLayers(t, dir, filepath.Join(relocated, "meta"), filepath.Join(relocated, "meta-poky"))
	st := cleanOn(relocated, "honister")

	plan := Build(Input{Spec: pokySpec(), SourcesDir: sources, States: map[string]repostate.State{"poky": st}, Layers: cfg}, Options{})
	if !plan.IsEmpty() {
		t.Fatalf("plan = %v", plan.Actions())
	}
	if plan.Desired[0].Path != filepath.Join(relocated, "meta") {
		t.Fatalf("desired = %+v", plan.Desired)
	}
}

func TestActionString(t *testing.T) {
	cases := []struct {
		action Action
		want   string
	}{
		{Action{Kind: ActionClone, Repo: "poky", URL: pokyURL, Ref: "honister"}, "clone poky (" + pokyURL + " @ honister)"},
		{Action{Kind: ActionCreateTrackingBranch, Repo: "poky", Remote: "origin", Ref: "honister"}, "create branch honister tracking origin/honister in poky"},
		{Action{Kind: ActionCheckout, Repo: "poky", Ref: "yocto-3.4", Detached: true}, "checkout yocto-3.4 (detached) in poky"},
		{Action{Kind: ActionResetHard, Repo: "poky", Ref: "HEAD"}, "reset --hard HEAD in poky"},
		{Action{Kind: ActionClean, Repo: "poky"}, "remove untracked files in poky"},
		{Action{Kind: ActionRemoveLayer, Path: "/x/meta-old"}, "remove layer /x/meta-old"},
	}
	for _, tc := range cases {
		if got := tc.action.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
	}
}
