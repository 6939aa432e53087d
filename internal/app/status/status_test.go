package status

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tasuku43/yb/internal/app/activate"
	"github.com/tasuku43/yb/internal/app/streamops"
	"github.com/tasuku43/yb/internal/domain/repostate"
	"github.com/tasuku43/yb/internal/domain/workspace"
	"github.com/tasuku43/yb/internal/testutil/gittest"
)

const specDoc = `header:
  version: 1
  name: honister
repos:
  poky:
    url: https://example.com/yocto/poky.git
    refspec: honister
    layers:
      meta:
`

func TestRunBareWorkspace(t *testing.T) {
	tmp := gittest.Setup(t)
	remote := gittest.NewRemote(t, tmp, "poky")
	root := filepath.Join(tmp, "bare")
	remote.Clone(filepath.Join(root, "sources", "poky"), "master")

	ws, err := workspace.Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	report, err := Run(context.Background(), ws, Options{NoFetch: true})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Active != nil || len(report.Repos) != 0 {
		t.Fatalf("bare report has desired state: %+v", report)
	}
	if len(report.Unreferenced) != 1 {
		t.Fatalf("Unreferenced = %+v", report.Unreferenced)
	}
	got := report.Unreferenced[0]
	if got.Name != "poky" || got.Kind != repostate.KindClean || got.State.Branch != "master" {
		t.Fatalf("unreferenced = %+v", got)
	}
}

func TestRunManagedWorkspace(t *testing.T) {
	ctx := context.Background()
	tmp := gittest.Setup(t)
	poky := gittest.NewRemote(t, tmp, "poky")
	poky.Commit("honister", gittest.Layer("meta"))
	specs := gittest.NewRemote(t, tmp, "specs")
	specs.Commit("master", map[string]string{"honister.yaml": specDoc})

	ws, err := workspace.Create(filepath.Join(tmp, "yocto"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := streamops.Add(ctx, ws, "", specs.URL); err != nil {
		t.Fatalf("streamops.Add error: %v", err)
	}
	if _, err := activate.Run(ctx, ws, "honister"); err != nil {
		t.Fatalf("activate error: %v", err)
	}
	poky.Clone(filepath.Join(ws.SourcesDir(), "poky"), "master")
	gittest.WriteFile(t, filepath.Join(ws.SourcesDir(), "scratch", "notes.txt"), "x\n")

	report, err := Run(ctx, ws, Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Active == nil || report.Active.Name != "honister" {
		t.Fatalf("Active = %+v", report.Active)
	}
	if len(report.Repos) != 1 || report.Repos[0].OnTarget || report.Repos[0].State.Target == nil || !report.Repos[0].State.Target.RemoteBranch {
		t.Fatalf("Repos = %+v", report.Repos)
	}
	if len(report.MissingLayers) != 1 || report.MissingLayers[0] != filepath.Join(ws.SourcesDir(), "poky", "meta") {
		t.Fatalf("MissingLayers = %v", report.MissingLayers)
	}
	if len(report.Unreferenced) != 1 || report.Unreferenced[0].Kind != repostate.KindNotRepo {
		t.Fatalf("Unreferenced = %+v", report.Unreferenced)
	}
}
