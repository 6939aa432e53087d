package streamops

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tasuku43/yb/internal/app/activate"
	"github.com/tasuku43/yb/internal/domain/stream"
	"github.com/tasuku43/yb/internal/domain/workspace"
	"github.com/tasuku43/yb/internal/testutil/gittest"
)

func specDoc(refspec string) string {
	return `header:
  version: 1
  name: honister
repos:
  poky:
    url: https://example.com/yocto/poky.git
    refspec: ` + refspec + `
`
}

func setup(t *testing.T) (*workspace.Workspace, *gittest.Remote) {
	t.Helper()
	tmp := gittest.Setup(t)
	specs := gittest.NewRemote(t, tmp, "specs")
	specs.Commit("master", map[string]string{"honister.yaml": specDoc("honister")})
	ws, err := workspace.Create(filepath.Join(tmp, "yocto"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return ws, specs
}

func TestAddDefaultsName(t *testing.T) {
	ws, specs := setup(t)
	s, err := Add(context.Background(), ws, " ", specs.URL)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if s.Name != DefaultName {
		t.Fatalf("Name = %q, want %q", s.Name, DefaultName)
	}
	if _, err := Add(context.Background(), ws, "", ""); err == nil {
		t.Fatalf("expected error for empty URI")
	}
}

func TestUpdateFollowsActiveSpec(t *testing.T) {
	ctx := context.Background()
	ws, specs := setup(t)
	if _, err := Add(ctx, ws, "", specs.URL); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if _, err := activate.Run(ctx, ws, "honister"); err != nil {
		t.Fatalf("activate error: %v", err)
	}
	specs.Commit("master", map[string]string{"honister.yaml": specDoc("honister-next")})

	results, err := Update(ctx, ws)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(results) != 1 || !results[0].Changed || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	active, _, err := ws.ActiveSpecName()
	if err != nil {
		t.Fatalf("ActiveSpecName error: %v", err)
	}
	repo, _ := active.Spec.Repo("poky")
	if repo.Refspec != "honister-next" || active.Revision != results[0].Revision {
		t.Fatalf("active = %+v", active)
	}
}

func TestUpdateReportsDirtyStream(t *testing.T) {
	ctx := context.Background()
	ws, specs := setup(t)
	s, err := Add(ctx, ws, "", specs.URL)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	gittest.WriteFile(t, filepath.Join(s.ContentsDir(), "honister.yaml"), specDoc("local-test"))

	results, err := Update(ctx, ws)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(results) != 1 || !errors.Is(results[0].Err, stream.ErrDirty) {
		t.Fatalf("results = %+v", results)
	}
}

func TestActivateUnknownSpec(t *testing.T) {
	ctx := context.Background()
	ws, specs := setup(t)
	if _, err := Add(ctx, ws, "", specs.URL); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	_, err := activate.Run(ctx, ws, "kirkstone")
	if !errors.Is(err, workspace.ErrSpecNotFound) {
		t.Fatalf("activate error = %v, want ErrSpecNotFound", err)
	}
	entries, problems, err := activate.List(ws)
	if err != nil || len(problems) != 0 {
		t.Fatalf("List = %v, %v", problems, err)
	}
	if len(entries) != 1 || entries[0].Name != "honister" || entries[0].Active {
		t.Fatalf("entries = %+v", entries)
	}
	if !strings.Contains(entries[0].Stream, DefaultName) {
		t.Fatalf("stream = %q", entries[0].Stream)
	}
}
