package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveStartFlagOverrides(t *testing.T) {
	t.Setenv("YB_ROOT", "/tmp/ignore")
	root, err := ResolveStart("/tmp/custom")
	if err != nil {
		t.Fatalf("ResolveStart error: %v", err)
	}
	if root != "/tmp/custom" {
		t.Fatalf("expected /tmp/custom, got %s", root)
	}
}

func TestResolveStartEnv(t *testing.T) {
	t.Setenv("YB_ROOT", "/tmp/env-root")
	root, err := ResolveStart("")
	if err != nil {
		t.Fatalf("ResolveStart error: %v", err)
	}
	if root != "/tmp/env-root" {
		t.Fatalf("expected /tmp/env-root, got %s", root)
	}
}

func TestResolveStartExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root, err := ResolveStart("~/yocto")
	if err != nil {
		t.Fatalf("ResolveStart error: %v", err)
	}
	if want := filepath.Join(home, "yocto"); root != want {
		t.Fatalf("expected %s, got %s", want, root)
	}
}

func TestFindMarkerWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		t.Fatalf("mkdir marker: %v", err)
	}
	deep := filepath.Join(root, "build", "tmp", "work")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatalf("mkdir deep: %v", err)
	}
	got, ok, err := FindMarker(deep)
	if err != nil {
		t.Fatalf("FindMarker error: %v", err)
	}
	if !ok || got != root {
		t.Fatalf("FindMarker = %q, %v, want %q", got, ok, root)
	}
}

func TestFindMarkerMissing(t *testing.T) {
	_, ok, err := FindMarker(t.TempDir())
	if err != nil {
		t.Fatalf("FindMarker error: %v", err)
	}
	if ok {
		t.Fatalf("FindMarker found a marker in an empty tree")
	}
}
