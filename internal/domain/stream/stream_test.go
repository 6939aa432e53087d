package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tasuku43/yb/internal/domain/spec"
	"github.com/tasuku43/yb/internal/testutil/gittest"
)

const specDoc = `header:
  name: %s
repos:
  poky:
    url: https://example.com/yocto/poky.git
    refspec: %s
    layers:
      meta:
`

func specFile(name, refspec string) string {
	return fmt.Sprintf(specDoc, name, refspec)
}

func addStream(t *testing.T) (*gittest.Remote, *Stream, string) {
	t.Helper()
	tmp := gittest.Setup(t)
	remote := gittest.NewRemote(t, tmp, "stream")
	remote.Commit("master", map[string]string{
		"rpi.yaml":         specFile("rpi", "honister"),
		"sub/qemu.yml":     specFile("qemu", "kirkstone"),
		".hidden/bad.yaml": "not: [valid",
		"README.md":        "docs\n",
	})
	streamsDir := filepath.Join(tmp, "ws", ".yb", "streams")
	s, err := Add(context.Background(), streamsDir, "default", remote.URL, 0)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	return remote, s, streamsDir
}

func TestAddAndListSpecs(t *testing.T) {
	_, s, _ := addStream(t)
	if s.Name != "default" {
		t.Fatalf("Name = %q", s.Name)
	}
	names, err := s.ListSpecs()
	if err != nil {
		t.Fatalf("ListSpecs error: %v", err)
	}
	if strings.Join(names, ",") != "qemu,rpi" {
		t.Fatalf("ListSpecs = %v", names)
	}
	got, err := s.Load("rpi")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Repos[0].Refspec != "honister" {
		t.Fatalf("Load = %+v", got)
	}
	if _, err := s.Load("nope"); !errors.Is(err, ErrSpecNotFound) {
		t.Fatalf("Load(nope) error = %v, want ErrSpecNotFound", err)
	}
}

func TestAddRejectsExistingName(t *testing.T) {
	remote, _, streamsDir := addStream(t)
	if _, err := Add(context.Background(), streamsDir, "default", remote.URL, 0); err == nil {
		t.Fatalf("expected error for duplicate stream name")
	}
}

func TestBrokenStream(t *testing.T) {
	remote, s, _ := addStream(t)
	remote.Commit("master", map[string]string{"broken.yaml": "header:\n  version: 7\n  name: x\nrepos: {}\n"})
	if _, err := s.Refresh(context.Background(), time.Minute); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	_, err := s.ListSpecs()
	var perr *spec.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("ListSpecs error = %v, want *spec.ParseError", err)
	}
}

func TestRefreshFastForwards(t *testing.T) {
	ctx := context.Background()
	remote, s, _ := addStream(t)

	res, err := s.Refresh(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if res.Changed {
		t.Fatalf("Refresh reported a change with nothing new")
	}

	want := remote.Commit("master", map[string]string{"rpi.yaml": specFile("rpi", "kirkstone")})
	res, err = s.Refresh(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if !res.Changed || res.Revision != want {
		t.Fatalf("Refresh = %+v, want revision %s", res, want)
	}
	got, err := s.Load("rpi")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Repos[0].Refspec != "kirkstone" {
		t.Fatalf("refspec = %s after refresh", got.Repos[0].Refspec)
	}
}

func TestRefreshRefusesDirtyCheckout(t *testing.T) {
	_, s, _ := addStream(t)
	gittest.WriteFile(t, filepath.Join(s.ContentsDir(), "rpi.yaml"), specFile("rpi", "local-test"))
	if _, err := s.Refresh(context.Background(), time.Minute); !errors.Is(err, ErrDirty) {
		t.Fatalf("Refresh error = %v, want ErrDirty", err)
	}
}

func TestRefreshRefusesLocalCommits(t *testing.T) {
	remote, s, _ := addStream(t)
	gittest.WriteFile(t, filepath.Join(s.ContentsDir(), "extra.yaml"), specFile("extra", "master"))
	gittest.Run(t, s.ContentsDir(), "add", ".")
	gittest.Run(t, s.ContentsDir(), "commit", "-m", "local")
	remote.Commit("master", map[string]string{"NEWS": "x\n"})
	if _, err := s.Refresh(context.Background(), time.Minute); !errors.Is(err, ErrDirty) {
		t.Fatalf("Refresh error = %v, want ErrDirty", err)
	}
}

func TestRefreshUnavailable(t *testing.T) {
	remote, s, _ := addStream(t)
	if err := os.RemoveAll(remote.Path); err != nil {
		t.Fatalf("remove remote: %v", err)
	}
	if _, err := s.Refresh(context.Background(), time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Refresh error = %v, want ErrUnavailable", err)
	}
}
