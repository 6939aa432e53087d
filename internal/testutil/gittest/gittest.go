// Package gittest builds throwaway git remotes for tests. Remotes are served
// from the local filesystem under https://example.com/ via url.insteadOf so
// no test touches the network.
package gittest

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const URLBase = "https://example.com/yocto/"

// Setup isolates git from the user's configuration and returns a temp root.
func Setup(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	tmp := t.TempDir()
	remoteBase := filepath.Join(tmp, "remotes")
	if err := os.MkdirAll(remoteBase, 0o755); err != nil {
		t.Fatalf("mkdir remotes: %v", err)
	}
	configPath := filepath.Join(tmp, "gitconfig")
	fileURL := "file://" + filepath.ToSlash(remoteBase) + "/"
	configData := fmt.Sprintf("[url \"%s\"]\n\tinsteadOf = %s\n[init]\n\tdefaultBranch = master\n[advice]\n\tdetachedHead = false\n", fileURL, URLBase)
	if err := os.WriteFile(configPath, []byte(configData), 0o644); err != nil {
		t.Fatalf("write gitconfig: %v", err)
	}
	t.Setenv("GIT_CONFIG_GLOBAL", configPath)
	t.Setenv("GIT_CONFIG_SYSTEM", "/dev/null")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_TERMINAL_PROMPT", "0")
	t.Setenv("GIT_AUTHOR_NAME", "yb")
	t.Setenv("GIT_AUTHOR_EMAIL", "yb@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "yb")
	t.Setenv("GIT_COMMITTER_EMAIL", "yb@example.com")
	return tmp
}

// Remote is a bare repository plus the working clone used to seed it.
type Remote struct {
	Name string
	URL  string
	Path string
	work string
	t    *testing.T
}

// NewRemote creates a bare remote with one commit on master.
func NewRemote(t *testing.T, tmp, name string) *Remote {
	t.Helper()
	path := filepath.Join(tmp, "remotes", name+".git")
	Run(t, "", "init", "--bare", path)
	work := filepath.Join(tmp, "seed", name)
	Run(t, "", "init", work)
	Run(t, work, "checkout", "-b", "master")
	Run(t, work, "remote", "add", "origin", path)
	r := &Remote{Name: name, URL: URLBase + name + ".git", Path: path, work: work, t: t}
	r.Commit("master", map[string]string{"README": name + "\n"})
	Run(t, "", "--git-dir", path, "symbolic-ref", "HEAD", "refs/heads/master")
	return r
}

// Commit writes files on branch, creating it from the current seed HEAD when
// missing, and pushes. It returns the new commit id.
func (r *Remote) Commit(branch string, files map[string]string) string {
	r.t.Helper()
	if Try(r.work, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch) == nil {
		Run(r.t, r.work, "checkout", branch)
	} else {
		Run(r.t, r.work, "checkout", "-b", branch)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		WriteFile(r.t, filepath.Join(r.work, name), files[name])
	}
	Run(r.t, r.work, "add", "-A")
	Run(r.t, r.work, "commit", "--allow-empty", "-m", "update "+branch)
	Run(r.t, r.work, "push", "--quiet", "origin", branch)
	return Run(r.t, r.work, "rev-parse", "HEAD")
}

// Tag tags the tip of branch and pushes the tag.
func (r *Remote) Tag(tag, branch string) string {
	r.t.Helper()
	Run(r.t, r.work, "tag", tag, branch)
	Run(r.t, r.work, "push", "--quiet", "origin", tag)
	return Run(r.t, r.work, "rev-parse", tag+"^{commit}")
}

// Layer returns the files of a minimal layer rooted at dir.
func Layer(dir string) map[string]string {
	return map[string]string{filepath.Join(dir, "conf", "layer.conf"): "BBFILE_COLLECTIONS += \"" + filepath.Base(dir) + "\"\n"}
}

// Clone clones the remote into dest on branch.
func (r *Remote) Clone(dest, branch string) {
	r.t.Helper()
	Run(r.t, "", "clone", "--quiet", "--branch", branch, r.URL, dest)
}

func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func Run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, errOut, err := run(dir, args...)
	if err != nil {
		t.Fatalf("git %s failed: %v\nstderr:\n%s", strings.Join(args, " "), err, errOut)
	}
	return out
}

// Try runs git and reports only whether it failed.
func Try(dir string, args ...string) error {
	_, _, err := run(dir, args...)
	return err
}

func run(dir string, args ...string) (string, string, error) {
	cmd := exec.Command("git", args...)
	cmd.Env = os.Environ()
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stdout.String()), stderr.String(), err
}
