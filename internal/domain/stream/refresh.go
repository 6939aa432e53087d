package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tasuku43/yb/internal/infra/gitcmd"
)

// RefreshResult reports what a refresh did. Changed is false for NoChange.
type RefreshResult struct {
	Changed  bool
	Previous string
	Revision string
}

// Revision returns the commit the stream checkout is on.
func (s *Stream) Revision(ctx context.Context) (string, error) {
	return gitcmd.RevParse(ctx, s.ContentsDir(), "HEAD")
}

// Refresh fast-forwards the stream checkout to its upstream. It refuses with
// ErrDirty on local edits, local commits or divergence, and reports
// ErrUnavailable when the remote cannot be fetched within timeout.
func (s *Stream) Refresh(ctx context.Context, timeout time.Duration) (RefreshResult, error) {
	dir := s.ContentsDir()
	previous, err := s.Revision(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	result := RefreshResult{Previous: previous, Revision: previous}

	status, err := gitcmd.StatusPorcelainV2(ctx, dir)
	if err != nil {
		return result, err
	}
	branch, modified := summarize(status)
	if modified {
		return result, fmt.Errorf("%w: %s", ErrDirty, dir)
	}
	if branch == "" {
		return result, fmt.Errorf("%w: %s is not on a branch", ErrDirty, dir)
	}
	branches, err := gitcmd.LocalBranches(ctx, dir)
	if err != nil {
		return result, err
	}
	var upstream gitcmd.BranchInfo
	for _, b := range branches {
		if b.Name == branch {
			upstream = b
		}
	}
	if upstream.UpstreamRemote == "" || upstream.UpstreamRef == "" {
		return result, fmt.Errorf("%w: branch %s of stream %s has no upstream", ErrUnavailable, branch, s.Name)
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	err = gitcmd.FetchAll(fetchCtx, dir, upstream.UpstreamRemote)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: fetch timed out after %s", ErrUnavailable, timeout)
		}
		return result, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ahead, behind, err := gitcmd.AheadBehind(ctx, dir, "HEAD", "refs/remotes/"+upstream.UpstreamRef)
	if err != nil {
		return result, err
	}
	if ahead > 0 {
		return result, fmt.Errorf("%w: %d local commit(s) on %s", ErrDirty, ahead, branch)
	}
	if behind == 0 {
		return result, nil
	}
	gitcmd.Logf("git merge --ff-only @{upstream}")
	if err := gitcmd.MergeFastForward(ctx, dir); err != nil {
		return result, err
	}
	revision, err := s.Revision(ctx)
	if err != nil {
		return result, err
	}
	result.Revision = revision
	result.Changed = revision != previous
	return result, nil
}

func summarize(status string) (branch string, modified bool) {
	for _, line := range strings.Split(status, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "# branch.head "):
			head := strings.TrimPrefix(line, "# branch.head ")
			if head != "(detached)" {
				branch = head
			}
		case strings.HasPrefix(line, "# "), strings.HasPrefix(line, "! "):
		default:
			modified = true
		}
	}
	return branch, modified
}

// Add clones uri as a new stream named name under streamsDir. The clone is
// validated before it becomes visible. A zero timeout means 30 minutes.
func Add(ctx context.Context, streamsDir, name, uri string, timeout time.Duration) (*Stream, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid stream name %q", name)
	}
	dest := filepath.Join(streamsDir, name)
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("a stream named %s already exists", name)
	}
	if err := os.MkdirAll(streamsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create streams dir: %w", err)
	}
	tmp, err := os.MkdirTemp(streamsDir, ".add-"+name+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = os.RemoveAll(tmp)
		}
	}()

	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	gitcmd.Logf("git clone %s", uri)
	cloneCtx, cancel := context.WithTimeout(ctx, timeout)
	err = gitcmd.Clone(cloneCtx, uri, filepath.Join(tmp, ContentsDirName), "")
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: clone timed out after %s", ErrUnavailable, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	data, err := yaml.Marshal(Config{Kind: KindGit, FormatVersion: ConfigFormatVersion})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(tmp, ConfigFileName), data, 0o644); err != nil {
		return nil, fmt.Errorf("write stream config: %w", err)
	}
	staged, err := Open(tmp)
	if err != nil {
		return nil, err
	}
	if _, err := staged.Specs(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return nil, fmt.Errorf("install stream: %w", err)
	}
	keep = true
	return Open(dest)
}
