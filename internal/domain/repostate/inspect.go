package repostate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tasuku43/yb/internal/infra/gitcmd"
)

// Request asks InspectAll for one directory. Expect may be nil for
// directories no spec repository claims.
type Request struct {
	Path   string
	Expect *Expectation
}

// InspectAll inspects every request on a bounded pool. Results keep request
// order.
func InspectAll(ctx context.Context, reqs []Request, opts Options) []State {
	results := make([]State, len(reqs))
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs
	}
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = Inspect(ctx, req.Path, req.Expect, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Inspect snapshots the repository at path. Problems are reported as
// warnings on the returned State; Inspect itself never fails. The only side
// effect is a fetch of the remote serving the expected URL.
func Inspect(ctx context.Context, path string, expect *Expectation, opts Options) State {
	st := State{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.Present = true
			st.warn("stat failed", err)
		}
		return st
	}
	st.Present = true
	if !info.IsDir() {
		return st
	}

	top, ok, err := gitcmd.ShowToplevel(ctx, path)
	if err != nil {
		st.warn("cannot open repository", err)
		return st
	}
	if !ok || !samePath(top, path) {
		return st
	}
	st.IsRepo = true

	remotes, err := gitcmd.Remotes(ctx, path)
	if err != nil {
		st.warn("cannot list remotes", err)
	}
	for _, r := range remotes {
		st.Remotes = append(st.Remotes, Remote{Name: r.Name, URL: r.URL})
	}
	if expect != nil {
		st.MatchedRemote = matchRemote(st.Remotes, expect.URLs)
		if !opts.NoFetch && st.MatchedRemote != "" {
			if err := fetch(ctx, path, st.MatchedRemote, opts.FetchTimeout); err != nil {
				st.FetchFailed = true
				st.warn(fmt.Sprintf("fetch %s failed; ahead/behind unknown", st.MatchedRemote), err)
			}
		}
	}

	out, err := gitcmd.StatusPorcelainV2(ctx, path)
	if err != nil {
		st.warn("git status failed", err)
		return st
	}
	ps := parsePorcelainV2(out)
	st.Head = ps.oid
	st.Branch = ps.branch
	st.Detached = ps.detached
	st.Dirty = ps.dirty
	st.Staged = ps.staged
	st.Unstaged = ps.unstaged
	st.Untracked = ps.untracked
	st.Unmerged = ps.unmerged

	branches, err := gitcmd.LocalBranches(ctx, path)
	if err != nil {
		st.warn("cannot list branches", err)
	}
	if st.Branch != "" {
		if b, ok := findBranch(branches, st.Branch); ok && b.UpstreamRef != "" {
			st.Upstream = &Tracking{Remote: b.UpstreamRemote, Branch: b.UpstreamBranch, Ref: b.UpstreamRef}
		} else if ps.upstream != "" {
			st.Upstream = &Tracking{Ref: ps.upstream}
		}
	}
	if st.Upstream != nil && ps.hasAB {
		st.Ahead = ps.ahead
		st.Behind = ps.behind
		st.AheadBehindKnown = !st.FetchFailed
	}

	if expect != nil && expect.Refspec != "" {
		st.Target = inspectTarget(ctx, &st, branches, expect.Refspec)
	}
	return st
}

func inspectTarget(ctx context.Context, st *State, branches []gitcmd.BranchInfo, refspec string) *Target {
	t := &Target{Refspec: refspec}
	if b, ok := findBranch(branches, refspec); ok {
		t.LocalBranch = true
		if b.UpstreamRef != "" {
			t.LocalUpstream = &Tracking{Remote: b.UpstreamRemote, Branch: b.UpstreamBranch, Ref: b.UpstreamRef}
		}
	}
	if st.MatchedRemote != "" {
		for _, b := range branches {
			if b.Name != refspec && b.UpstreamRemote == st.MatchedRemote && b.UpstreamBranch == refspec {
				if t.TrackedBy == "" || b.Name == st.Branch {
					t.TrackedBy = b.Name
				}
			}
		}
		commit, ok, err := gitcmd.RemoteBranch(ctx, st.Path, st.MatchedRemote, refspec)
		if err != nil {
			st.warn("cannot resolve remote branch "+refspec, err)
		}
		t.RemoteBranch = ok
		t.RemoteCommit = commit
	}
	if _, ok, err := gitcmd.ShowRef(ctx, st.Path, "refs/tags/"+refspec); err != nil {
		st.warn("cannot resolve tag "+refspec, err)
	} else if ok {
		commit, found, err := gitcmd.CommitOf(ctx, st.Path, "refs/tags/"+refspec)
		if err != nil {
			st.warn("cannot resolve tag "+refspec, err)
		}
		t.Tag = found
		t.TagCommit = commit
	}

	if t.LocalBranch {
		upstream := ""
		switch {
		case t.LocalUpstream != nil:
			upstream = "refs/remotes/" + t.LocalUpstream.Ref
		case t.RemoteBranch:
			upstream = "refs/remotes/" + st.MatchedRemote + "/" + refspec
		}
		if upstream != "" {
			ahead, behind, err := gitcmd.AheadBehind(ctx, st.Path, "refs/heads/"+refspec, upstream)
			if err != nil {
				st.warn("cannot compare "+refspec+" with its upstream", err)
			} else {
				t.LocalAhead = ahead
				t.LocalBehind = behind
				t.LocalAheadBehindKnown = !st.FetchFailed
			}
		}
	}
	return t
}

// fetch updates every branch and tag of remote so both the current upstream
// and the spec refspec are compared against server state.
func fetch(ctx context.Context, dir, remote string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := gitcmd.Fetch(fetchCtx, dir, remote, "")
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return err
}

// matchRemote picks the remote serving the expected repository. Remotes
// matching the primary URL win over extra remotes; origin wins ties.
func matchRemote(remotes []Remote, urls []string) string {
	for _, url := range urls {
		var matches []string
		for _, r := range remotes {
			if gitcmd.SameURL(r.URL, url) {
				matches = append(matches, r.Name)
			}
		}
		if len(matches) == 0 {
			continue
		}
		for _, name := range matches {
			if name == "origin" {
				return name
			}
		}
		return matches[0]
	}
	return ""
}

func findBranch(branches []gitcmd.BranchInfo, name string) (gitcmd.BranchInfo, bool) {
	for _, b := range branches {
		if b.Name == name {
			return b, true
		}
	}
	return gitcmd.BranchInfo{}, false
}

func samePath(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		ra = filepath.Clean(a)
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		rb = filepath.Clean(b)
	}
	return ra == rb
}

func (s *State) warn(message string, err error) {
	s.Warnings = append(s.Warnings, Warning{Path: s.Path, Message: message, Err: err})
}

// ScanSources lists the directories directly under sourcesDir, skipping
// hidden entries. A missing directory yields no entries.
func ScanSources(sourcesDir string) ([]string, error) {
	entries, err := os.ReadDir(sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
