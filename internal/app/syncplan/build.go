package syncplan

import (
	"fmt"

	"github.com/tasuku43/yb/internal/domain/layerconf"
	"github.com/tasuku43/yb/internal/domain/repostate"
	"github.com/tasuku43/yb/internal/domain/spec"
)

type Input struct {
	Spec       spec.Spec
	SourcesDir string
	// States maps repository name to its inspected state. State.Path is where
	// the repository lives; a missing entry means absent at the default path.
	States          map[string]repostate.State
	Layers          layerconf.Config
	LayerConfigPath string
	Unreferenced    []string
}

type Options struct {
	Force bool
}

// Build plans repositories in spec order, then the layer config.
func Build(in Input, opts Options) Plan {
	plan := Plan{
		Spec:            in.Spec.Name,
		SourcesDir:      in.SourcesDir,
		LayerConfigPath: in.LayerConfigPath,
		Unreferenced:    in.Unreferenced,
	}
	var desired []string
	for _, repo := range in.Spec.Repos {
		st, ok := in.States[repo.Name]
		if !ok {
			st = repostate.State{Path: spec.RepoPath(in.SourcesDir, repo)}
		}
		rp := planRepo(repo, st, opts)
		for _, w := range st.Warnings {
			plan.Warnings = append(plan.Warnings, w)
		}
		plan.Repos = append(plan.Repos, rp)
		for _, p := range repo.LayerPaths(st.Path) {
			plan.Desired = append(plan.Desired, Layer{Path: p, Repo: repo.Name})
			desired = append(desired, p)
		}
	}

	toAdd, toRemove := layerconf.Diff(desired, in.Layers)
	if !in.Layers.Exists {
		plan.Layers = append(plan.Layers, Action{Kind: ActionCreateLayerConfig, Path: in.LayerConfigPath})
	}
	owners := make(map[string]string, len(plan.Desired))
	for _, l := range plan.Desired {
		owners[l.Path] = l.Repo
	}
	for _, p := range toAdd {
		plan.Layers = append(plan.Layers, Action{Kind: ActionAddLayer, Path: p, Repo: owners[p]})
	}
	for _, p := range toRemove {
		plan.Layers = append(plan.Layers, Action{Kind: ActionRemoveLayer, Path: p})
	}
	return plan
}

func planRepo(repo spec.Repo, st repostate.State, opts Options) RepoPlan {
	rp := RepoPlan{Repo: repo.Name, Path: st.Path, State: st}
	conflict := func(reason string) RepoPlan {
		rp.Conflict = &ConflictError{Repo: repo.Name, Path: st.Path, Reasons: []string{reason}}
		return rp
	}

	if !st.Present {
		// A fresh clone lands on the refspec, so nothing else is needed.
		rp.Actions = []Action{{Kind: ActionClone, Repo: repo.Name, Path: st.Path, URL: repo.URL, Ref: repo.Refspec}}
		return rp
	}
	if !st.IsRepo {
		return conflict(fmt.Sprintf("%s exists but is not a git repository", st.Path))
	}
	if st.MatchedRemote == "" {
		return conflict(fmt.Sprintf("no remote points at %s", repo.URL))
	}
	t := st.Target
	if t == nil {
		t = &repostate.Target{Refspec: repo.Refspec}
	}
	remote := st.MatchedRemote

	if onTarget(st, t) {
		rp.Notices, rp.Actions = planUpdate(repo, st)
		return rp
	}

	var switchActions []Action
	var follow []Action
	diverged := false
	switch {
	case t.LocalBranch:
		switchActions = []Action{{Kind: ActionCheckout, Repo: repo.Name, Path: st.Path, Ref: repo.Refspec}}
		switch {
		case t.Diverged():
			diverged = true
		case t.LocalUpstream == nil:
			rp.Notices = append(rp.Notices, fmt.Sprintf("local branch %s has no upstream", repo.Refspec))
		case !t.LocalAheadBehindKnown:
			rp.Notices = append(rp.Notices, fmt.Sprintf("%s ahead/behind unknown", repo.Refspec))
		case t.LocalBehind > 0 && t.LocalAhead == 0:
			follow = append(follow, Action{Kind: ActionFastForward, Repo: repo.Name, Path: st.Path, Remote: t.LocalUpstream.Remote, Ref: repo.Refspec})
		case t.LocalAhead > 0:
			rp.Notices = append(rp.Notices, fmt.Sprintf("%s has %d unpushed commit(s)", repo.Refspec, t.LocalAhead))
		}
	case t.RemoteBranch:
		switchActions = []Action{
			{Kind: ActionCreateTrackingBranch, Repo: repo.Name, Path: st.Path, Remote: remote, Ref: repo.Refspec},
			{Kind: ActionCheckout, Repo: repo.Name, Path: st.Path, Ref: repo.Refspec},
		}
	case t.Tag:
		switchActions = []Action{{Kind: ActionCheckout, Repo: repo.Name, Path: st.Path, Ref: repo.Refspec, Detached: true}}
	case st.FetchFailed:
		return conflict(fmt.Sprintf("%s not found locally and %s could not be fetched", repo.Refspec, remote))
	default:
		return conflict(fmt.Sprintf("%s is neither a branch on %s nor a tag", repo.Refspec, remote))
	}

	if !st.Dirty && !diverged {
		rp.Actions = append(switchActions, follow...)
		return rp
	}

	var reasons []string
	var forced []Action
	if st.Dirty {
		reasons = append(reasons, fmt.Sprintf("working tree has uncommitted changes (%s)", dirtySummary(st)))
		forced = append(forced, Action{Kind: ActionResetHard, Repo: repo.Name, Path: st.Path, Ref: "HEAD"})
		if st.Untracked > 0 {
			forced = append(forced, Action{Kind: ActionClean, Repo: repo.Name, Path: st.Path})
		}
	}
	forced = append(forced, switchActions...)
	if diverged {
		upstream := remote + "/" + repo.Refspec
		if t.LocalUpstream != nil {
			upstream = t.LocalUpstream.Ref
		}
		reasons = append(reasons, fmt.Sprintf("local %s has diverged from %s", repo.Refspec, upstream))
		forced = append(forced, Action{Kind: ActionResetHard, Repo: repo.Name, Path: st.Path, Ref: upstream})
	} else {
		forced = append(forced, follow...)
	}
	reasons[0] = fmt.Sprintf("switching to %s blocked: %s", repo.Refspec, reasons[0])
	if !opts.Force {
		rp.Conflict = &ConflictError{Repo: repo.Name, Path: st.Path, Reasons: reasons, Blocked: forced}
		return rp
	}
	rp.Actions = forced
	return rp
}

// onTarget reports whether the checkout already follows the refspec: the
// branch itself, another branch tracking it, or HEAD at the tag commit.
func onTarget(st repostate.State, t *repostate.Target) bool {
	if st.Branch != "" && st.Branch == t.Refspec {
		return true
	}
	if st.Branch != "" && t.TrackedBy == st.Branch {
		return true
	}
	return t.Tag && !t.LocalBranch && !t.RemoteBranch && st.Head != "" && st.Head == t.TagCommit
}

func planUpdate(repo spec.Repo, st repostate.State) ([]string, []Action) {
	switch {
	case st.Detached:
		return nil, nil
	case st.Upstream == nil:
		return []string{fmt.Sprintf("branch %s has no upstream", st.Branch)}, nil
	case !st.AheadBehindKnown:
		return []string{fmt.Sprintf("%s ahead/behind unknown", st.Branch)}, nil
	case st.Ahead > 0 && st.Behind > 0:
		return []string{fmt.Sprintf("%s has diverged from %s (%d ahead, %d behind); not updated", st.Branch, st.Upstream.Ref, st.Ahead, st.Behind)}, nil
	case st.Behind > 0:
		return nil, []Action{{Kind: ActionFastForward, Repo: repo.Name, Path: st.Path, Remote: st.Upstream.Remote, Ref: st.Branch}}
	case st.Ahead > 0:
		return []string{fmt.Sprintf("%s has %d unpushed commit(s)", st.Branch, st.Ahead)}, nil
	}
	return nil, nil
}

func dirtySummary(st repostate.State) string {
	return fmt.Sprintf("%d staged, %d unstaged, %d untracked, %d unmerged", st.Staged, st.Unstaged, st.Untracked, st.Unmerged)
}
