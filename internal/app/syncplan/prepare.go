package syncplan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tasuku43/yb/internal/domain/layerconf"
	"github.com/tasuku43/yb/internal/domain/repostate"
	"github.com/tasuku43/yb/internal/domain/spec"
	"github.com/tasuku43/yb/internal/domain/stream"
	"github.com/tasuku43/yb/internal/domain/workspace"
	"github.com/tasuku43/yb/internal/infra/gitcmd"
	"github.com/tasuku43/yb/internal/infra/paths"
)

type PrepareOptions struct {
	Force bool
	// NoFetch skips repository fetches. Planning then uses the last fetched
	// remote state.
	NoFetch bool
	// NoRefresh skips the stream fast-forward.
	NoRefresh bool
	Step      func(text string)
}

// Prepared is a plan together with the context it was built from.
type Prepared struct {
	Active  workspace.ActiveSpec
	Refresh *stream.RefreshResult
	Plan    Plan
	// Warnings are stream level problems. Repository warnings live on Plan.
	Warnings []error

	persisted workspace.ActiveSpec
}

// SaveSnapshot persists the loaded spec when it differs from the stored
// snapshot. Callers run it once repository work is over.
func (p Prepared) SaveSnapshot(ws *workspace.Workspace) (bool, error) {
	if !SnapshotChanged(p.persisted, p.Active) {
		return false, nil
	}
	if err := ws.SaveActive(p.Active); err != nil {
		return false, err
	}
	return true, nil
}

// Prepare refreshes the active stream, loads the active spec, inspects every
// repository and the layer config, and builds the plan.
func Prepare(ctx context.Context, ws *workspace.Workspace, opts PrepareOptions) (Prepared, error) {
	if err := ws.RequireManaged(); err != nil {
		return Prepared{}, err
	}
	active, ok, err := ws.ActiveSpecName()
	if err != nil {
		return Prepared{}, err
	}
	if !ok {
		return Prepared{}, workspace.ErrNoActiveSpec
	}

	prepared := Prepared{persisted: active}
	logStep(opts.Step, fmt.Sprintf("load spec %s", active.Name))
	active, refresh, warnings, err := LoadActive(ctx, ws, active, !opts.NoRefresh)
	if err != nil {
		return Prepared{}, err
	}
	prepared.Active = active
	prepared.Refresh = refresh
	prepared.Warnings = warnings

	logStep(opts.Step, "inspect repositories")
	located, err := Locate(ctx, ws.SourcesDir(), active.Spec)
	if err != nil {
		return Prepared{}, err
	}
	states := InspectSpec(ctx, active.Spec, located, repostate.Options{
		NoFetch:      opts.NoFetch,
		FetchTimeout: ws.FetchTimeout(),
		Jobs:         ws.Jobs(),
	})
	layers, err := layerconf.Read(ws.LayerConfigPath())
	if err != nil {
		return Prepared{}, err
	}
	prepared.Plan = Build(Input{
		Spec:            active.Spec,
		SourcesDir:      ws.SourcesDir(),
		States:          states,
		Layers:          layers,
		LayerConfigPath: ws.LayerConfigPath(),
		Unreferenced:    located.Unreferenced,
	}, Options{Force: opts.Force})
	return prepared, nil
}

// LoadActive brings the active spec up to date with its stream. A dirty or
// unreachable stream is a warning and the checkout content is used as-is.
// When the stream itself cannot be opened the persisted snapshot is used.
// Nothing is written.
func LoadActive(ctx context.Context, ws *workspace.Workspace, active workspace.ActiveSpec, refresh bool) (workspace.ActiveSpec, *stream.RefreshResult, []error, error) {
	var warnings []error
	s, err := ws.Stream(active.Stream)
	if err != nil {
		if len(active.Spec.Repos) == 0 {
			return active, nil, nil, fmt.Errorf("%w: %v", stream.ErrUnavailable, err)
		}
		warnings = append(warnings, fmt.Errorf("stream %s: %w; using the last activated copy of %s", active.Stream, err, active.Name))
		return active, nil, warnings, nil
	}

	var result *stream.RefreshResult
	if refresh {
		res, err := s.Refresh(ctx, ws.FetchTimeout())
		switch {
		case errors.Is(err, stream.ErrDirty), errors.Is(err, stream.ErrUnavailable):
			warnings = append(warnings, fmt.Errorf("stream %s not refreshed: %w", s.Name, err))
		case err != nil:
			return active, nil, nil, err
		default:
			result = &res
		}
	}

	loaded, err := s.Load(active.Name)
	if err != nil {
		if errors.Is(err, stream.ErrSpecNotFound) {
			return active, result, warnings, fmt.Errorf("active spec %s is no longer provided by stream %s: %w", active.Name, s.Name, workspace.ErrSpecNotFound)
		}
		return active, result, warnings, err
	}
	revision, err := s.Revision(ctx)
	if err != nil {
		return active, result, warnings, err
	}
	active.Spec = loaded
	active.Revision = revision
	return active, result, warnings, nil
}

// SnapshotChanged reports whether loaded moved past the persisted snapshot.
func SnapshotChanged(persisted, loaded workspace.ActiveSpec) bool {
	return persisted.Revision != loaded.Revision || !sameSpec(persisted.Spec, loaded.Spec)
}

func sameSpec(a, b spec.Spec) bool {
	da, errA := spec.Marshal(a)
	db, errB := spec.Marshal(b)
	return errA == nil && errB == nil && string(da) == string(db)
}

// Located maps spec repositories to directories under the sources dir.
type Located struct {
	Paths map[string]string
	// Unreferenced lists directories no spec repository claims.
	Unreferenced []string
}

// Locate resolves where each repository lives. The default is
// <sources>/<name>; when that is absent, a directory whose remote serves the
// repository URL is used instead so renamed checkouts are not cloned again.
func Locate(ctx context.Context, sourcesDir string, s spec.Spec) (Located, error) {
	located := Located{Paths: map[string]string{}}
	names, err := repostate.ScanSources(sourcesDir)
	if err != nil {
		return Located{}, err
	}
	claimed := map[string]bool{}
	for _, repo := range s.Repos {
		claimed[repo.Name] = true
	}
	candidates := map[string][]gitcmd.Remote{}
	var candidateNames []string
	for _, name := range names {
		if claimed[name] {
			continue
		}
		remotes, err := gitcmd.Remotes(ctx, filepath.Join(sourcesDir, name))
		if err != nil {
			continue
		}
		candidates[name] = remotes
		candidateNames = append(candidateNames, name)
	}

	for _, repo := range s.Repos {
		path := spec.RepoPath(sourcesDir, repo)
		located.Paths[repo.Name] = path
		if exists, err := paths.DirExists(path); err != nil || exists {
			continue
		}
		if match := findRelocated(candidateNames, candidates, claimed, repo); match != "" {
			claimed[match] = true
			located.Paths[repo.Name] = filepath.Join(sourcesDir, match)
		}
	}
	for _, name := range names {
		if !claimed[name] {
			located.Unreferenced = append(located.Unreferenced, filepath.Join(sourcesDir, name))
		}
	}
	return located, nil
}

func findRelocated(names []string, candidates map[string][]gitcmd.Remote, claimed map[string]bool, repo spec.Repo) string {
	for _, name := range names {
		if claimed[name] {
			continue
		}
		for _, r := range candidates[name] {
			if gitcmd.SameURL(r.URL, repo.URL) {
				return name
			}
		}
	}
	return ""
}

// InspectSpec inspects every spec repository at its located path.
func InspectSpec(ctx context.Context, s spec.Spec, located Located, opts repostate.Options) map[string]repostate.State {
	reqs := make([]repostate.Request, 0, len(s.Repos))
	for _, repo := range s.Repos {
		path, ok := located.Paths[repo.Name]
		if !ok {
			path = spec.RepoPath("", repo)
		}
		reqs = append(reqs, repostate.Request{
			Path:   path,
			Expect: &repostate.Expectation{URLs: repo.URLs(), Refspec: repo.Refspec},
		})
	}
	results := repostate.InspectAll(ctx, reqs, opts)
	states := make(map[string]repostate.State, len(results))
	for i, repo := range s.Repos {
		states[repo.Name] = results[i]
	}
	return states
}

func logStep(step func(text string), text string) {
	if step == nil {
		return
	}
	step(text)
}
