package status

import (
	"context"
	"path/filepath"

	"github.com/tasuku43/yb/internal/app/syncplan"
	"github.com/tasuku43/yb/internal/domain/layerconf"
	"github.com/tasuku43/yb/internal/domain/repostate"
	"github.com/tasuku43/yb/internal/domain/workspace"
)

type Options struct {
	NoFetch bool
}

type RepoStatus struct {
	Name string
	// Refspec is empty for directories the active spec does not reference.
	Refspec string
	State   repostate.State
	Kind    repostate.Kind
	// OnTarget is true when the checkout follows the spec refspec.
	OnTarget bool
}

type Report struct {
	Workspace    *workspace.Workspace
	Active       *workspace.ActiveSpec
	Repos        []RepoStatus
	Unreferenced []RepoStatus
	Layers       layerconf.Config
	// MissingLayers are spec layers absent from bblayers.conf, ExtraLayers
	// the reverse.
	MissingLayers []string
	ExtraLayers   []string
	Warnings      []error
}

// Run inspects every repository. Bare workspaces report the directories under
// sources without a desired state.
func Run(ctx context.Context, ws *workspace.Workspace, opts Options) (Report, error) {
	report := Report{Workspace: ws}
	inspectOpts := repostate.Options{NoFetch: opts.NoFetch, FetchTimeout: ws.FetchTimeout(), Jobs: ws.Jobs()}

	layers, err := layerconf.Read(ws.LayerConfigPath())
	if err != nil {
		return Report{}, err
	}
	report.Layers = layers

	var unreferenced []string
	if ws.IsManaged() {
		active, ok, err := ws.ActiveSpecName()
		if err != nil {
			return Report{}, err
		}
		if ok {
			active, _, warnings, err := syncplan.LoadActive(ctx, ws, active, false)
			if err != nil {
				return Report{}, err
			}
			report.Active = &active
			report.Warnings = append(report.Warnings, warnings...)
		}
	}

	if report.Active != nil {
		s := report.Active.Spec
		located, err := syncplan.Locate(ctx, ws.SourcesDir(), s)
		if err != nil {
			return Report{}, err
		}
		states := syncplan.InspectSpec(ctx, s, located, inspectOpts)
		var desired []string
		for _, repo := range s.Repos {
			st := states[repo.Name]
			report.Repos = append(report.Repos, RepoStatus{
				Name:     repo.Name,
				Refspec:  repo.Refspec,
				State:    st,
				Kind:     repostate.Classify(st),
				OnTarget: onTarget(st, repo.Refspec),
			})
			report.Warnings = append(report.Warnings, warningErrors(st)...)
			desired = append(desired, repo.LayerPaths(st.Path)...)
		}
		report.MissingLayers, report.ExtraLayers = layerconf.Diff(desired, layers)
		unreferenced = located.Unreferenced
	} else {
		names, err := repostate.ScanSources(ws.SourcesDir())
		if err != nil {
			return Report{}, err
		}
		for _, name := range names {
			unreferenced = append(unreferenced, filepath.Join(ws.SourcesDir(), name))
		}
	}

	reqs := make([]repostate.Request, 0, len(unreferenced))
	for _, path := range unreferenced {
		reqs = append(reqs, repostate.Request{Path: path})
	}
	for _, st := range repostate.InspectAll(ctx, reqs, inspectOpts) {
		report.Unreferenced = append(report.Unreferenced, RepoStatus{
			Name:  filepath.Base(st.Path),
			State: st,
			Kind:  repostate.Classify(st),
		})
		report.Warnings = append(report.Warnings, warningErrors(st)...)
	}
	return report, nil
}

func onTarget(st repostate.State, refspec string) bool {
	if !st.IsRepo {
		return false
	}
	if st.Branch == refspec {
		return true
	}
	t := st.Target
	if t == nil {
		return false
	}
	if st.Branch != "" && t.TrackedBy == st.Branch {
		return true
	}
	return t.Tag && st.Head == t.TagCommit
}

func warningErrors(st repostate.State) []error {
	errs := make([]error, 0, len(st.Warnings))
	for _, w := range st.Warnings {
		errs = append(errs, w)
	}
	return errs
}
