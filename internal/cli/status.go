package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/tasuku43/yb/internal/app/status"
	"github.com/tasuku43/yb/internal/domain/repostate"
)

func runStatus(e *env, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	var noFetch bool
	fs.BoolVar(&noFetch, "no-fetch", false, "use the last fetched remote state")
	if help, err := parseFlags(fs, args, e.out, printStatusHelp); help || err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("usage: yb status [--no-fetch]")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()

	report, err := status.Run(e.ctx, ws, status.Options{NoFetch: noFetch})
	if err != nil {
		return err
	}
	writeStatusText(e, report)
	return nil
}

func writeStatusText(e *env, report status.Report) {
	r := e.renderer
	ws := report.Workspace

	r.Section("Info")
	r.Bullet(fmt.Sprintf("root: %s (%s)", ws.Root, ws.Kind))
	if report.Active != nil {
		r.BulletWithDetail(fmt.Sprintf("spec: %s", report.Active.Name), fmt.Sprintf("stream %s @ %s", report.Active.Stream, shortSHA(report.Active.Revision)))
	} else if ws.IsManaged() {
		r.BulletWithDetail("spec: none", "run yb activate <spec>")
	}
	layerState := "missing"
	if report.Layers.Exists {
		layerState = fmt.Sprintf("%d layer(s)", len(report.Layers.Entries()))
		if n := len(report.Layers.Appended); n > 0 {
			layerState += fmt.Sprintf(", %d appended with +=", n)
		}
	}
	r.BulletWithDetail(fmt.Sprintf("layers: %s", relPath(ws.Root, ws.LayerConfigPath())), layerState)

	if len(report.Repos) > 0 {
		r.Blank()
		r.Section("Repositories")
		for _, repo := range report.Repos {
			writeRepoStatus(e, ws.Root, repo)
		}
	}
	if len(report.Unreferenced) > 0 {
		r.Blank()
		title := "Unreferenced"
		if report.Active == nil {
			title = "Repositories"
		}
		r.Section(title)
		for _, repo := range report.Unreferenced {
			writeRepoStatus(e, ws.Root, repo)
		}
	}

	if len(report.MissingLayers) > 0 || len(report.ExtraLayers) > 0 {
		r.Blank()
		r.Section("Layers")
		if len(report.MissingLayers) > 0 {
			r.Bullet("not in bblayers.conf")
			renderTreeLines(r, relPaths(ws.Root, report.MissingLayers), treeLineWarn)
		}
		if len(report.ExtraLayers) > 0 {
			r.Bullet("not in spec")
			renderTreeLines(r, relPaths(ws.Root, report.ExtraLayers), treeLineMuted)
		}
	}

	renderWarningsSection(r, "warnings", report.Warnings, true)
}

func writeRepoStatus(e *env, root string, repo status.RepoStatus) {
	r := e.renderer
	st := repo.State
	label := fmt.Sprintf("%s %s", repo.Name, headLabel(st))
	switch repo.Kind {
	case repostate.KindMissing, repostate.KindNotRepo:
		r.BulletError(fmt.Sprintf("%s (%s)", repo.Name, repo.Kind))
	default:
		r.BulletWithDetail(strings.TrimSpace(label), string(repo.Kind))
	}

	lines := []string{fmt.Sprintf("path: %s", relPath(root, st.Path))}
	if repo.Refspec != "" {
		target := "off target"
		if repo.OnTarget {
			target = "on target"
		}
		lines = append(lines, fmt.Sprintf("refspec: %s (%s)", repo.Refspec, target))
	}
	if st.IsRepo {
		lines = append(lines, upstreamLine(st))
		if st.Dirty {
			lines = append(lines, fmt.Sprintf("changes: %s", dirtyLine(st)))
		}
	}
	style := treeLineNormal
	if repo.Kind == repostate.KindDirty || repo.Kind == repostate.KindDiverged {
		style = treeLineWarn
	}
	renderTreeLines(r, lines, style)
}

func headLabel(st repostate.State) string {
	switch {
	case !st.IsRepo:
		return ""
	case st.Detached:
		return fmt.Sprintf("(detached at %s)", st.ShortHead())
	case st.Branch != "":
		return fmt.Sprintf("(%s)", st.Branch)
	default:
		return ""
	}
}

func upstreamLine(st repostate.State) string {
	if st.Upstream == nil {
		return "upstream: none"
	}
	line := fmt.Sprintf("upstream: %s/%s", st.Upstream.Remote, st.Upstream.Branch)
	if !st.AheadBehindKnown {
		return line + ", ahead/behind unknown"
	}
	if st.Ahead > 0 {
		line += fmt.Sprintf(", ahead %d", st.Ahead)
	}
	if st.Behind > 0 {
		line += fmt.Sprintf(", behind %d", st.Behind)
	}
	return line
}

func dirtyLine(st repostate.State) string {
	var parts []string
	if st.Staged > 0 {
		parts = append(parts, fmt.Sprintf("%d staged", st.Staged))
	}
	if st.Unstaged > 0 {
		parts = append(parts, fmt.Sprintf("%d unstaged", st.Unstaged))
	}
	if st.Untracked > 0 {
		parts = append(parts, fmt.Sprintf("%d untracked", st.Untracked))
	}
	if st.Unmerged > 0 {
		parts = append(parts, fmt.Sprintf("%d unmerged", st.Unmerged))
	}
	return strings.Join(parts, ", ")
}

func relPaths(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, relPath(root, p))
	}
	return out
}
