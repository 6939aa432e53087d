package cli

import (
	"errors"
	"flag"
	"fmt"

	"github.com/tasuku43/yb/internal/app/activate"
	"github.com/tasuku43/yb/internal/app/apply"
	"github.com/tasuku43/yb/internal/app/syncplan"
	"github.com/tasuku43/yb/internal/infra/output"
	"github.com/tasuku43/yb/internal/ui"
)

func runSync(e *env, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	var doApply, force, noFetch, noPrompt bool
	fs.BoolVar(&doApply, "apply", false, "perform the plan")
	fs.BoolVar(&doApply, "a", false, "perform the plan")
	fs.BoolVar(&force, "force", false, "allow resets of dirty or diverged repositories")
	fs.BoolVar(&force, "f", false, "allow resets of dirty or diverged repositories")
	fs.BoolVar(&noFetch, "no-fetch", false, "skip repository fetches")
	fs.BoolVar(&noPrompt, "no-prompt", e.noPrompt, "apply without confirmation")
	flags, positional := interleaved(fs, args)
	if help, err := parseFlags(fs, flags, e.out, printSyncHelp); help || err != nil {
		return err
	}
	if len(positional) > 1 {
		return fmt.Errorf("usage: yb sync [<spec>] [--apply] [--force] [--no-fetch] [--no-prompt]")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()
	r := e.renderer

	if len(positional) == 1 {
		active, err := activate.Run(e.ctx, ws, positional[0])
		if err != nil {
			return err
		}
		r.Section("Info")
		r.BulletWithDetail(fmt.Sprintf("activated %s", active.Name), fmt.Sprintf("stream %s", active.Stream))
		r.Blank()
	}

	prepared, err := syncplan.Prepare(e.ctx, ws, syncplan.PrepareOptions{
		Force:   force,
		NoFetch: noFetch,
	})
	if err != nil {
		return err
	}
	plan := prepared.Plan
	warnings := append(append([]error{}, prepared.Warnings...), plan.Warnings...)
	renderWarningsSection(r, "warnings", warnings, false)
	if len(warnings) > 0 {
		r.Blank()
	}

	r.Section("Plan")
	r.BulletWithDetail(fmt.Sprintf("spec %s", prepared.Active.Name), fmt.Sprintf("stream %s @ %s", prepared.Active.Stream, shortSHA(prepared.Active.Revision)))
	if prepared.Refresh != nil && prepared.Refresh.Changed {
		r.BulletWithDetail("stream updated", fmt.Sprintf("%s -> %s", shortSHA(prepared.Refresh.Previous), shortSHA(prepared.Refresh.Revision)))
	}
	writePlanText(e, ws.Root, plan)
	if plan.IsEmpty() {
		r.Bullet("no changes")
		if doApply {
			_, err := prepared.SaveSnapshot(ws)
			return err
		}
		return nil
	}

	if !doApply {
		dry := apply.Apply(e.ctx, plan, apply.Options{DryRun: true, Force: force, CloneTimeout: ws.CloneTimeout()})
		r.Blank()
		r.Section("Result")
		writeApplyResult(e, dry)
		hints := []string{"yb sync --apply"}
		if plan.RequiresForce() && !force {
			hints = append(hints, "yb sync --apply --force (discards local changes)")
		}
		if e.useColor {
			renderSuggestions(r, hints)
		}
		return dry.Err()
	}

	if e.interactive && !noPrompt {
		r.Blank()
		label := "Apply changes?"
		if hasDestructive(plan) {
			label = "Apply destructive changes?"
		}
		confirm, err := ui.PromptConfirmInline(label, e.in, e.out, r.Theme(), e.useColor)
		if err != nil {
			if errors.Is(err, ui.ErrPromptCanceled) {
				return nil
			}
			return err
		}
		if !confirm {
			return nil
		}
	}

	r.Blank()
	r.Section("Steps")
	result := apply.Apply(e.ctx, plan, apply.Options{Force: force, CloneTimeout: ws.CloneTimeout(), Step: output.Step})
	_, saveErr := prepared.SaveSnapshot(ws)
	r.Blank()
	r.Section("Result")
	writeApplyResult(e, result)
	return errors.Join(result.Err(), saveErr)
}

func hasDestructive(plan syncplan.Plan) bool {
	for _, a := range plan.Actions() {
		if a.Destructive() {
			return true
		}
	}
	return false
}

func writePlanText(e *env, root string, plan syncplan.Plan) {
	r := e.renderer
	for _, rp := range plan.Repos {
		if len(rp.Actions) == 0 && rp.Conflict == nil && len(rp.Notices) == 0 {
			continue
		}
		if rp.Conflict != nil {
			r.BulletError(fmt.Sprintf("%s (conflict)", rp.Repo))
			lines := append([]string{}, rp.Conflict.Reasons...)
			for _, a := range rp.Conflict.Blocked {
				lines = append(lines, fmt.Sprintf("needs --force: %s", a))
			}
			renderTreeLines(r, lines, treeLineError)
			continue
		}
		r.BulletWithDetail(rp.Repo, relPath(root, rp.Path))
		var lines []string
		for _, a := range rp.Actions {
			lines = append(lines, a.String())
		}
		renderTreeLines(r, lines, treeLineNormal)
		if len(rp.Notices) > 0 {
			renderTreeLines(r, rp.Notices, treeLineMuted)
		}
	}
	if len(plan.Layers) > 0 {
		r.BulletWithDetail("layers", relPath(root, plan.LayerConfigPath))
		var lines []string
		for _, a := range plan.Layers {
			switch a.Kind {
			case syncplan.ActionAddLayer:
				lines = append(lines, fmt.Sprintf("add %s", relPath(root, a.Path)))
			case syncplan.ActionRemoveLayer:
				lines = append(lines, fmt.Sprintf("remove %s", relPath(root, a.Path)))
			default:
				lines = append(lines, a.String())
			}
		}
		renderTreeLines(r, lines, treeLineNormal)
	}
	if len(plan.Unreferenced) > 0 {
		r.BulletWithDetail("unreferenced", "not in spec, left untouched")
		renderTreeLines(r, relPaths(root, plan.Unreferenced), treeLineMuted)
	}
}

func writeApplyResult(e *env, result apply.Result) {
	r := e.renderer
	for _, rr := range result.Repos {
		if rr.Err == nil {
			continue
		}
		var conflict *syncplan.ConflictError
		if errors.As(rr.Err, &conflict) {
			r.BulletError(fmt.Sprintf("%s skipped (conflict)", rr.Repo))
			continue
		}
		r.BulletError(fmt.Sprintf("%s failed", rr.Repo))
		renderTreeLines(r, []string{compactError(rr.Err)}, treeLineError)
	}
	if result.LayerErr != nil {
		r.BulletError("layer config not written")
		renderTreeLines(r, []string{compactError(result.LayerErr)}, treeLineError)
	}
	for _, w := range result.Warnings {
		r.Warn(compactError(w))
	}

	summary := result.Summary()
	verb := "applied"
	if result.DryRun {
		verb = "dry run"
	}
	line := fmt.Sprintf("%s: %s", verb, summary)
	if summary.Conflicted+summary.Failed > 0 {
		r.BulletError(line)
	} else {
		r.BulletSuccess(line)
	}
	if result.LayerConfigWritten {
		r.Bullet("bblayers.conf rewritten")
	}
}
