package apply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tasuku43/yb/internal/app/syncplan"
	"github.com/tasuku43/yb/internal/domain/layerconf"
	"github.com/tasuku43/yb/internal/infra/gitcmd"
	"github.com/tasuku43/yb/internal/infra/paths"
)

// ErrForceRequired is returned for destructive actions when force is off.
var ErrForceRequired = errors.New("destructive action requires --force")

type Options struct {
	DryRun bool
	Force  bool
	// CloneTimeout bounds each clone. Zero means 30 minutes.
	CloneTimeout time.Duration
	Step         func(text string)
}

// ExecutionError is a failed action. It ends that repository's sequence
// only.
type ExecutionError struct {
	Repo   string
	Action syncplan.Action
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Repo, e.Action, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

type RepoResult struct {
	Repo string
	Path string
	// Performed lists the actions that ran, or would run in a dry run.
	Performed []syncplan.Action
	// Err is a *syncplan.ConflictError or an *ExecutionError.
	Err error
}

func (r RepoResult) Reachable() bool {
	return r.Err == nil
}

type Result struct {
	DryRun bool
	Repos  []RepoResult
	// Layers lists the layer config actions performed, or that would be.
	Layers []syncplan.Action
	// LayerConfigWritten is false in dry runs and when nothing changed.
	LayerConfigWritten bool
	LayerErr           error
	Warnings           []error
}

// Apply runs plan. In a dry run every action is validated against the real
// repositories plus the simulated effect of earlier actions, and nothing is
// changed. The layer config is written once, after every repository has been
// attempted, with only the layers whose repository is available.
func Apply(ctx context.Context, plan syncplan.Plan, opts Options) Result {
	result := Result{DryRun: opts.DryRun}
	reachable := map[string]bool{}
	for _, rp := range plan.Repos {
		rr := applyRepo(ctx, rp, opts)
		reachable[rp.Repo] = rr.Reachable()
		result.Repos = append(result.Repos, rr)
	}
	applyLayers(plan, reachable, opts, &result)
	return result
}

func applyRepo(ctx context.Context, rp syncplan.RepoPlan, opts Options) RepoResult {
	rr := RepoResult{Repo: rp.Repo, Path: rp.Path}
	if rp.Conflict != nil {
		rr.Err = rp.Conflict
		return rr
	}
	sim := newOverlay()
	for _, action := range rp.Actions {
		if err := validate(ctx, action, sim, opts.Force); err != nil {
			rr.Err = &ExecutionError{Repo: rp.Repo, Action: action, Err: err}
			return rr
		}
		if !opts.DryRun {
			logStep(opts.Step, action.String())
			if err := execute(ctx, action, opts.CloneTimeout); err != nil {
				rr.Err = &ExecutionError{Repo: rp.Repo, Action: action, Err: err}
				return rr
			}
		}
		sim.record(action)
		rr.Performed = append(rr.Performed, action)
	}
	return rr
}

// overlay tracks what earlier actions of the same repository did, so a dry
// run can validate later actions that depend on them.
type overlay struct {
	cloned   bool
	branches map[string]bool
	// reset and cleaned mean tracked and untracked changes are gone.
	reset   bool
	cleaned bool
}

func newOverlay() *overlay {
	return &overlay{branches: map[string]bool{}}
}

func (o *overlay) record(a syncplan.Action) {
	switch a.Kind {
	case syncplan.ActionClone:
		o.cloned = true
		o.branches[a.Ref] = true
	case syncplan.ActionCreateTrackingBranch:
		o.branches[a.Ref] = true
	case syncplan.ActionResetHard:
		o.reset = true
	case syncplan.ActionClean:
		o.cleaned = true
	}
}

func validate(ctx context.Context, a syncplan.Action, sim *overlay, force bool) error {
	if a.Destructive() && !force {
		return ErrForceRequired
	}
	if a.Kind == syncplan.ActionClone {
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("repository URL is empty")
		}
		if _, err := os.Lstat(a.Path); err == nil {
			return fmt.Errorf("%s already exists", a.Path)
		} else if !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if sim.cloned {
		// Everything after a clone runs against a repository that does not
		// exist yet in a dry run.
		return nil
	}
	if exists, err := paths.DirExists(a.Path); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%s does not exist", a.Path)
	}
	switch a.Kind {
	case syncplan.ActionCreateTrackingBranch:
		if ok, err := gitcmd.LocalBranch(ctx, a.Path, a.Ref); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("branch %s already exists", a.Ref)
		}
		if _, ok, err := gitcmd.RemoteBranch(ctx, a.Path, a.Remote, a.Ref); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%s/%s not found", a.Remote, a.Ref)
		}
	case syncplan.ActionCheckout:
		if a.Detached {
			if _, ok, err := gitcmd.CommitOf(ctx, a.Path, "refs/tags/"+a.Ref); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("tag %s not found", a.Ref)
			}
			return nil
		}
		if sim.branches[a.Ref] {
			return nil
		}
		if ok, err := gitcmd.LocalBranch(ctx, a.Path, a.Ref); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("branch %s not found", a.Ref)
		}
	case syncplan.ActionFastForward:
		if sim.branches[a.Ref] {
			return nil
		}
		if _, err := gitcmd.RevParse(ctx, a.Path, "--abbrev-ref", a.Ref+"@{upstream}"); err != nil {
			return fmt.Errorf("%s has no upstream: %w", a.Ref, err)
		}
		return checkFastForward(ctx, a, sim)
	case syncplan.ActionResetHard:
		if _, ok, err := gitcmd.CommitOf(ctx, a.Path, a.Ref); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%s does not resolve to a commit", a.Ref)
		}
	}
	return nil
}

// checkFastForward fails the way `git merge --ff-only` would when local
// changes sit on paths the upstream touches.
func checkFastForward(ctx context.Context, a syncplan.Action, sim *overlay) error {
	if sim.reset && sim.cleaned {
		return nil
	}
	entries, err := gitcmd.StatusEntries(ctx, a.Path)
	if err != nil {
		return err
	}
	dirty := map[string]bool{}
	for _, e := range entries {
		switch {
		case sim.reset && !e.Untracked():
		case sim.cleaned && e.Untracked():
		case e.Unmerged():
			return fmt.Errorf("%s has unmerged paths", a.Repo)
		default:
			dirty[e.Path] = true
		}
	}
	if len(dirty) == 0 {
		return nil
	}
	branch := "refs/heads/" + a.Ref
	changed, err := gitcmd.DiffNames(ctx, a.Path, branch, branch+"@{upstream}")
	if err != nil {
		return err
	}
	var blocking []string
	for _, name := range changed {
		if dirty[name] {
			blocking = append(blocking, name)
		}
	}
	if len(blocking) > 0 {
		return fmt.Errorf("local changes would be overwritten by the fast-forward: %s", strings.Join(blocking, ", "))
	}
	return nil
}

func execute(ctx context.Context, a syncplan.Action, cloneTimeout time.Duration) error {
	switch a.Kind {
	case syncplan.ActionClone:
		if err := os.MkdirAll(filepath.Dir(a.Path), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(a.Path), err)
		}
		if cloneTimeout <= 0 {
			cloneTimeout = 30 * time.Minute
		}
		gitcmd.Logf("git clone --branch %s %s %s", a.Ref, a.URL, a.Path)
		cloneCtx, cancel := context.WithTimeout(ctx, cloneTimeout)
		defer cancel()
		if err := gitcmd.Clone(cloneCtx, a.URL, a.Path, a.Ref); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("clone timed out after %s", cloneTimeout)
			}
			return err
		}
		return nil
	case syncplan.ActionCreateTrackingBranch:
		gitcmd.Logf("git branch --track %s %s/%s", a.Ref, a.Remote, a.Ref)
		return gitcmd.CreateTrackingBranch(ctx, a.Path, a.Remote, a.Ref)
	case syncplan.ActionCheckout:
		if a.Detached {
			gitcmd.Logf("git checkout --detach %s", a.Ref)
			return gitcmd.CheckoutDetached(ctx, a.Path, "refs/tags/"+a.Ref)
		}
		gitcmd.Logf("git checkout %s", a.Ref)
		return gitcmd.Checkout(ctx, a.Path, a.Ref)
	case syncplan.ActionFastForward:
		gitcmd.Logf("git merge --ff-only @{upstream}")
		return gitcmd.MergeFastForward(ctx, a.Path)
	case syncplan.ActionResetHard:
		gitcmd.Logf("git reset --hard %s", a.Ref)
		return gitcmd.ResetHard(ctx, a.Path, a.Ref)
	case syncplan.ActionClean:
		gitcmd.Logf("git clean -d --force")
		return gitcmd.Clean(ctx, a.Path)
	default:
		return fmt.Errorf("unsupported repository action %s", a.Kind)
	}
}

func applyLayers(plan syncplan.Plan, reachable map[string]bool, opts Options, result *Result) {
	if len(plan.Layers) == 0 {
		return
	}
	cfg, err := layerconf.Read(plan.LayerConfigPath)
	if err != nil {
		result.LayerErr = err
		return
	}
	var final []string
	skipped := map[string]bool{}
	for _, layer := range plan.Desired {
		if reachable[layer.Repo] || cfg.Contains(layer.Path) {
			final = append(final, layer.Path)
			continue
		}
		skipped[layer.Path] = true
		result.Warnings = append(result.Warnings, fmt.Errorf("layer %s skipped: repository %s is not available", layer.Path, layer.Repo))
	}

	for _, action := range plan.Layers {
		if action.Kind == syncplan.ActionAddLayer && skipped[action.Path] {
			continue
		}
		result.Layers = append(result.Layers, action)
	}
	if !layerChange(result.Layers) {
		result.Layers = nil
		return
	}
	if opts.DryRun {
		return
	}
	for _, path := range final {
		if exists, err := paths.DirExists(path); err == nil && !exists {
			result.Warnings = append(result.Warnings, fmt.Errorf("layer directory %s does not exist", path))
		}
	}
	logStep(opts.Step, fmt.Sprintf("write %s", plan.LayerConfigPath))
	if err := layerconf.Write(cfg, final, plan.LayerConfigPath); err != nil {
		result.LayerErr = err
		return
	}
	result.LayerConfigWritten = true
}

// layerChange reports whether actions would alter the file.
func layerChange(actions []syncplan.Action) bool {
	for _, a := range actions {
		switch a.Kind {
		case syncplan.ActionCreateLayerConfig, syncplan.ActionAddLayer, syncplan.ActionRemoveLayer:
			return true
		}
	}
	return false
}

// Actions lists every performed action in execution order.
func (r Result) Actions() []syncplan.Action {
	var actions []syncplan.Action
	for _, rr := range r.Repos {
		actions = append(actions, rr.Performed...)
	}
	return append(actions, r.Layers...)
}

type Summary struct {
	Performed  int
	Conflicted int
	Failed     int
	Warnings   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d action(s), %d conflict(s), %d failure(s), %d warning(s)", s.Performed, s.Conflicted, s.Failed, s.Warnings)
}

func (r Result) Summary() Summary {
	s := Summary{Performed: len(r.Actions()), Warnings: len(r.Warnings)}
	for _, rr := range r.Repos {
		var conflict *syncplan.ConflictError
		switch {
		case rr.Err == nil:
		case errors.As(rr.Err, &conflict):
			s.Conflicted++
		default:
			s.Failed++
		}
	}
	if r.LayerErr != nil {
		s.Failed++
	}
	return s
}

// Err joins every conflict and failure, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, rr := range r.Repos {
		if rr.Err != nil {
			errs = append(errs, rr.Err)
		}
	}
	if r.LayerErr != nil {
		errs = append(errs, r.LayerErr)
	}
	return errors.Join(errs...)
}

func logStep(step func(text string), text string) {
	if step == nil {
		return
	}
	step(text)
}
