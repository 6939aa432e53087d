// Package syncplan compares the active spec with what is on disk and emits
// an ordered list of actions that would reconcile the two. Planning never
// mutates anything.
package syncplan

import (
	"fmt"
	"strings"

	"github.com/tasuku43/yb/internal/domain/repostate"
)

type ActionKind string

const (
	ActionClone                ActionKind = "clone"
	ActionCheckout             ActionKind = "checkout"
	ActionCreateTrackingBranch ActionKind = "create-tracking-branch"
	ActionFastForward          ActionKind = "fast-forward"
	ActionResetHard            ActionKind = "reset-hard"
	ActionClean                ActionKind = "clean"
	ActionCreateLayerConfig    ActionKind = "create-layer-config"
	ActionAddLayer             ActionKind = "add-layer"
	ActionRemoveLayer          ActionKind = "remove-layer"
)

// Action is one mutation. It carries data only; the executor interprets it.
type Action struct {
	Kind ActionKind
	// Repo is the spec repository the action belongs to. Layer actions carry
	// the owning repository when one exists.
	Repo string
	// Path is the repository directory, the layer path, or the layer config
	// file depending on Kind.
	Path     string
	URL      string
	Remote   string
	Ref      string
	Detached bool
}

func (a Action) String() string {
	switch a.Kind {
	case ActionClone:
		return fmt.Sprintf("clone %s (%s @ %s)", a.Repo, a.URL, a.Ref)
	case ActionCheckout:
		if a.Detached {
			return fmt.Sprintf("checkout %s (detached) in %s", a.Ref, a.Repo)
		}
		return fmt.Sprintf("checkout %s in %s", a.Ref, a.Repo)
	case ActionCreateTrackingBranch:
		return fmt.Sprintf("create branch %s tracking %s/%s in %s", a.Ref, a.Remote, a.Ref, a.Repo)
	case ActionFastForward:
		return fmt.Sprintf("fast-forward %s", a.Repo)
	case ActionResetHard:
		return fmt.Sprintf("reset --hard %s in %s", a.Ref, a.Repo)
	case ActionClean:
		return fmt.Sprintf("remove untracked files in %s", a.Repo)
	case ActionCreateLayerConfig:
		return fmt.Sprintf("create %s", a.Path)
	case ActionAddLayer:
		return fmt.Sprintf("add layer %s", a.Path)
	case ActionRemoveLayer:
		return fmt.Sprintf("remove layer %s", a.Path)
	default:
		return fmt.Sprintf("unknown(%s)", string(a.Kind))
	}
}

// Destructive reports whether the action discards local work.
func (a Action) Destructive() bool {
	return a.Kind == ActionResetHard || a.Kind == ActionClean
}

// ConflictError explains why a repository cannot be reconciled as-is.
// Blocked lists what would run with force, empty when force cannot help.
type ConflictError struct {
	Repo    string
	Path    string
	Reasons []string
	Blocked []Action
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Repo, strings.Join(e.Reasons, "; "))
	if e.ForceResolvable() {
		names := make([]string, 0, len(e.Blocked))
		for _, a := range e.Blocked {
			names = append(names, a.String())
		}
		msg += fmt.Sprintf(" (--force would run: %s)", strings.Join(names, ", "))
	}
	return msg
}

func (e *ConflictError) ForceResolvable() bool {
	return len(e.Blocked) > 0
}

type RepoPlan struct {
	Repo     string
	Path     string
	State    repostate.State
	Actions  []Action
	Conflict *ConflictError
	// Notices are informational; they never block.
	Notices []string
}

// Layer is a resolved layer path and the repository that provides it.
type Layer struct {
	Path string
	Repo string
}

type Plan struct {
	Spec            string
	SourcesDir      string
	LayerConfigPath string
	Repos           []RepoPlan
	// Layers holds layer config actions, always run after repository actions.
	Layers []Action
	// Desired is every layer the spec asks for, in declaration order.
	Desired      []Layer
	Unreferenced []string
	Warnings     []error
}

func (p Plan) IsEmpty() bool {
	return len(p.Actions()) == 0 && !p.HasConflicts()
}

// Actions flattens the plan in execution order.
func (p Plan) Actions() []Action {
	var actions []Action
	for _, rp := range p.Repos {
		actions = append(actions, rp.Actions...)
	}
	return append(actions, p.Layers...)
}

func (p Plan) HasConflicts() bool {
	for _, rp := range p.Repos {
		if rp.Conflict != nil {
			return true
		}
	}
	return false
}

// RequiresForce reports whether some conflict would be resolved by force.
func (p Plan) RequiresForce() bool {
	for _, rp := range p.Repos {
		if rp.Conflict != nil && rp.Conflict.ForceResolvable() {
			return true
		}
	}
	return false
}

// Conflicts returns every repository conflict in plan order.
func (p Plan) Conflicts() []*ConflictError {
	var out []*ConflictError
	for _, rp := range p.Repos {
		if rp.Conflict != nil {
			out = append(out, rp.Conflict)
		}
	}
	return out
}
