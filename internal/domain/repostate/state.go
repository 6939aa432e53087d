package repostate

import (
	"fmt"
	"time"
)

// Expectation is what the active spec asks of a repository.
type Expectation struct {
	// URLs holds the primary URL first, then any extra remote URLs.
	URLs    []string
	Refspec string
}

type Options struct {
	// NoFetch skips the network; ahead/behind then reflect the last fetch.
	NoFetch      bool
	FetchTimeout time.Duration
	// Jobs bounds concurrent inspections in InspectAll.
	Jobs int
}

const (
	DefaultFetchTimeout = 60 * time.Second
	DefaultJobs         = 4
)

// Tracking is an upstream relationship, e.g. origin + honister.
type Tracking struct {
	Remote string
	Branch string
	// Ref is the remote-tracking ref as git prints it, e.g. origin/honister.
	Ref string
}

type Remote struct {
	Name string
	URL  string
}

// State is a snapshot of one repository directory. It holds no handles.
type State struct {
	Path    string
	Present bool
	IsRepo  bool

	Head     string
	Branch   string
	Detached bool

	Upstream         *Tracking
	Ahead            int
	Behind           int
	AheadBehindKnown bool

	Dirty     bool
	Staged    int
	Unstaged  int
	Untracked int
	Unmerged  int

	Remotes       []Remote
	MatchedRemote string
	// FetchFailed is set when a fetch was attempted and did not complete.
	FetchFailed bool

	Target *Target

	Warnings []Warning
}

// Target describes the spec refspec as seen from this repository.
type Target struct {
	Refspec string

	LocalBranch           bool
	LocalUpstream         *Tracking
	LocalAhead            int
	LocalBehind           int
	LocalAheadBehindKnown bool

	RemoteBranch bool
	RemoteCommit string

	Tag       bool
	TagCommit string

	// TrackedBy names a local branch, other than Refspec, whose upstream is
	// <matched remote>/<Refspec>.
	TrackedBy string
}

// Diverged reports whether the local Refspec branch and its upstream both
// carry commits the other lacks.
func (t *Target) Diverged() bool {
	return t != nil && t.LocalAheadBehindKnown && t.LocalAhead > 0 && t.LocalBehind > 0
}

// Diverged reports whether the current branch and its upstream have split.
func (s State) Diverged() bool {
	return s.AheadBehindKnown && s.Ahead > 0 && s.Behind > 0
}

func (s State) ShortHead() string {
	return shortSHA(s.Head)
}

// Warning is a non-fatal inspection problem scoped to one repository.
type Warning struct {
	Path    string
	Message string
	Err     error
}

func (w Warning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %s: %v", w.Path, w.Message, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Path, w.Message)
}

func (w Warning) Unwrap() error {
	return w.Err
}

type Kind string

const (
	KindMissing    Kind = "missing"
	KindNotRepo    Kind = "not-a-repo"
	KindUnknown    Kind = "unknown"
	KindDirty      Kind = "dirty"
	KindDiverged   Kind = "diverged"
	KindAhead      Kind = "ahead"
	KindBehind     Kind = "behind"
	KindNoUpstream Kind = "no-upstream"
	KindDetached   Kind = "detached"
	KindClean      Kind = "clean"
)

// Classify reduces a State to the single most pressing condition.
func Classify(s State) Kind {
	switch {
	case !s.Present:
		return KindMissing
	case !s.IsRepo:
		return KindNotRepo
	case s.Head == "" && len(s.Warnings) > 0:
		return KindUnknown
	case s.Dirty:
		return KindDirty
	case s.Detached:
		return KindDetached
	case s.Upstream == nil:
		return KindNoUpstream
	case !s.AheadBehindKnown:
		return KindUnknown
	case s.Ahead > 0 && s.Behind > 0:
		return KindDiverged
	case s.Ahead > 0:
		return KindAhead
	case s.Behind > 0:
		return KindBehind
	default:
		return KindClean
	}
}
