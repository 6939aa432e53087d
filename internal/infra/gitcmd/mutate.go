package gitcmd

import "context"

// Clone clones url into dest with ref checked out. ref may be a branch or a tag.
func Clone(ctx context.Context, url, dest, ref string) error {
	args := []string{"clone"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, "--", url, dest)
	res, err := Run(ctx, args, Options{})
	if err != nil {
		return wrapStderr("clone", res, err)
	}
	return nil
}

// Fetch fetches ref from remote. Tags are fetched alongside so tag refspecs
// resolve locally.
func Fetch(ctx context.Context, dir, remote, ref string) error {
	args := []string{"fetch", "--tags", "--quiet", remote}
	if ref != "" {
		args = append(args, ref)
	}
	res, err := Run(ctx, args, Options{Dir: dir})
	if err != nil {
		return wrapStderr("fetch "+remote, res, err)
	}
	return nil
}

// FetchAll fetches every configured branch of remote.
func FetchAll(ctx context.Context, dir, remote string) error {
	res, err := Run(ctx, []string{"fetch", "--quiet", remote}, Options{Dir: dir})
	if err != nil {
		return wrapStderr("fetch "+remote, res, err)
	}
	return nil
}

func Checkout(ctx context.Context, dir, branch string) error {
	res, err := Run(ctx, []string{"checkout", "--quiet", branch, "--"}, Options{Dir: dir})
	if err != nil {
		return wrapStderr("checkout "+branch, res, err)
	}
	return nil
}

// CheckoutDetached checks out rev with a detached HEAD.
func CheckoutDetached(ctx context.Context, dir, rev string) error {
	res, err := Run(ctx, []string{"checkout", "--quiet", "--detach", rev, "--"}, Options{Dir: dir})
	if err != nil {
		return wrapStderr("checkout --detach "+rev, res, err)
	}
	return nil
}

// CreateTrackingBranch creates branch from remote/branch with upstream set.
// The working tree is left untouched.
func CreateTrackingBranch(ctx context.Context, dir, remote, branch string) error {
	res, err := Run(ctx, []string{"branch", "--track", branch, remote + "/" + branch}, Options{Dir: dir})
	if err != nil {
		return wrapStderr("branch --track "+branch, res, err)
	}
	return nil
}

// MergeFastForward advances the current branch to its upstream.
func MergeFastForward(ctx context.Context, dir string) error {
	res, err := Run(ctx, []string{"merge", "--ff-only", "--quiet", "@{upstream}"}, Options{Dir: dir})
	if err != nil {
		return wrapStderr("merge --ff-only", res, err)
	}
	return nil
}

func ResetHard(ctx context.Context, dir, rev string) error {
	res, err := Run(ctx, []string{"reset", "--hard", "--quiet", rev}, Options{Dir: dir})
	if err != nil {
		return wrapStderr("reset --hard "+rev, res, err)
	}
	return nil
}

// Clean removes untracked files and directories. Ignored files stay.
func Clean(ctx context.Context, dir string) error {
	res, err := Run(ctx, []string{"clean", "-d", "--force", "--quiet"}, Options{Dir: dir})
	if err != nil {
		return wrapStderr("clean", res, err)
	}
	return nil
}
