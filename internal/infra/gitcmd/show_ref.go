package gitcmd

import (
	"context"
	"fmt"
	"strings"
)

// ShowRef resolves a fully qualified ref such as refs/heads/honister to the
// object it names. ok is false when the ref does not exist.
func ShowRef(ctx context.Context, dir, ref string) (string, bool, error) {
	if !strings.HasPrefix(ref, "refs/") {
		return "", false, fmt.Errorf("show-ref needs a full ref name, got %q", ref)
	}
	res, err := Run(ctx, []string{"show-ref", "--verify", "--hash", ref}, Options{Dir: dir})
	switch {
	case err == nil:
		return strings.TrimSpace(res.Stdout), true, nil
	case res.ExitCode == 1:
		return "", false, nil
	case res.ExitCode == 128 && strings.Contains(res.Stderr, "not a valid ref"):
		return "", false, nil
	}
	return "", false, wrapStderr("show-ref "+ref, res, err)
}

// LocalBranch reports whether refs/heads/<branch> exists.
func LocalBranch(ctx context.Context, dir, branch string) (bool, error) {
	_, ok, err := ShowRef(ctx, dir, "refs/heads/"+branch)
	return ok, err
}

// RemoteBranch returns the commit of refs/remotes/<remote>/<branch> as of the
// last fetch.
func RemoteBranch(ctx context.Context, dir, remote, branch string) (string, bool, error) {
	return ShowRef(ctx, dir, "refs/remotes/"+remote+"/"+branch)
}
