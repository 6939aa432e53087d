package gitcmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StatusPorcelainV2 returns porcelain v2 status output with branch info.
func StatusPorcelainV2(ctx context.Context, dir string) (string, error) {
	res, err := Run(ctx, []string{"status", "--porcelain=v2", "-b"}, Options{Dir: dir})
	if err != nil {
		return "", wrapStderr("status", res, err)
	}
	return res.Stdout, nil
}

// StatusEntry is one path from `git status --porcelain -z`.
type StatusEntry struct {
	// XY is the two letter status code; "??" marks an untracked path.
	XY   string
	Path string
}

func (e StatusEntry) Untracked() bool {
	return e.XY == "??"
}

func (e StatusEntry) Unmerged() bool {
	switch e.XY {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}

// StatusEntries lists every changed path, untracked files one by one.
// Renames and copies report both the new and the original path.
func StatusEntries(ctx context.Context, dir string) ([]StatusEntry, error) {
	res, err := Run(ctx, []string{"status", "--porcelain", "-z", "--untracked-files=all"}, Options{Dir: dir})
	if err != nil {
		return nil, wrapStderr("status", res, err)
	}
	var entries []StatusEntry
	fields := strings.Split(res.Stdout, "\x00")
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if len(f) < 4 {
			continue
		}
		e := StatusEntry{XY: f[:2], Path: f[3:]}
		entries = append(entries, e)
		if (e.XY[0] == 'R' || e.XY[0] == 'C') && i+1 < len(fields) {
			i++
			entries = append(entries, StatusEntry{XY: e.XY, Path: fields[i]})
		}
	}
	return entries, nil
}

// DiffNames lists paths that differ between two commits.
func DiffNames(ctx context.Context, dir, from, to string) ([]string, error) {
	res, err := Run(ctx, []string{"diff", "--name-only", "-z", "--no-renames", from, to, "--"}, Options{Dir: dir})
	if err != nil {
		return nil, wrapStderr("diff --name-only", res, err)
	}
	var names []string
	for _, name := range strings.Split(res.Stdout, "\x00") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// RevParse runs git rev-parse and returns trimmed stdout.
func RevParse(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"rev-parse"}, args...)
	res, err := Run(ctx, fullArgs, Options{Dir: dir})
	if err != nil {
		return "", wrapStderr("rev-parse "+strings.Join(args, " "), res, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ShowToplevel returns the work tree root containing dir. ok is false when
// dir is not inside a work tree.
func ShowToplevel(ctx context.Context, dir string) (string, bool, error) {
	res, err := Run(ctx, []string{"rev-parse", "--show-toplevel"}, Options{Dir: dir})
	if err == nil {
		return strings.TrimSpace(res.Stdout), true, nil
	}
	if res.ExitCode == 128 && strings.Contains(res.Stderr, "not a git repository") {
		return "", false, nil
	}
	return "", false, wrapStderr("rev-parse --show-toplevel", res, err)
}

// CommitOf resolves rev to a full commit id. ok is false when rev is unknown.
func CommitOf(ctx context.Context, dir, rev string) (string, bool, error) {
	res, err := Run(ctx, []string{"rev-parse", "--verify", "--quiet", rev + "^{commit}"}, Options{Dir: dir})
	if err == nil {
		return strings.TrimSpace(res.Stdout), true, nil
	}
	if res.ExitCode == 1 {
		return "", false, nil
	}
	return "", false, wrapStderr("rev-parse --verify "+rev, res, err)
}

// AheadBehind counts commits reachable only from left (ahead) and only from
// right (behind).
func AheadBehind(ctx context.Context, dir, left, right string) (int, int, error) {
	res, err := Run(ctx, []string{"rev-list", "--left-right", "--count", left + "..." + right}, Options{Dir: dir})
	if err != nil {
		return 0, 0, wrapStderr("rev-list", res, err)
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("git rev-list: unexpected output %q", strings.TrimSpace(res.Stdout))
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("git rev-list: %w", err)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("git rev-list: %w", err)
	}
	return ahead, behind, nil
}

// BranchInfo describes a local branch and its configured upstream.
type BranchInfo struct {
	Name           string
	UpstreamRemote string
	// UpstreamBranch is the branch name on the remote, without refs/heads/.
	UpstreamBranch string
	// UpstreamRef is the local remote-tracking ref, e.g. origin/main.
	UpstreamRef string
}

// LocalBranches lists refs/heads with their upstream configuration.
func LocalBranches(ctx context.Context, dir string) ([]BranchInfo, error) {
	format := "%(refname:short)%09%(upstream:remotename)%09%(upstream:remoteref)%09%(upstream:short)"
	res, err := Run(ctx, []string{"for-each-ref", "--format=" + format, "refs/heads"}, Options{Dir: dir})
	if err != nil {
		return nil, wrapStderr("for-each-ref", res, err)
	}
	var branches []BranchInfo
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		branches = append(branches, BranchInfo{
			Name:           parts[0],
			UpstreamRemote: parts[1],
			UpstreamBranch: strings.TrimPrefix(parts[2], "refs/heads/"),
			UpstreamRef:    parts[3],
		})
	}
	return branches, nil
}

// Remote is a configured remote and its fetch URL.
type Remote struct {
	Name string
	URL  string
}

// Remotes lists configured remotes sorted by name.
func Remotes(ctx context.Context, dir string) ([]Remote, error) {
	res, err := Run(ctx, []string{"config", "--get-regexp", `^remote\..*\.url$`}, Options{Dir: dir})
	if err != nil {
		if res.ExitCode == 1 {
			return nil, nil
		}
		return nil, wrapStderr("config --get-regexp", res, err)
	}
	var remotes []Remote
	for _, line := range strings.Split(res.Stdout, "\n") {
		key, url, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "remote."), ".url")
		remotes = append(remotes, Remote{Name: name, URL: strings.TrimSpace(url)})
	}
	sort.Slice(remotes, func(i, j int) bool { return remotes[i].Name < remotes[j].Name })
	return remotes, nil
}
