package repostate

import (
	"strconv"
	"strings"
)

type porcelainStatus struct {
	oid       string
	branch    string
	detached  bool
	upstream  string
	hasAB     bool
	ahead     int
	behind    int
	dirty     bool
	untracked int
	staged    int
	unstaged  int
	unmerged  int
}

// parsePorcelainV2 reads `git status --porcelain=v2 -b`. Ignored files are not
// listed by that command, so they never mark the tree dirty.
func parsePorcelainV2(output string) porcelainStatus {
	var st porcelainStatus
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			fields := strings.Fields(line)
			if len(fields) < 3 {
				continue
			}
			switch fields[1] {
			case "branch.oid":
				if fields[2] != "(initial)" {
					st.oid = fields[2]
				}
			case "branch.head":
				if fields[2] == "(detached)" {
					st.detached = true
				} else if fields[2] != "(unknown)" {
					st.branch = fields[2]
				}
			case "branch.upstream":
				st.upstream = fields[2]
			case "branch.ab":
				st.hasAB = true
				for _, field := range fields[2:] {
					if strings.HasPrefix(field, "+") {
						st.ahead = parseCount(field[1:])
					}
					if strings.HasPrefix(field, "-") {
						st.behind = parseCount(field[1:])
					}
				}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "? "):
			st.untracked++
		case strings.HasPrefix(line, "u "):
			st.unmerged++
		case strings.HasPrefix(line, "1 "), strings.HasPrefix(line, "2 "):
			fields := strings.Fields(line)
			if len(fields) >= 2 && len(fields[1]) >= 2 {
				xy := fields[1]
				if xy[0] != '.' {
					st.staged++
				}
				if xy[1] != '.' {
					st.unstaged++
				}
			}
		case strings.HasPrefix(line, "! "):
			continue
		}
		st.dirty = true
	}
	return st
}

func shortSHA(oid string) string {
	if len(oid) <= 7 {
		return oid
	}
	return oid[:7]
}

func parseCount(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
