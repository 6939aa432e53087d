package gitcmd

import "strings"

// NormalizeURL folds the cosmetic differences between two spellings of the
// same remote: trailing slashes, a .git suffix, and scp-style ssh.
func NormalizeURL(url string) string {
	u := strings.TrimSpace(url)
	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, ".git")
	if !strings.Contains(u, "://") {
		if host, path, ok := strings.Cut(u, ":"); ok && strings.Contains(host, "@") && !strings.HasPrefix(path, "/") {
			u = "ssh://" + host + "/" + path
		}
	}
	return u
}

// SameURL reports whether a and b name the same remote repository.
func SameURL(a, b string) bool {
	return NormalizeURL(a) == NormalizeURL(b)
}
