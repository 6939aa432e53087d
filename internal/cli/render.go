package cli

import (
	"path/filepath"
	"strings"

	"github.com/tasuku43/yb/internal/ui"
)

type treeLineStyle int

const (
	treeLineNormal treeLineStyle = iota
	treeLineMuted
	treeLineWarn
	treeLineError
)

func renderTreeLines(r *ui.Renderer, lines []string, style treeLineStyle) {
	for i, line := range lines {
		prefix := ui.TreePrefix(i, len(lines))
		switch style {
		case treeLineMuted:
			r.TreeLineMuted(prefix, line)
		case treeLineWarn:
			r.TreeLineWarn(prefix, line)
		case treeLineError:
			r.TreeLineError(prefix, line)
		default:
			r.TreeLine(prefix, line)
		}
	}
}

func renderWarningsSection(r *ui.Renderer, title string, warnings []error, leadBlank bool) {
	if r == nil || len(warnings) == 0 {
		return
	}
	if leadBlank {
		r.Blank()
	}
	r.Section("Info")
	r.Bullet(title)
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lines = append(lines, compactError(w))
	}
	renderTreeLines(r, lines, treeLineWarn)
}

func renderSuggestions(r *ui.Renderer, lines []string) {
	var filtered []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			filtered = append(filtered, line)
		}
	}
	if len(filtered) == 0 {
		return
	}
	r.Blank()
	r.Section("Suggestion")
	for _, line := range filtered {
		r.Bullet(line)
	}
}

// relPath shows path relative to root when it lives below it.
func relPath(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// compactError joins a multi-line error onto one line.
func compactError(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(splitNonEmptyLines(err.Error()), " ")
}

func splitNonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
