package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/tasuku43/yb/internal/infra/debuglog"
	"github.com/tasuku43/yb/internal/infra/output"
)

const (
	TreeBranch = "├─ "
	TreeLast   = "└─ "
)

type Renderer struct {
	out       io.Writer
	theme     Theme
	useColor  bool
	wrapWidth int
}

func NewRenderer(out io.Writer, theme Theme, useColor bool) *Renderer {
	return &Renderer{
		out:       out,
		theme:     theme,
		useColor:  useColor,
		wrapWidth: currentWrapWidth(),
	}
}

func (r *Renderer) Theme() Theme {
	return r.theme
}

func (r *Renderer) UseColor() bool {
	return r.useColor
}

func (r *Renderer) Header(text string) {
	r.writeLine(r.style(text, r.theme.Header))
}

func (r *Renderer) Blank() {
	fmt.Fprintln(r.out)
}

func (r *Renderer) Section(title string) {
	switch phase := strings.ToLower(strings.TrimSpace(title)); phase {
	case "info", "plan", "steps", "result":
		debuglog.SetPhase(phase)
	default:
		debuglog.SetPhase("none")
	}
	r.writeLine(r.style(title, r.theme.SectionTitle))
}

func (r *Renderer) Step(text string) {
	r.bullet(text)
}

func (r *Renderer) StepLog(text string) {
	r.writeWithPrefix(output.Indent+output.Indent+output.LogConnector+" ", r.style(text, r.theme.Muted))
}

func (r *Renderer) StepLogOutput(text string) {
	r.writeWithPrefix(output.LogOutputPrefix(), r.style(text, r.theme.Muted))
}

func (r *Renderer) Bullet(text string) {
	r.bullet(text)
}

func (r *Renderer) BulletSuccess(text string) {
	prefix := output.StepPrefix + " "
	if r.useColor {
		prefix = r.theme.Success.Render(prefix)
		text = r.theme.Success.Render(text)
	}
	r.writeWithPrefix(output.Indent+prefix, text)
}

// BulletWithDetail renders "id detail" with the detail muted.
func (r *Renderer) BulletWithDetail(id, detail string) {
	line := id
	if d := strings.TrimSpace(detail); d != "" {
		line += " " + r.style(d, r.theme.Muted)
	}
	r.bullet(line)
}

func (r *Renderer) BulletError(text string) {
	prefix := output.StepPrefix + " "
	if r.useColor {
		prefix = r.theme.Error.Render(prefix)
		text = r.theme.Error.Render(text)
	}
	r.writeWithPrefix(output.Indent+prefix, text)
}

func (r *Renderer) Warn(text string) {
	r.writeWithPrefix(output.Indent, r.style(text, r.theme.Warn))
}

func (r *Renderer) TreeLine(prefix, text string) {
	r.writeWithPrefix(output.Indent+output.Indent+prefix, text)
}

func (r *Renderer) TreeLineMuted(prefix, text string) {
	fullPrefix := output.Indent + output.Indent + prefix
	r.writeWithPrefix(r.style(fullPrefix, r.theme.Muted), r.style(text, r.theme.Muted))
}

func (r *Renderer) TreeLineWarn(prefix, text string) {
	fullPrefix := output.Indent + output.Indent + prefix
	r.writeWithPrefix(r.style(fullPrefix, r.theme.Warn), r.style(text, r.theme.Warn))
}

func (r *Renderer) TreeLineError(prefix, text string) {
	fullPrefix := output.Indent + output.Indent + prefix
	r.writeWithPrefix(r.style(fullPrefix, r.theme.Error), r.style(text, r.theme.Error))
}

// Log and LogOutput make the renderer an output.StepLogger.
func (r *Renderer) Log(text string) {
	r.StepLog(text)
}

func (r *Renderer) LogOutput(text string) {
	r.StepLogOutput(text)
}

// TreePrefix returns the connector for item i of n.
func TreePrefix(i, n int) string {
	if i == n-1 {
		return TreeLast
	}
	return TreeBranch
}

func (r *Renderer) style(text string, style lipgloss.Style) string {
	if !r.useColor {
		return text
	}
	return style.Render(text)
}

func (r *Renderer) bullet(text string) {
	prefix := output.StepPrefix + " "
	if r.useColor {
		prefix = r.theme.Muted.Render(prefix)
	}
	r.writeWithPrefix(output.Indent+prefix, text)
}

func (r *Renderer) writeWithPrefix(prefix, text string) {
	if r.wrapWidth <= 0 {
		r.writeLine(prefix + text)
		return
	}
	prefixWidth := lipgloss.Width(prefix)
	available := r.wrapWidth - prefixWidth
	if available <= 0 {
		r.writeLine(prefix + text)
		return
	}
	wrapped := ansi.Wrap(text, available, "")
	lines := strings.Split(wrapped, "\n")
	r.writeLine(prefix + lines[0])
	padding := strings.Repeat(" ", prefixWidth)
	for _, line := range lines[1:] {
		r.writeLine(padding + line)
	}
}

func (r *Renderer) writeLine(text string) {
	fmt.Fprintln(r.out, strings.TrimRight(text, "\n"))
}
