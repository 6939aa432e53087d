package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tasuku43/yb/internal/infra/debuglog"
	"github.com/tasuku43/yb/internal/infra/output"
)

var ErrPromptCanceled = errors.New("prompt canceled")

// PromptConfirmInline asks a y/n question on one line. Esc and ctrl+c return
// ErrPromptCanceled.
func PromptConfirmInline(label string, in io.Reader, out io.Writer, theme Theme, useColor bool) (bool, error) {
	debuglog.SetPrompt(label)
	defer debuglog.ClearPrompt()
	model := newConfirmInlineModel(label, theme, useColor)
	final, err := runProgram(model, in, out)
	if err != nil {
		return false, err
	}
	confirm := final.(confirmInlineModel)
	if confirm.err != nil {
		return false, confirm.err
	}
	return confirm.value, nil
}

func runProgram(model tea.Model, in io.Reader, out io.Writer) (tea.Model, error) {
	var opts []tea.ProgramOption
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	return tea.NewProgram(model, opts...).Run()
}

type confirmInlineModel struct {
	label    string
	theme    Theme
	useColor bool
	input    textinput.Model
	value    bool
	done     bool
	err      error
}

func newConfirmInlineModel(label string, theme Theme, useColor bool) confirmInlineModel {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "y/n"
	ti.Focus()
	if useColor {
		ti.PlaceholderStyle = theme.Muted
	}
	return confirmInlineModel{
		label:    label,
		theme:    theme,
		useColor: useColor,
		input:    ti,
	}
}

func (m confirmInlineModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m confirmInlineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.err = ErrPromptCanceled
			m.done = true
			return m, tea.Quit
		case tea.KeyEnter:
			switch strings.ToLower(strings.TrimSpace(m.input.Value())) {
			case "y", "yes":
				m.value = true
				m.done = true
				return m, tea.Quit
			case "n", "no":
				m.value = false
				m.done = true
				return m, tea.Quit
			default:
				m.input.SetValue("")
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmInlineModel) View() string {
	prefix := output.StepPrefix
	label := m.label
	if m.useColor {
		prefix = m.theme.Accent.Render(prefix)
		label = m.theme.Accent.Render(label)
	}
	if m.done {
		answer := "n"
		if m.value {
			answer = "y"
		}
		if m.err != nil {
			answer = "canceled"
		}
		return fmt.Sprintf("%s%s %s (y/n): %s\n", output.Indent, prefix, label, answer)
	}
	return fmt.Sprintf("%s%s %s (y/n): %s\n", output.Indent, prefix, label, m.input.View())
}
