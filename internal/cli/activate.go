package cli

import (
	"fmt"

	"github.com/tasuku43/yb/internal/app/activate"
)

func runActivate(e *env, args []string) error {
	if len(args) == 1 && isHelpArg(args[0]) {
		printActivateHelp(e.out)
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: yb activate <spec>")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()

	active, err := activate.Run(e.ctx, ws, args[0])
	if err != nil {
		return err
	}
	r := e.renderer
	r.Section("Result")
	r.BulletWithDetail(fmt.Sprintf("active spec: %s", active.Name), fmt.Sprintf("stream %s @ %s", active.Stream, shortSHA(active.Revision)))
	if e.useColor {
		renderSuggestions(r, []string{"yb sync", "yb sync --apply"})
	}
	return nil
}

func runList(e *env, args []string) error {
	if len(args) == 1 && isHelpArg(args[0]) {
		printListHelp(e.out)
		return nil
	}
	if len(args) != 0 {
		return fmt.Errorf("usage: yb list")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()
	if err := ws.RequireManaged(); err != nil {
		return err
	}

	entries, problems, err := activate.List(ws)
	if err != nil {
		return err
	}
	r := e.renderer
	r.Section("Specs")
	if len(entries) == 0 {
		r.Bullet("no specs")
	}
	for _, entry := range entries {
		name := entry.Name
		if entry.Active {
			name += " (active)"
		}
		r.BulletWithDetail(name, entry.Stream)
	}
	renderWarningsSection(r, "warnings", problems, true)
	return nil
}
