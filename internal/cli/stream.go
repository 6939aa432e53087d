package cli

import (
	"flag"
	"fmt"

	"github.com/tasuku43/yb/internal/app/streamops"
)

func runStream(e *env, args []string) error {
	if len(args) == 0 || isHelpArg(args[0]) {
		printStreamHelp(e.out)
		return nil
	}
	switch args[0] {
	case "add":
		return runStreamAdd(e, args[1:])
	case "update":
		return runStreamUpdate(e, args[1:])
	case "list", "ls":
		return runStreamList(e, args[1:])
	default:
		return fmt.Errorf("unknown stream subcommand: %s", args[0])
	}
}

func runStreamAdd(e *env, args []string) error {
	fs := flag.NewFlagSet("stream add", flag.ContinueOnError)
	var name string
	fs.StringVar(&name, "name", streamops.DefaultName, "stream name")
	flags, positional := interleaved(fs, args)
	if help, err := parseFlags(fs, flags, e.out, printStreamHelp); help || err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: yb stream add <uri> [--name <name>]")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()

	r := e.renderer
	r.Section("Steps")
	r.Step(fmt.Sprintf("clone %s", positional[0]))
	s, err := streamops.Add(e.ctx, ws, name, positional[0])
	if err != nil {
		return err
	}
	specs, err := s.ListSpecs()
	if err != nil {
		return err
	}
	r.Blank()
	r.Section("Result")
	r.BulletWithDetail(fmt.Sprintf("stream %s", s.Name), relPath(ws.Root, s.Dir))
	renderTreeLines(r, specs, treeLineNormal)
	return nil
}

func runStreamUpdate(e *env, args []string) error {
	if len(args) == 1 && isHelpArg(args[0]) {
		printStreamHelp(e.out)
		return nil
	}
	if len(args) != 0 {
		return fmt.Errorf("usage: yb stream update")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()

	results, err := streamops.Update(e.ctx, ws)
	r := e.renderer
	r.Section("Result")
	if len(results) == 0 && err == nil {
		r.Bullet("no streams")
	}
	var problems []error
	for _, res := range results {
		switch {
		case res.Err != nil:
			r.BulletError(fmt.Sprintf("%s not updated", res.Stream))
			problems = append(problems, fmt.Errorf("%s: %w", res.Stream, res.Err))
		case res.Changed:
			r.BulletWithDetail(res.Stream, fmt.Sprintf("%s -> %s", shortSHA(res.Previous), shortSHA(res.Revision)))
		default:
			r.BulletWithDetail(res.Stream, fmt.Sprintf("up to date @ %s", shortSHA(res.Revision)))
		}
	}
	renderWarningsSection(r, "warnings", problems, true)
	return err
}

func runStreamList(e *env, args []string) error {
	if len(args) == 1 && isHelpArg(args[0]) {
		printStreamHelp(e.out)
		return nil
	}
	if len(args) != 0 {
		return fmt.Errorf("usage: yb stream list")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()
	if err := ws.RequireManaged(); err != nil {
		return err
	}

	streams, err := ws.Streams()
	if err != nil {
		return err
	}
	r := e.renderer
	r.Section("Streams")
	if len(streams) == 0 {
		r.Bullet("no streams")
	}
	var problems []error
	for _, s := range streams {
		revision, err := s.Revision(e.ctx)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", s.Name, err))
			r.BulletError(s.Name)
			continue
		}
		r.BulletWithDetail(s.Name, shortSHA(revision))
	}
	renderWarningsSection(r, "warnings", problems, true)
	return nil
}
