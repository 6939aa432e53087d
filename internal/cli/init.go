package cli

import (
	"flag"
	"fmt"

	"github.com/tasuku43/yb/internal/app/initcmd"
)

func runInit(e *env, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var defaultStream string
	var defaultSpec string
	fs.StringVar(&defaultStream, "default-stream", "", "clone this stream as the default one")
	fs.StringVar(&defaultSpec, "default-spec", "", "activate this spec")
	flags, positional := interleaved(fs, args)
	if help, err := parseFlags(fs, flags, e.out, printInitHelp); help || err != nil {
		return err
	}
	if len(positional) > 1 {
		return fmt.Errorf("usage: yb init [<dir>] [--default-stream <uri>] [--default-spec <name>]")
	}
	parent := e.start
	if len(positional) == 1 {
		parent = positional[0]
	}

	result, err := initcmd.Run(e.ctx, parent, initcmd.Options{
		DefaultStream: defaultStream,
		DefaultSpec:   defaultSpec,
	})
	writeInitText(e, result)
	return err
}

func writeInitText(e *env, result initcmd.Result) {
	r := e.renderer
	if result.RootDir == "" {
		return
	}
	if len(result.SkippedDirs) > 0 {
		r.Section("Info")
		r.Bullet("already exists")
		renderTreeLines(r, result.SkippedDirs, treeLineNormal)
		r.Blank()
	}

	r.Section("Steps")
	for _, dir := range result.CreatedDirs {
		r.Bullet(fmt.Sprintf("create dir %s", dir))
	}
	if result.Stream != "" {
		r.Bullet(fmt.Sprintf("add stream %s", result.Stream))
	}
	if result.Active != "" {
		r.Bullet(fmt.Sprintf("activate %s", result.Active))
	}

	r.Blank()
	r.Section("Result")
	r.Bullet(fmt.Sprintf("root: %s", result.RootDir))

	var suggestions []string
	switch {
	case result.Stream == "":
		suggestions = append(suggestions, "yb stream add <uri>")
	case result.Active == "":
		suggestions = append(suggestions, "yb list", "yb activate <spec>")
	default:
		suggestions = append(suggestions, "yb sync --apply")
	}
	if e.useColor {
		renderSuggestions(r, suggestions)
	}
}
