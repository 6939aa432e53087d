package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/tasuku43/yb/internal/app/runcmd"
)

func runRun(e *env, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var noCodes bool
	fs.BoolVar(&noCodes, "no-return-codes", false, "do not print return codes")
	fs.BoolVar(&noCodes, "n", false, "do not print return codes")
	if help, err := parseFlags(fs, args, e.out, printRunHelp); help || err != nil {
		return err
	}
	argv := fs.Args()
	if len(argv) == 0 {
		return fmt.Errorf("usage: yb run [--no-return-codes] [--] <command> [args...]")
	}
	ws, closeLog, err := e.openWorkspace()
	if err != nil {
		return err
	}
	defer closeLog()

	r := e.renderer
	count := 0
	results, err := runcmd.Run(e.ctx, ws, argv, runcmd.Options{
		Stdout: e.out,
		Stderr: e.out,
		Before: func(t runcmd.Target) {
			if count > 0 {
				r.Blank()
			}
			count++
			r.BulletWithDetail(t.Name, relPath(ws.Root, t.Path))
		},
		After: func(res runcmd.Result) {
			if noCodes {
				return
			}
			switch {
			case res.Err != nil:
				renderTreeLines(r, []string{compactError(res.Err)}, treeLineError)
			case res.ExitCode < 0:
				renderTreeLines(r, []string{"return code: terminated by signal"}, treeLineWarn)
			case res.ExitCode > 0:
				renderTreeLines(r, []string{fmt.Sprintf("return code: %d", res.ExitCode)}, treeLineError)
			default:
				renderTreeLines(r, []string{"return code: 0"}, treeLineMuted)
			}
		},
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		r.Bullet(fmt.Sprintf("no repositories under %s", relPath(ws.Root, ws.SourcesDir())))
		return nil
	}
	failed := runcmd.Failures(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, res := range failed {
		names = append(names, res.Name)
	}
	return fmt.Errorf("%s failed in %d of %d repositories: %s", argv[0], len(failed), len(results), strings.Join(names, ", "))
}
