package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tasuku43/yb/internal/domain/workspace"
	"github.com/tasuku43/yb/internal/infra/debuglog"
	"github.com/tasuku43/yb/internal/infra/gitcmd"
	"github.com/tasuku43/yb/internal/infra/output"
	"github.com/tasuku43/yb/internal/infra/paths"
	"github.com/tasuku43/yb/internal/ui"
)

// Run is the CLI entrypoint.
func Run() error {
	return run(context.Background(), os.Args[1:], os.Stdin, os.Stdout)
}

// env carries what every command needs besides its own arguments.
type env struct {
	ctx      context.Context
	start    string
	in       io.Reader
	out      io.Writer
	renderer *ui.Renderer
	useColor bool
	// interactive is true when both ends of the terminal are attached.
	interactive bool
	noPrompt    bool
	debug       bool
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("yb", flag.ContinueOnError)
	var rootFlag string
	var noPrompt bool
	var helpFlag bool
	var versionFlag bool
	debugFlag := envBool("YB_DEBUG")
	verboseFlag := envBool("YB_VERBOSE")
	fs.StringVar(&rootFlag, "root", "", "start workspace discovery at path")
	fs.BoolVar(&noPrompt, "no-prompt", false, "disable interactive prompt")
	fs.BoolVar(&debugFlag, "debug", debugFlag, "write debug logs to file")
	fs.BoolVar(&verboseFlag, "verbose", verboseFlag, "show git commands")
	fs.BoolVar(&verboseFlag, "v", verboseFlag, "show git commands")
	fs.BoolVar(&versionFlag, "version", false, "print version")
	fs.BoolVar(&helpFlag, "help", false, "show help")
	fs.BoolVar(&helpFlag, "h", false, "show help")
	fs.SetOutput(out)
	fs.Usage = func() {
		printGlobalHelp(out)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	gitcmd.SetVerbose(verboseFlag)

	rest := fs.Args()
	if versionFlag {
		printVersion(out)
		return nil
	}
	if helpFlag {
		if len(rest) > 0 && printCommandHelp(rest[0], out) {
			return nil
		}
		printGlobalHelp(out)
		return nil
	}
	if len(rest) == 0 {
		printGlobalHelp(out)
		return nil
	}
	if rest[0] == "help" {
		if len(rest) > 1 && printCommandHelp(rest[1], out) {
			return nil
		}
		printGlobalHelp(out)
		return nil
	}

	start, err := paths.ResolveStart(rootFlag)
	if err != nil {
		return err
	}
	e := newEnv(ctx, start, in, out)
	e.noPrompt = noPrompt
	e.debug = debugFlag
	output.SetStepLogger(e.renderer)
	defer output.SetStepLogger(nil)

	switch rest[0] {
	case "init":
		return runInit(e, rest[1:])
	case "status", "st":
		return runStatus(e, rest[1:])
	case "sync":
		return runSync(e, rest[1:])
	case "activate":
		return runActivate(e, rest[1:])
	case "list", "ls":
		return runList(e, rest[1:])
	case "stream":
		return runStream(e, rest[1:])
	case "run":
		return runRun(e, rest[1:])
	case "version":
		printVersion(out)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", rest[0])
	}
}

func newEnv(ctx context.Context, start string, in io.Reader, out io.Writer) *env {
	useColor := isTerminal(out)
	ui.SetWrapWidth(ui.WrapWidthFromEnv())
	return &env{
		ctx:         ctx,
		start:       start,
		in:          in,
		out:         out,
		renderer:    ui.NewRenderer(out, ui.DefaultTheme(), useColor),
		useColor:    useColor,
		interactive: useColor && isTerminal(in),
	}
}

func isTerminal(v any) bool {
	file, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// openWorkspace finds the workspace and starts the debug log when asked.
// The returned func closes the log.
func (e *env) openWorkspace() (*workspace.Workspace, func(), error) {
	ws, err := workspace.Open(e.start)
	if err != nil {
		return nil, func() {}, err
	}
	return ws, e.enableDebug(ws), nil
}

func (e *env) enableDebug(ws *workspace.Workspace) func() {
	if !e.debug {
		return func() {}
	}
	if !ws.IsManaged() {
		e.renderer.Warn("debug log needs a managed workspace (run yb init)")
		return func() {}
	}
	if err := debuglog.Enable(ws.StateDir()); err != nil {
		e.renderer.Warn(fmt.Sprintf("debug log disabled: %v", err))
		return func() {}
	}
	debuglog.Logf("command start=%s", e.start)
	return func() {
		_ = debuglog.Close()
	}
}

// parseFlags parses a subcommand's flags. help is true when -h was given and
// help text has been printed.
func parseFlags(fs *flag.FlagSet, args []string, out io.Writer, usage func(io.Writer)) (help bool, err error) {
	var helpFlag bool
	fs.SetOutput(out)
	fs.Usage = func() {
		usage(out)
	}
	fs.BoolVar(&helpFlag, "help", false, "show help")
	fs.BoolVar(&helpFlag, "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	if helpFlag {
		usage(out)
		return true, nil
	}
	return false, nil
}

// interleaved lets flags follow positional arguments, as in
// "yb sync honister --apply".
func interleaved(fs *flag.FlagSet, args []string) ([]string, []string) {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return flags, positional
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func envBool(key string) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return false
	}
	switch strings.ToLower(val) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
