package cli

import (
	"fmt"
	"io"

	"github.com/tasuku43/yb/internal/ui"
)

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func printGlobalHelp(w io.Writer) {
	theme, useColor := helpTheme(w)
	fmt.Fprintln(w, "Usage: yb <command> [flags] [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, helpSectionTitle(theme, useColor, "Commands:"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "init [<dir>]", "create a managed yocto workspace"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "status [--no-fetch]", "show repository and layer state"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "sync [<spec>] [--apply] [--force]", "reconcile the workspace with the active spec"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "activate <spec>", "make a spec the active one"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "list", "list specs offered by the streams"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "stream <subcommand>", "stream commands (add/update/list)"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "run <command> [args]", "run a command in every repository"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "version", "print yb version"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "help [command]", "show help for a command"))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, helpSectionTitle(theme, useColor, "Global flags:"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--root <path>", "start workspace discovery at path (env: YB_ROOT)"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--no-prompt", "disable interactive prompt"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--debug", "write debug logs to .yb/logs (env: YB_DEBUG)"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--verbose, -v", "show git commands (env: YB_VERBOSE)"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--version", "print version"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--help, -h", "show help"))
}

func printCommandHelp(cmd string, w io.Writer) bool {
	switch cmd {
	case "init":
		printInitHelp(w)
	case "status", "st":
		printStatusHelp(w)
	case "sync":
		printSyncHelp(w)
	case "activate":
		printActivateHelp(w)
	case "list", "ls":
		printListHelp(w)
	case "stream":
		printStreamHelp(w)
	case "run":
		printRunHelp(w)
	case "version":
		printVersion(w)
	default:
		return false
	}
	return true
}

func printInitHelp(w io.Writer) {
	theme, useColor := helpTheme(w)
	fmt.Fprintln(w, "Usage: yb init [<dir>] [--default-stream <uri>] [--default-spec <name>]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Creates <dir>/yocto with sources, build and .yb. <dir> defaults to the current directory.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, helpSectionTitle(theme, useColor, "Flags:"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--default-stream", "clone this stream as \"default\""))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--default-spec", "activate this spec from the default stream"))
}

func printStatusHelp(w io.Writer) {
	theme, useColor := helpTheme(w)
	fmt.Fprintln(w, "Usage: yb status [--no-fetch]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, helpSectionTitle(theme, useColor, "Flags:"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--no-fetch", "use the last fetched remote state"))
}

func printSyncHelp(w io.Writer) {
	theme, useColor := helpTheme(w)
	fmt.Fprintln(w, "Usage: yb sync [<spec>] [--apply] [--force] [--no-fetch] [--no-prompt]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Without --apply the plan is validated and printed and nothing changes.")
	fmt.Fprintln(w, "When <spec> is given it is activated first.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, helpSectionTitle(theme, useColor, "Flags:"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--apply, -a", "perform the plan"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--force, -f", "allow resets of dirty or diverged repositories"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--no-fetch", "skip repository fetches"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--no-prompt", "apply without confirmation"))
}

func printActivateHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: yb activate <spec>")
}

func printListHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: yb list")
}

func printStreamHelp(w io.Writer) {
	theme, useColor := helpTheme(w)
	fmt.Fprintln(w, "Usage: yb stream <subcommand>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, helpSectionTitle(theme, useColor, "Subcommands:"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "add <uri> [--name <name>]", "clone a stream (name defaults to \"default\")"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "update", "fast-forward every stream"))
	fmt.Fprintln(w, helpCommand(theme, useColor, "list", "list streams and their revisions"))
}

func printRunHelp(w io.Writer) {
	theme, useColor := helpTheme(w)
	fmt.Fprintln(w, "Usage: yb run [--no-return-codes] [--] <command> [args...]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Runs <command> in each git repository under the sources directory, in name order.")
	fmt.Fprintln(w, "Flags after <command> are passed to it.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, helpSectionTitle(theme, useColor, "Flags:"))
	fmt.Fprintln(w, helpFlag(theme, useColor, "--no-return-codes, -n", "do not print return codes"))
}

func helpTheme(w io.Writer) (ui.Theme, bool) {
	return ui.DefaultTheme(), isTerminal(w)
}

func helpSectionTitle(theme ui.Theme, useColor bool, title string) string {
	if !useColor {
		return title
	}
	return theme.SectionTitle.Render(title)
}

func helpCommand(theme ui.Theme, useColor bool, name, description string) string {
	if useColor {
		return fmt.Sprintf("  %s  %s", theme.Accent.Render(name), description)
	}
	return fmt.Sprintf("  %-36s %s", name, description)
}

func helpFlag(theme ui.Theme, useColor bool, flag, description string) string {
	if useColor {
		return fmt.Sprintf("  %s  %s", theme.Accent.Render(flag), description)
	}
	return fmt.Sprintf("  %-18s %s", flag, description)
}
