package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set via -ldflags "-X github.com/tasuku43/yb/internal/cli.version=v0.1.0".
// Without them the module version recorded by go install is used.
var (
	version = ""
	commit  = ""
	date    = ""
)

func versionLine() string {
	v, c := strings.TrimSpace(version), strings.TrimSpace(commit)
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && c == "" {
				c = shortSHA(s.Value)
			}
		}
	}
	if v == "" {
		v = "dev"
	}
	line := "yb " + v
	if c != "" {
		line += " " + c
	}
	if d := strings.TrimSpace(date); d != "" {
		line += " " + d
	}
	return fmt.Sprintf("%s (%s %s/%s)", line, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, versionLine())
}
