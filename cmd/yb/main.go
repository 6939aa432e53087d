package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tasuku43/yb/internal/cli"
	"github.com/tasuku43/yb/internal/ui"
)

func main() {
	err := cli.Run()
	if err == nil {
		return
	}
	// errors.Join results carry one failure per repository.
	errs := []error{err}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs = joined.Unwrap()
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		renderer := ui.NewRenderer(os.Stderr, ui.DefaultTheme(), true)
		renderer.Blank()
		for _, e := range errs {
			renderer.BulletError(fmt.Sprintf("error: %s", e))
		}
	} else {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "yb: %s\n", e)
		}
	}
	os.Exit(1)
}
