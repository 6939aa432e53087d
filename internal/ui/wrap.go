package ui

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

var wrapWidth atomic.Int64

// SetWrapWidth sets the width renderers created afterwards wrap at. Zero or
// less leaves the current value.
func SetWrapWidth(width int) {
	if width <= 0 {
		return
	}
	wrapWidth.Store(int64(width))
}

// WrapWidthFromEnv reads COLUMNS, which most shells export for interactive
// sessions.
func WrapWidthFromEnv() int {
	value := strings.TrimSpace(os.Getenv("COLUMNS"))
	if value == "" {
		return 0
	}
	width, err := strconv.Atoi(value)
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

func currentWrapWidth() int {
	return int(wrapWidth.Load())
}
