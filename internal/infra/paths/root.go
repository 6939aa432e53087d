package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// MarkerDir is the hidden directory that marks a managed workspace root.
const MarkerDir = ".yb"

// ResolveStart returns the directory workspace discovery starts from:
// the flag value, then YB_ROOT, then the working directory.
func ResolveStart(flagRoot string) (string, error) {
	if flagRoot != "" {
		return normalizeRoot(flagRoot)
	}
	if envRoot := os.Getenv("YB_ROOT"); envRoot != "" {
		return normalizeRoot(envRoot)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(wd), nil
}

// FindMarker walks up from start looking for MarkerDir. ok is false when no
// ancestor carries it.
func FindMarker(start string) (root string, ok bool, err error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false, err
	}
	for {
		exists, err := DirExists(filepath.Join(dir, MarkerDir))
		if err != nil {
			return "", false, err
		}
		if exists {
			return dir, true, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

func normalizeRoot(path string) (string, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
