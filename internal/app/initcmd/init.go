package initcmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tasuku43/yb/internal/app/activate"
	"github.com/tasuku43/yb/internal/app/streamops"
	"github.com/tasuku43/yb/internal/domain/workspace"
	"github.com/tasuku43/yb/internal/infra/paths"
)

// Layout names under the directory init runs in.
const (
	RootName    = "yocto"
	SourcesName = "sources"
	BuildName   = "build"
)

type Options struct {
	// DefaultStream is cloned as the "default" stream when set.
	DefaultStream string
	// DefaultSpec is activated after the default stream is added.
	DefaultSpec string
}

type Result struct {
	RootDir     string
	CreatedDirs []string
	SkippedDirs []string
	Stream      string
	Active      string
}

// Run creates <parent>/yocto with sources, build and a managed .yb directory.
func Run(ctx context.Context, parent string, opts Options) (Result, error) {
	if parent == "" {
		return Result{}, fmt.Errorf("parent directory is required")
	}
	if opts.DefaultSpec != "" && opts.DefaultStream == "" {
		return Result{}, fmt.Errorf("--default-spec requires --default-stream")
	}
	rootDir := filepath.Join(parent, RootName)
	result := Result{RootDir: rootDir}

	for _, dir := range []string{rootDir, filepath.Join(rootDir, SourcesName), filepath.Join(rootDir, BuildName)} {
		if exists, err := paths.DirExists(dir); err != nil {
			return Result{}, err
		} else if exists {
			result.SkippedDirs = append(result.SkippedDirs, dir)
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create dir: %w", err)
		}
		result.CreatedDirs = append(result.CreatedDirs, dir)
	}

	ws, err := workspace.Create(rootDir)
	if err != nil {
		return Result{}, err
	}
	result.CreatedDirs = append(result.CreatedDirs, ws.StateDir())

	if opts.DefaultStream == "" {
		return result, nil
	}
	s, err := streamops.Add(ctx, ws, streamops.DefaultName, opts.DefaultStream)
	if err != nil {
		return result, err
	}
	result.Stream = s.Name
	if opts.DefaultSpec == "" {
		return result, nil
	}
	active, err := activate.Run(ctx, ws, opts.DefaultSpec)
	if err != nil {
		return result, err
	}
	result.Active = active.Name
	return result, nil
}
