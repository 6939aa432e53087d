package activate

import (
	"context"
	"fmt"
	"strings"

	"github.com/tasuku43/yb/internal/domain/workspace"
)

// Run makes name the active spec of ws. The spec must be provided by exactly
// one stream.
func Run(ctx context.Context, ws *workspace.Workspace, name string) (workspace.ActiveSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return workspace.ActiveSpec{}, fmt.Errorf("spec name is required")
	}
	if err := ws.RequireManaged(); err != nil {
		return workspace.ActiveSpec{}, err
	}
	return ws.SetActive(ctx, name)
}

// SpecEntry is one spec as listed by List.
type SpecEntry struct {
	Name   string
	Stream string
	Active bool
}

// List returns every spec across all streams. A broken stream is reported
// as an error for that stream only.
func List(ws *workspace.Workspace) ([]SpecEntry, []error, error) {
	streams, err := ws.Streams()
	if err != nil {
		return nil, nil, err
	}
	active, hasActive, err := ws.ActiveSpecName()
	if err != nil {
		return nil, nil, err
	}
	var entries []SpecEntry
	var problems []error
	for _, s := range streams {
		names, err := s.ListSpecs()
		if err != nil {
			problems = append(problems, err)
			continue
		}
		for _, name := range names {
			entries = append(entries, SpecEntry{
				Name:   name,
				Stream: s.Name,
				Active: hasActive && active.Name == name && active.Stream == s.Name,
			})
		}
	}
	return entries, problems, nil
}
