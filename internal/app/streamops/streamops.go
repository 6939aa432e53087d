package streamops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tasuku43/yb/internal/app/syncplan"
	"github.com/tasuku43/yb/internal/domain/stream"
	"github.com/tasuku43/yb/internal/domain/workspace"
)

// DefaultName names the first stream when the caller gives none.
const DefaultName = "default"

// Add clones uri as a new stream of ws.
func Add(ctx context.Context, ws *workspace.Workspace, name, uri string) (*stream.Stream, error) {
	if err := ws.RequireManaged(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("stream URI is required")
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return stream.Add(ctx, ws.StreamsDir(), name, uri, ws.CloneTimeout())
}

type UpdateResult struct {
	Stream string
	stream.RefreshResult
	Err error
}

// Update refreshes every stream. When the stream holding the active spec
// moved, the active spec snapshot follows it.
func Update(ctx context.Context, ws *workspace.Workspace) ([]UpdateResult, error) {
	streams, err := ws.Streams()
	if err != nil {
		return nil, err
	}
	active, hasActive, err := ws.ActiveSpecName()
	if err != nil {
		return nil, err
	}
	var results []UpdateResult
	for _, s := range streams {
		res, err := s.Refresh(ctx, ws.FetchTimeout())
		results = append(results, UpdateResult{Stream: s.Name, RefreshResult: res, Err: err})
		if err != nil && !errors.Is(err, stream.ErrDirty) && !errors.Is(err, stream.ErrUnavailable) {
			return results, err
		}
		if hasActive && active.Stream == s.Name && res.Changed {
			loaded, _, _, err := syncplan.LoadActive(ctx, ws, active, false)
			if err != nil {
				return results, err
			}
			if syncplan.SnapshotChanged(active, loaded) {
				if err := ws.SaveActive(loaded); err != nil {
					return results, err
				}
			}
		}
	}
	return results, nil
}
