package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tasuku43/yb/internal/infra/paths"
)

// Create turns root into a managed workspace: a .yb directory holding a
// default yb.yaml and an empty streams directory. An existing .yb is an error.
func Create(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ws := &Workspace{Root: abs, Kind: KindManaged, Config: DefaultConfig()}
	if exists, err := paths.DirExists(ws.StateDir()); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%s already exists", ws.StateDir())
	}
	if err := os.MkdirAll(ws.StreamsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", ws.StreamsDir(), err)
	}
	if err := SaveConfig(ws.StateDir(), ws.Config); err != nil {
		return nil, err
	}
	return ws, nil
}
