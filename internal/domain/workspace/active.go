package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"

	"github.com/tasuku43/yb/internal/domain/spec"
	"github.com/tasuku43/yb/internal/domain/stream"
)

const ActiveSpecFileName = "active_spec.yaml"

// ActiveSpec is the persisted activation: which spec, from which stream, and
// a snapshot of the spec taken when it was last activated or refreshed. The
// snapshot lets status and sync run when the stream cannot be read.
type ActiveSpec struct {
	Name     string
	Stream   string
	Revision string
	Spec     spec.Spec
}

type activeSpecFile struct {
	Name     string    `yaml:"name"`
	Stream   string    `yaml:"stream"`
	Revision string    `yaml:"revision,omitempty"`
	Spec     yaml.Node `yaml:"spec"`
}

func (w *Workspace) activeSpecPath() string {
	return filepath.Join(w.StateDir(), ActiveSpecFileName)
}

// ActiveSpecName returns the persisted activation. ok is false when nothing
// has been activated yet.
func (w *Workspace) ActiveSpecName() (ActiveSpec, bool, error) {
	if err := w.RequireManaged(); err != nil {
		return ActiveSpec{}, false, err
	}
	data, err := os.ReadFile(w.activeSpecPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ActiveSpec{}, false, nil
		}
		return ActiveSpec{}, false, fmt.Errorf("read active spec: %w", err)
	}
	var file activeSpecFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ActiveSpec{}, false, fmt.Errorf("parse %s: %w", w.activeSpecPath(), err)
	}
	active := ActiveSpec{Name: file.Name, Stream: file.Stream, Revision: file.Revision}
	if file.Spec.Kind != 0 {
		raw, err := yaml.Marshal(&file.Spec)
		if err != nil {
			return ActiveSpec{}, false, err
		}
		snapshot, err := spec.Parse(raw)
		if err != nil {
			return ActiveSpec{}, false, fmt.Errorf("active spec snapshot: %w", err)
		}
		active.Spec = snapshot
	}
	if strings.TrimSpace(active.Name) == "" {
		return ActiveSpec{}, false, nil
	}
	return active, true, nil
}

// FindSpec locates name across all streams. A name served by more than one
// stream is ambiguous and rejected.
func (w *Workspace) FindSpec(name string) (*stream.Stream, spec.Spec, error) {
	streams, err := w.Streams()
	if err != nil {
		return nil, spec.Spec{}, err
	}
	var found *stream.Stream
	var foundSpec spec.Spec
	var owners []string
	for _, s := range streams {
		loaded, err := s.Load(name)
		if errors.Is(err, stream.ErrSpecNotFound) {
			continue
		}
		if err != nil {
			return nil, spec.Spec{}, err
		}
		owners = append(owners, s.Name)
		found, foundSpec = s, loaded
	}
	switch len(owners) {
	case 0:
		return nil, spec.Spec{}, fmt.Errorf("%w: %s", ErrSpecNotFound, name)
	case 1:
		return found, foundSpec, nil
	default:
		return nil, spec.Spec{}, fmt.Errorf("spec %s is defined by more than one stream: %s", name, strings.Join(owners, ", "))
	}
}

// SetActive activates name. It fails unless exactly one stream lists it.
func (w *Workspace) SetActive(ctx context.Context, name string) (ActiveSpec, error) {
	s, found, err := w.FindSpec(name)
	if err != nil {
		return ActiveSpec{}, err
	}
	revision, err := s.Revision(ctx)
	if err != nil {
		return ActiveSpec{}, err
	}
	active := ActiveSpec{Name: found.Name, Stream: s.Name, Revision: revision, Spec: found}
	if err := w.SaveActive(active); err != nil {
		return ActiveSpec{}, err
	}
	return active, nil
}

// SaveActive persists active atomically.
func (w *Workspace) SaveActive(active ActiveSpec) error {
	if err := w.RequireManaged(); err != nil {
		return err
	}
	file := activeSpecFile{
		Name:     active.Name,
		Stream:   active.Stream,
		Revision: active.Revision,
		Spec:     *active.Spec.Node(),
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshal active spec: %w", err)
	}
	return writeAtomic(w.activeSpecPath(), data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := atomicwriter.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
