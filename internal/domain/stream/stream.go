// Package stream reads specs from a version-controlled stream checkout and
// keeps that checkout current with fast-forward-only updates.
package stream

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tasuku43/yb/internal/domain/spec"
)

const (
	ConfigFileName      = "stream.yaml"
	ContentsDirName     = "contents"
	KindGit             = "git"
	ConfigFormatVersion = 1
)

var (
	ErrSpecNotFound = errors.New("spec not found")
	// ErrDirty means the checkout has local edits or commits and will not be
	// updated without a human deciding what to keep.
	ErrDirty = errors.New("stream checkout has local modifications")
	// ErrUnavailable means the stream remote could not be reached.
	ErrUnavailable = errors.New("stream unavailable")
)

type Config struct {
	Kind          string `yaml:"kind"`
	FormatVersion int    `yaml:"format_version"`
}

type Stream struct {
	Name   string
	Dir    string
	Config Config
}

// Open loads the stream rooted at dir. The stream is named after dir.
func Open(dir string) (*Stream, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return nil, fmt.Errorf("read stream config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse stream config %s: %w", filepath.Join(dir, ConfigFileName), err)
	}
	if !strings.EqualFold(cfg.Kind, KindGit) {
		return nil, fmt.Errorf("stream %s: unsupported kind %q", filepath.Base(dir), cfg.Kind)
	}
	if cfg.FormatVersion != ConfigFormatVersion {
		return nil, fmt.Errorf("stream %s: unsupported format_version %d (supported: %d)", filepath.Base(dir), cfg.FormatVersion, ConfigFormatVersion)
	}
	return &Stream{Name: filepath.Base(dir), Dir: dir, Config: cfg}, nil
}

func (s *Stream) ContentsDir() string {
	return filepath.Join(s.Dir, ContentsDirName)
}

// Specs parses every spec document in the stream. A single bad document
// makes the whole stream broken.
func (s *Stream) Specs() (map[string]spec.Spec, error) {
	specs := map[string]spec.Spec{}
	origin := map[string]string{}
	root := s.ContentsDir()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isYAML(d.Name()) {
			return nil
		}
		parsed, err := spec.Load(path)
		if err != nil {
			return err
		}
		if prev, ok := origin[parsed.Name]; ok {
			return fmt.Errorf("spec %q defined in both %s and %s", parsed.Name, prev, path)
		}
		origin[parsed.Name] = path
		specs[parsed.Name] = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stream %s is broken: %w", s.Name, err)
	}
	return specs, nil
}

// ListSpecs returns the spec names in the stream, sorted.
func (s *Stream) ListSpecs() ([]string, error) {
	specs, err := s.Specs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Stream) Load(name string) (spec.Spec, error) {
	specs, err := s.Specs()
	if err != nil {
		return spec.Spec{}, err
	}
	found, ok := specs[name]
	if !ok {
		return spec.Spec{}, fmt.Errorf("%w: %s in stream %s", ErrSpecNotFound, name, s.Name)
	}
	return found, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
