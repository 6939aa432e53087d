// Package workspace models the root of a yb environment: its .yb control
// directory, configuration, streams and the persisted active spec.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tasuku43/yb/internal/domain/layerconf"
	"github.com/tasuku43/yb/internal/domain/stream"
	"github.com/tasuku43/yb/internal/infra/paths"
)

const (
	ConfigFileName      = "yb.yaml"
	StreamsDirName      = "streams"
	ConfigFormatVersion = 2
)

var (
	// ErrBareEnvironment is returned by operations that need a desired state
	// when no .yb directory was found.
	ErrBareEnvironment = errors.New("not a yb environment (no .yb directory found); run yb init")
	ErrNoActiveSpec    = errors.New("no active spec; run yb activate <spec>")
	ErrSpecNotFound    = errors.New("spec not found")
)

type Kind string

const (
	KindBare    Kind = "bare"
	KindManaged Kind = "managed"
)

// Config is .yb/yb.yaml. Relative paths are relative to the .yb directory.
type Config struct {
	FormatVersion       int    `yaml:"format_version"`
	BuildDirRelative    string `yaml:"build_dir_relative"`
	SourcesDirRelative  string `yaml:"sources_dir_relative,omitempty"`
	ReposDirRelative    string `yaml:"repos_dir_relative,omitempty"`
	PokyDirRelative     string `yaml:"poky_dir_relative,omitempty"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds,omitempty"`
	CloneTimeoutSeconds int    `yaml:"clone_timeout_seconds,omitempty"`
	Jobs                int    `yaml:"jobs,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		FormatVersion:      ConfigFormatVersion,
		BuildDirRelative:   filepath.Join("..", "build"),
		SourcesDirRelative: filepath.Join("..", "sources"),
	}
}

type Workspace struct {
	// Root is the directory holding .yb, or the start directory when bare.
	Root   string
	Kind   Kind
	Config Config
}

// Open discovers the workspace containing start. Without a .yb directory the
// result is a bare workspace rooted at start with sources/ and build/ below it.
func Open(start string) (*Workspace, error) {
	root, ok, err := paths.FindMarker(start)
	if err != nil {
		return nil, err
	}
	if !ok {
		abs, err := filepath.Abs(start)
		if err != nil {
			return nil, err
		}
		return &Workspace{Root: abs, Kind: KindBare, Config: DefaultConfig()}, nil
	}
	ws := &Workspace{Root: root, Kind: KindManaged}
	cfg, err := LoadConfig(ws.StateDir())
	if err != nil {
		return nil, err
	}
	ws.Config = cfg
	return ws, nil
}

// LoadConfig reads yb.yaml from stateDir, upgrading format version 1.
func LoadConfig(stateDir string) (Config, error) {
	path := filepath.Join(stateDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	switch cfg.FormatVersion {
	case 1:
		if cfg.SourcesDirRelative == "" {
			cfg.SourcesDirRelative = cfg.ReposDirRelative
		}
		cfg.ReposDirRelative = ""
		cfg.FormatVersion = ConfigFormatVersion
	case ConfigFormatVersion:
		if cfg.SourcesDirRelative == "" {
			cfg.SourcesDirRelative = cfg.ReposDirRelative
		}
	default:
		return Config{}, fmt.Errorf("%s: unsupported format_version %d (supported: %d)", path, cfg.FormatVersion, ConfigFormatVersion)
	}
	if cfg.BuildDirRelative == "" || cfg.SourcesDirRelative == "" {
		return Config{}, fmt.Errorf("%s: build_dir_relative and sources_dir_relative are required", path)
	}
	return cfg, nil
}

func SaveConfig(stateDir string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(filepath.Join(stateDir, ConfigFileName), data)
}

func (w *Workspace) IsManaged() bool {
	return w.Kind == KindManaged
}

// RequireManaged fails with ErrBareEnvironment for bare workspaces.
func (w *Workspace) RequireManaged() error {
	if !w.IsManaged() {
		return ErrBareEnvironment
	}
	return nil
}

func (w *Workspace) StateDir() string {
	return filepath.Join(w.Root, paths.MarkerDir)
}

func (w *Workspace) SourcesDir() string {
	if !w.IsManaged() {
		return filepath.Join(w.Root, "sources")
	}
	return w.resolve(w.Config.SourcesDirRelative)
}

func (w *Workspace) BuildDir() string {
	if !w.IsManaged() {
		return filepath.Join(w.Root, "build")
	}
	return w.resolve(w.Config.BuildDirRelative)
}

func (w *Workspace) LayerConfigPath() string {
	return layerconf.PathFor(w.BuildDir())
}

func (w *Workspace) StreamsDir() string {
	return filepath.Join(w.StateDir(), StreamsDirName)
}

func (w *Workspace) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(w.StateDir(), rel)
}

// FetchTimeout is YB_FETCH_TIMEOUT_SECONDS, then yb.yaml, then 60s.
func (w *Workspace) FetchTimeout() time.Duration {
	if v, ok := envInt("YB_FETCH_TIMEOUT_SECONDS"); ok {
		return time.Duration(v) * time.Second
	}
	if w.Config.FetchTimeoutSeconds > 0 {
		return time.Duration(w.Config.FetchTimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}

// CloneTimeout is YB_CLONE_TIMEOUT_SECONDS, then yb.yaml, then 30m.
func (w *Workspace) CloneTimeout() time.Duration {
	if v, ok := envInt("YB_CLONE_TIMEOUT_SECONDS"); ok {
		return time.Duration(v) * time.Second
	}
	if w.Config.CloneTimeoutSeconds > 0 {
		return time.Duration(w.Config.CloneTimeoutSeconds) * time.Second
	}
	return 30 * time.Minute
}

// Jobs is YB_JOBS, then yb.yaml, then 4.
func (w *Workspace) Jobs() int {
	if v, ok := envInt("YB_JOBS"); ok {
		return v
	}
	if w.Config.Jobs > 0 {
		return w.Config.Jobs
	}
	return 4
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Streams opens every stream under .yb/streams, sorted by name.
func (w *Workspace) Streams() ([]*stream.Stream, error) {
	if err := w.RequireManaged(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(w.StreamsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var streams []*stream.Stream
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		s, err := stream.Open(filepath.Join(w.StreamsDir(), entry.Name()))
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	sort.Slice(streams, func(i, j int) bool { return streams[i].Name < streams[j].Name })
	return streams, nil
}

// Stream opens one stream by name.
func (w *Workspace) Stream(name string) (*stream.Stream, error) {
	if err := w.RequireManaged(); err != nil {
		return nil, err
	}
	return stream.Open(filepath.Join(w.StreamsDir(), name))
}
