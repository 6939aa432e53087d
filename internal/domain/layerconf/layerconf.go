// Package layerconf reads and rewrites the BBLAYERS variable of a
// bblayers.conf file. Bytes outside the managed value are never touched.
package layerconf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/moby/sys/atomicwriter"
)

const (
	// Variable is the layer-list variable managed in bblayers.conf.
	Variable = "BBLAYERS"
	FileName = "bblayers.conf"
)

// Preamble is written ahead of BBLAYERS when the file is created.
const Preamble = `# POKY_BBLAYERS_CONF_VERSION is increased each time build/conf/bblayers.conf
# changes incompatibly
POKY_BBLAYERS_CONF_VERSION = "2"

BBPATH = "${TOPDIR}"
BBFILES ??= ""
`

// PathFor returns the bblayers.conf location for a build directory.
func PathFor(buildDir string) string {
	return filepath.Join(buildDir, "conf", FileName)
}

type Config struct {
	Path   string
	Exists bool
	// Layers are the entries of the managed assignment, spelled as in the file.
	Layers []string
	// Appended holds entries added by += style assignments after the managed
	// one. They count as registered, and stale ones are dropped on write.
	Appended []string

	data    []byte
	value   span
	appends []appendSpan
	topDir  string
}

type appendSpan struct {
	value   span
	entries []string
}

type span struct {
	found     bool
	start     int
	end       int
	quote     byte
	multiline bool
	indent    string
}

// Read parses path. A missing file yields an empty Config with Exists false.
func Read(path string) (Config, error) {
	cfg := Config{Path: path, topDir: filepath.Dir(filepath.Dir(path))}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	cfg.Exists = true
	cfg.data = data
	assignments, err := scan(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	for _, a := range assignments {
		entries := splitValue(string(data[a.value.start:a.value.end]))
		if a.appends {
			cfg.appends = append(cfg.appends, appendSpan{value: a.value, entries: entries})
			continue
		}
		// The last plain assignment wins, as it does for bitbake, and drops
		// whatever was appended before it.
		cfg.value = a.value
		cfg.Layers = entries
		cfg.appends = nil
	}
	for _, a := range cfg.appends {
		cfg.Appended = append(cfg.Appended, a.entries...)
	}
	return cfg, nil
}

// Entries returns every registered entry in file order, appended ones last.
func (c Config) Entries() []string {
	entries := make([]string, 0, len(c.Layers)+len(c.Appended))
	entries = append(entries, c.Layers...)
	return append(entries, c.Appended...)
}

// Normalize maps a layer entry to a comparable absolute path.
func (c Config) Normalize(entry string) string {
	return Normalize(entry, c.topDir)
}

// Normalize expands ${TOPDIR} and cleans the path lexically.
func Normalize(entry, topDir string) string {
	e := strings.TrimSpace(entry)
	if topDir != "" {
		e = strings.ReplaceAll(e, "${TOPDIR}", topDir)
	}
	if strings.Contains(e, "${") {
		return e
	}
	return filepath.Clean(e)
}

// Contains reports whether path is registered, by the managed assignment or
// by an append.
func (c Config) Contains(path string) bool {
	return c.set().Contains(c.Normalize(path))
}

func (c Config) set() mapset.Set[string] {
	s := mapset.NewThreadUnsafeSet[string]()
	for _, layer := range c.Entries() {
		s.Add(c.Normalize(layer))
	}
	return s
}

// Diff compares desired layer paths against cfg, ignoring order. toAdd keeps
// desired order and toRemove keeps file order.
func Diff(desired []string, cfg Config) (toAdd, toRemove []string) {
	actual := cfg.set()
	want := mapset.NewThreadUnsafeSet[string]()
	for _, p := range desired {
		key := cfg.Normalize(p)
		if want.Contains(key) {
			continue
		}
		want.Add(key)
		if !actual.Contains(key) {
			toAdd = append(toAdd, p)
		}
	}
	removed := mapset.NewThreadUnsafeSet[string]()
	for _, layer := range cfg.Entries() {
		key := cfg.Normalize(layer)
		if want.Contains(key) || removed.Contains(key) {
			continue
		}
		removed.Add(key)
		toRemove = append(toRemove, layer)
	}
	return toAdd, toRemove
}

// Render returns the file content with the registered entries replaced by
// layers. Entries already in the file keep their spelling and, when they come
// from an append, their place; stale appended entries are dropped. New entries
// go to the managed assignment, or to the last append when there is none.
func (c Config) Render(layers []string) []byte {
	spelled := make(map[string]string, len(c.Layers)+len(c.Appended))
	for _, layer := range c.Entries() {
		key := c.Normalize(layer)
		if _, ok := spelled[key]; !ok {
			spelled[key] = layer
		}
	}
	want := mapset.NewThreadUnsafeSet[string]()
	var entries []string
	for _, p := range layers {
		key := c.Normalize(p)
		if !want.Add(key) {
			continue
		}
		if original, ok := spelled[key]; ok {
			entries = append(entries, original)
			continue
		}
		entries = append(entries, p)
	}

	if !c.Exists {
		var b bytes.Buffer
		b.WriteString(Preamble)
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s ?= \"%s\"\n", Variable, formatValue(entries, true, "  "))
		return b.Bytes()
	}

	// Appended entries that stay keep their assignment.
	placed := mapset.NewThreadUnsafeSet[string]()
	kept := make([][]string, len(c.appends))
	for i, a := range c.appends {
		for _, e := range a.entries {
			key := c.Normalize(e)
			if want.Contains(key) && placed.Add(key) {
				kept[i] = append(kept[i], e)
			}
		}
	}
	var managed []string
	for _, e := range entries {
		if !placed.Contains(c.Normalize(e)) {
			managed = append(managed, e)
		}
	}

	// The managed assignment precedes every append that survived Read.
	var edits []edit
	switch {
	case c.value.found:
		edits = append(edits, edit{value: c.value, entries: managed})
	case len(c.appends) > 0:
		last := len(kept) - 1
		kept[last] = append(kept[last], managed...)
		managed = nil
	}
	for i, a := range c.appends {
		edits = append(edits, edit{value: a.value, entries: kept[i]})
	}

	var b bytes.Buffer
	at := 0
	for _, e := range edits {
		b.Write(c.data[at:e.value.start])
		b.WriteString(formatValue(e.entries, e.value.multiline, e.value.indent))
		at = e.value.end
	}
	b.Write(c.data[at:])
	if !c.value.found && len(c.appends) == 0 {
		if b.Len() > 0 && c.data[len(c.data)-1] != '\n' {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s ?= \"%s\"\n", Variable, formatValue(managed, true, "  "))
	}
	return b.Bytes()
}

type edit struct {
	value   span
	entries []string
}

// Write replaces the managed value with layers, creating the file with the
// standard preamble when it does not exist. The file is replaced atomically.
func Write(cfg Config, layers []string, path string) error {
	data := cfg.Render(layers)
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := atomicwriter.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatValue(entries []string, multiline bool, indent string) string {
	if !multiline {
		return strings.Join(entries, " ")
	}
	if indent == "" {
		indent = "  "
	}
	var b strings.Builder
	b.WriteString(" \\\n")
	for _, e := range entries {
		b.WriteString(indent)
		b.WriteString(e)
		b.WriteString(" \\\n")
	}
	b.WriteString(indent)
	return b.String()
}

func splitValue(value string) []string {
	value = strings.ReplaceAll(value, "\\\r\n", " ")
	value = strings.ReplaceAll(value, "\\\n", " ")
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
