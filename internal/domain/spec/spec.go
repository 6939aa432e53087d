package spec

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tasuku43/yb/internal/infra/gitcmd"
)

// FormatVersion is the only spec document version this build understands.
const FormatVersion = 1

// RootLayer names the repository root itself as a layer.
const RootLayer = "."

type Spec struct {
	Version int
	Name    string
	// Repos keeps declaration order.
	Repos []Repo
}

type Repo struct {
	Name         string
	URL          string
	Refspec      string
	ExtraRemotes []Remote
	Layers       []Layer
}

type Remote struct {
	Name string
	URL  string
}

// Layer is one entry of a repository's layers mapping. Override is empty when
// the layer lives at <repo>/<name>.
type Layer struct {
	Name     string
	Override string
}

// Repo returns the repository declared under name.
func (s Spec) Repo(name string) (Repo, bool) {
	for _, r := range s.Repos {
		if r.Name == name {
			return r, true
		}
	}
	return Repo{}, false
}

// URLs returns the primary URL followed by every extra remote URL.
func (r Repo) URLs() []string {
	urls := []string{r.URL}
	for _, remote := range r.ExtraRemotes {
		urls = append(urls, remote.URL)
	}
	return urls
}

func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}
	s, err := Parse(data)
	if err != nil {
		if perr, ok := err.(*ParseError); ok {
			perr.Path = path
		}
		return Spec{}, err
	}
	return s, nil
}

// Parse decodes a spec document. Every problem found is collected into a
// single *ParseError.
func Parse(data []byte) (Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Spec{}, &ParseError{Issues: []Issue{{Ref: "spec", Message: fmt.Sprintf("invalid yaml (%s)", strings.TrimSpace(err.Error()))}}}
	}
	root := unwrapDocument(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return Spec{}, &ParseError{Issues: []Issue{{Ref: "spec", Message: "invalid value (must be a mapping)"}}}
	}

	var s Spec
	var issues []Issue
	version, name, headerIssues := parseHeader(mappingValue(root, "header"))
	issues = append(issues, headerIssues...)
	s.Version = version
	s.Name = name

	// A future version may change anything below the header.
	if len(headerIssues) > 0 && version != FormatVersion {
		return Spec{}, &ParseError{Issues: issues}
	}

	repos, repoIssues := parseRepos(mappingValue(root, "repos"))
	issues = append(issues, repoIssues...)
	s.Repos = repos
	issues = append(issues, checkURLs(repos)...)
	issues = append(issues, checkLayerCollisions(repos)...)

	if len(issues) > 0 {
		return Spec{}, &ParseError{Issues: issues}
	}
	return s, nil
}

func parseHeader(node *yaml.Node) (int, string, []Issue) {
	if node == nil {
		return 0, "", []Issue{{Ref: "header", Message: "missing required field"}}
	}
	if node.Kind != yaml.MappingNode {
		return 0, "", []Issue{{Ref: "header", Message: "invalid value (must be a mapping)"}}
	}
	var issues []Issue
	version := FormatVersion
	versionNode := mappingValue(node, "version")
	if alias := mappingValue(node, "format_version"); alias != nil {
		if versionNode != nil {
			issues = append(issues, Issue{Ref: "header.format_version", Message: "conflicts with header.version"})
		}
		versionNode = alias
	}
	if versionNode != nil {
		v, err := strconv.Atoi(strings.TrimSpace(scalarValue(versionNode)))
		switch {
		case versionNode.Kind != yaml.ScalarNode || err != nil:
			version = 0
			issues = append(issues, Issue{Ref: "header.version", Message: "invalid value (must be an integer)"})
		case v != FormatVersion:
			version = v
			issues = append(issues, Issue{Ref: "header.version", Message: fmt.Sprintf("unsupported version: %d (supported: %d)", v, FormatVersion)})
		}
	}
	name := strings.TrimSpace(scalarValue(mappingValue(node, "name")))
	if name == "" {
		issues = append(issues, Issue{Ref: "header.name", Message: "missing required field"})
	}
	return version, name, issues
}

func parseRepos(node *yaml.Node) ([]Repo, []Issue) {
	if node == nil {
		return nil, []Issue{{Ref: "repos", Message: "missing required field"}}
	}
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, []Issue{{Ref: "repos", Message: "invalid value (must be a mapping)"}}
	}
	var repos []Repo
	var issues []Issue
	seen := map[string]struct{}{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := strings.TrimSpace(scalarValue(node.Content[i]))
		ref := "repos." + name
		if name == "" {
			issues = append(issues, Issue{Ref: "repos", Message: "repository name is empty"})
			continue
		}
		if _, ok := seen[name]; ok {
			issues = append(issues, Issue{Ref: ref, Message: "duplicate repository name"})
			continue
		}
		seen[name] = struct{}{}
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			issues = append(issues, Issue{Ref: ref, Message: "invalid repository name (must be a single directory name)"})
			continue
		}
		repo, repoIssues := parseRepo(ref, name, node.Content[i+1])
		issues = append(issues, repoIssues...)
		repos = append(repos, repo)
	}
	return repos, issues
}

func parseRepo(ref, name string, node *yaml.Node) (Repo, []Issue) {
	repo := Repo{Name: name}
	if node == nil || node.Kind != yaml.MappingNode {
		return repo, []Issue{{Ref: ref, Message: "invalid value (repository entry must be a mapping)"}}
	}
	var issues []Issue
	repo.URL = strings.TrimSpace(scalarValue(mappingValue(node, "url")))
	if repo.URL == "" {
		issues = append(issues, Issue{Ref: ref + ".url", Message: "missing required field"})
	}
	repo.Refspec = strings.TrimSpace(scalarValue(mappingValue(node, "refspec")))
	if repo.Refspec == "" {
		issues = append(issues, Issue{Ref: ref + ".refspec", Message: "missing required field"})
	}

	remotes, remoteIssues := parseExtraRemotes(ref+".extra-remotes", mappingValue(node, "extra-remotes"))
	repo.ExtraRemotes = remotes
	issues = append(issues, remoteIssues...)

	layers, layerIssues := parseLayers(ref+".layers", mappingValue(node, "layers"))
	repo.Layers = layers
	issues = append(issues, layerIssues...)
	return repo, issues
}

func parseExtraRemotes(ref string, node *yaml.Node) ([]Remote, []Issue) {
	if node == nil || isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, []Issue{{Ref: ref, Message: "invalid value (must be a mapping)"}}
	}
	var remotes []Remote
	var issues []Issue
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := strings.TrimSpace(scalarValue(node.Content[i]))
		url := strings.TrimSpace(scalarValue(mappingValue(node.Content[i+1], "url")))
		if name == "" || url == "" {
			issues = append(issues, Issue{Ref: ref + "." + name, Message: "extra remote needs a name and a url"})
			continue
		}
		remotes = append(remotes, Remote{Name: name, URL: url})
	}
	return remotes, issues
}

func parseLayers(ref string, node *yaml.Node) ([]Layer, []Issue) {
	if node == nil || isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, []Issue{{Ref: ref, Message: "malformed layer entry (layers must be a mapping)"}}
	}
	var layers []Layer
	var issues []Issue
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		name := strings.TrimSpace(scalarValue(keyNode))
		layerRef := ref + "." + name
		if keyNode.Kind != yaml.ScalarNode || name == "" {
			issues = append(issues, Issue{Ref: ref, Message: "malformed layer entry (empty name)"})
			continue
		}
		if msg := checkRelative(name); msg != "" {
			issues = append(issues, Issue{Ref: layerRef, Message: "malformed layer entry (" + msg + ")"})
			continue
		}
		layer := Layer{Name: name}
		if !isNull(valueNode) {
			if valueNode.Kind != yaml.ScalarNode {
				issues = append(issues, Issue{Ref: layerRef, Message: "malformed layer entry (override must be a path or empty)"})
				continue
			}
			override := strings.TrimSpace(valueNode.Value)
			if msg := checkRelative(override); msg != "" {
				issues = append(issues, Issue{Ref: layerRef, Message: "malformed layer entry (" + msg + ")"})
				continue
			}
			layer.Override = override
		}
		layers = append(layers, layer)
	}
	return layers, issues
}

func checkRelative(p string) string {
	if p == "" {
		return "empty path"
	}
	if filepath.IsAbs(p) || path.IsAbs(p) {
		return "path must be relative to the repository"
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "path escapes the repository"
	}
	return ""
}

func checkURLs(repos []Repo) []Issue {
	owners := map[string][]string{}
	var order []string
	for _, repo := range repos {
		for _, url := range repo.URLs() {
			if url == "" {
				continue
			}
			key := gitcmd.NormalizeURL(url)
			if _, ok := owners[key]; !ok {
				order = append(order, key)
			}
			if !containsString(owners[key], repo.Name) {
				owners[key] = append(owners[key], repo.Name)
			}
		}
	}
	var issues []Issue
	for _, key := range order {
		if names := owners[key]; len(names) > 1 {
			issues = append(issues, Issue{
				Ref:     "repos",
				Message: fmt.Sprintf("URL %s corresponds to more than one repository: %s", key, strings.Join(names, ", ")),
			})
		}
	}
	return issues
}

func checkLayerCollisions(repos []Repo) []Issue {
	owner := map[string]string{}
	var issues []Issue
	for _, repo := range repos {
		for _, layer := range repo.Layers {
			p := ResolveLayerPath(repo.Name, repo, layer.Name)
			if prev, ok := owner[p]; ok {
				issues = append(issues, Issue{
					Ref:     fmt.Sprintf("repos.%s.layers.%s", repo.Name, layer.Name),
					Message: fmt.Sprintf("layer path collision with %s", prev),
				})
				continue
			}
			owner[p] = fmt.Sprintf("repos.%s.layers.%s", repo.Name, layer.Name)
		}
	}
	return issues
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func unwrapDocument(node *yaml.Node) *yaml.Node {
	if node == nil {
		return node
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0]
	}
	if node.Kind == yaml.DocumentNode {
		return nil
	}
	return node
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func scalarValue(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode || isNull(node) {
		return ""
	}
	return node.Value
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}
