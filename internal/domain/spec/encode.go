package spec

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Node renders s as a YAML mapping that Parse reads back unchanged. Repo and
// layer order are kept.
func (s Spec) Node() *yaml.Node {
	header := mapping(
		scalar("version"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(s.Version)},
		scalar("name"), scalar(s.Name),
	)
	repos := mapping()
	for _, r := range s.Repos {
		entry := mapping(
			scalar("url"), scalar(r.URL),
			scalar("refspec"), scalar(r.Refspec),
		)
		if len(r.ExtraRemotes) > 0 {
			remotes := mapping()
			for _, remote := range r.ExtraRemotes {
				remotes.Content = append(remotes.Content, scalar(remote.Name), mapping(scalar("url"), scalar(remote.URL)))
			}
			entry.Content = append(entry.Content, scalar("extra-remotes"), remotes)
		}
		if len(r.Layers) > 0 {
			layers := mapping()
			for _, layer := range r.Layers {
				value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
				if layer.Override != "" {
					value = scalar(layer.Override)
				}
				layers.Content = append(layers.Content, scalar(layer.Name), value)
			}
			entry.Content = append(entry.Content, scalar("layers"), layers)
		}
		repos.Content = append(repos.Content, scalar(r.Name), entry)
	}
	return mapping(scalar("header"), header, scalar("repos"), repos)
}

// Marshal encodes s as a standalone spec document.
func Marshal(s Spec) ([]byte, error) {
	return yaml.Marshal(s.Node())
}

func mapping(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content}
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
