package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Literal renders as a "|" block scalar.
type Literal string

// MarshalYAML implements yaml.Marshaler.
func (l Literal) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.LiteralStyle, Value: string(l)}, nil
}

// Folded renders as a ">" block scalar.
type Folded string

// MarshalYAML implements yaml.Marshaler.
func (f Folded) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.FoldedStyle, Value: string(f)}, nil
}

// Entry is one key of an ordered mapping.
type Entry struct {
	Key   string
	Value any
}

// Map is a mapping that keeps insertion order when marshalled.
type Map []Entry

// Set appends or replaces key.
func (m *Map) Set(key string, value any) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, Entry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m Map) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// MarshalYAML implements yaml.Marshaler.
func (m Map) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range m {
		var value yaml.Node
		if err := value.Encode(e.Value); err != nil {
			return nil, fmt.Errorf("encode %q: %w", e.Key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
			&value,
		)
	}
	return node, nil
}
