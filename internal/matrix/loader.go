package matrix

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a matrix document (YAML, or its JSON mirror) from path.
func Load(path string) (*Matrix, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve matrix path %q: %w", path, err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return m, nil
}

// rawDistro mirrors one entry of the distros mapping before defaults apply.
type rawDistro struct {
	Dist                  string `yaml:"dist"`
	Dir                   string `yaml:"dir"`
	Description           string `yaml:"description"`
	RPMBuilderName        string `yaml:"rpmbuilder_name"`
	LookupName            string `yaml:"lookup_name"`
	OSVersions            *int   `yaml:"os_versions"`
	HasAarch64            *bool  `yaml:"has_aarch64"`
	HasRollingRelease     *bool  `yaml:"has_rolling_release"`
	IncludeRollingRelease *bool  `yaml:"include_rolling_release"`
	HasPlesk              bool   `yaml:"has_plesk"`
	VersionsCheck         *bool  `yaml:"versions_check"`
	Versions              []int  `yaml:"versions"`
}

type rawCollection struct {
	Description string    `yaml:"description"`
	Branches    BranchSet `yaml:"branches"`
}

// Parse decodes a matrix document. Mapping order of distros, collections
// and branches is preserved; defaults are applied and the result validated.
func Parse(data []byte) (*Matrix, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse matrix: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("failed to parse matrix: empty document")
	}

	var top struct {
		Defaults    Defaults  `yaml:"distro_defaults"`
		Distros     yaml.Node `yaml:"distros"`
		Collections yaml.Node `yaml:"collections"`
	}
	if err := doc.Content[0].Decode(&top); err != nil {
		return nil, fmt.Errorf("failed to parse matrix: %w", err)
	}

	m := &Matrix{Defaults: top.Defaults}
	if m.Defaults.OSVersions == 0 {
		m.Defaults.OSVersions = DefaultOSVersions
	}

	err := eachPair(&top.Distros, func(name string, value *yaml.Node) error {
		var raw rawDistro
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("distro %q: %w", name, err)
		}
		m.Distros = append(m.Distros, raw.normalize(name, m.Defaults))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse matrix: %w", err)
	}

	err = eachPair(&top.Collections, func(name string, value *yaml.Node) error {
		var raw rawCollection
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("collection %q: %w", name, err)
		}
		m.Collections = append(m.Collections, Collection{
			Name:        name,
			Description: raw.Description,
			Branches:    raw.Branches,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse matrix: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matrix: %w", err)
	}
	return m, nil
}

func (r rawDistro) normalize(name string, defaults Defaults) Distro {
	d := Distro{
		Name:           name,
		Dist:           r.Dist,
		Dir:            r.Dir,
		Description:    r.Description,
		RPMBuilderName: r.RPMBuilderName,
		LookupName:     r.LookupName,
		OSVersions:     defaults.OSVersions,
		AArch64:        true,
		Plesk:          r.HasPlesk,
		CheckVersions:  true,
		Versions:       append([]int{}, r.Versions...),
	}
	if d.Dist == "" {
		d.Dist = name
	}
	if d.Dir == "" {
		d.Dir = d.Dist
	}
	if d.RPMBuilderName == "" {
		d.RPMBuilderName = name
	}
	if r.OSVersions != nil {
		d.OSVersions = *r.OSVersions
	}
	if r.HasAarch64 != nil {
		d.AArch64 = *r.HasAarch64
	}
	if r.VersionsCheck != nil {
		d.CheckVersions = *r.VersionsCheck
	}
	switch {
	case r.HasRollingRelease != nil:
		d.Rolling = *r.HasRollingRelease
	case r.IncludeRollingRelease != nil:
		d.Rolling = *r.IncludeRollingRelease
		d.LegacyRollingKey = true
	}
	return d
}

// UnmarshalYAML accepts either a mapping of branch name to descriptor or a
// plain list of branch names.
func (s *BranchSet) UnmarshalYAML(value *yaml.Node) error {
	*s = nil
	if value.Kind == yaml.SequenceNode {
		for _, item := range value.Content {
			var name string
			if err := item.Decode(&name); err != nil {
				return fmt.Errorf("line %d: branch list entries must be names: %w", item.Line, err)
			}
			*s = append(*s, Branch{Name: name})
		}
		return nil
	}
	return eachPair(value, func(name string, node *yaml.Node) error {
		var b Branch
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("branch %q: %w", name, err)
		}
		b.Name = name
		*s = append(*s, b)
		return nil
	})
}

// eachPair walks a mapping node in document order. A missing or null node
// is treated as an empty mapping.
func eachPair(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind == yaml.AliasNode {
		return eachPair(node.Alias, fn)
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if seen[key] {
			return fmt.Errorf("line %d: key %q already defined", node.Content[i].Line, key)
		}
		seen[key] = true
		if err := fn(key, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
