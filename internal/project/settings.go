package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/GetPageSpeed/buildstrap/internal/matrix"
)

// SettingsFile is the per-project override document.
const SettingsFile = "settings.yml"

// Settings are the per-project overrides. Nil fields are absent from the
// document and leave the computed value alone.
type Settings struct {
	Archs           StringList       `yaml:"archs"`
	ExcludeArchs    StringList       `yaml:"exclude_archs"`
	Exclude         StringList       `yaml:"exclude"`
	Branches        matrix.BranchSet `yaml:"branches"`
	Branch          StringList       `yaml:"branch"`
	ExcludeBranches StringList       `yaml:"exclude_branches"`
	Collection      string           `yaml:"collection"`
	ResourceClass   string           `yaml:"resource_class"`
}

// StringList decodes either a single scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	}
	var items []string
	if err := value.Decode(&items); err != nil {
		return err
	}
	if items == nil {
		items = []string{}
	}
	*l = items
	return nil
}

// LoadSettings reads settings.yml from the project directory. A missing or
// empty file yields empty settings.
func LoadSettings(dir string) (*Settings, error) {
	path := filepath.Join(dir, SettingsFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes a settings document.
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", SettingsFile, err)
	}
	if err := s.Branches.Validate(); err != nil {
		return nil, fmt.Errorf("%s branches: %w", SettingsFile, err)
	}
	return &s, nil
}
