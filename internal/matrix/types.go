package matrix

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultOSVersions is the number of OS majors built when neither the distro
// nor distro_defaults declares a policy.
const DefaultOSVersions = 2

var (
	// ErrUnknownCollection is returned when a branch collection is referenced but not declared.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrUnresolved is returned when a version-checked distro carries no versions yet.
	ErrUnresolved = errors.New("unresolved distro versions")
)

// mainBranches co-trigger each other unless a branch declares its own aliases.
var mainBranches = []string{"main", "master", "stable"}

// Matrix is the loaded distro table plus the named branch collections.
type Matrix struct {
	Defaults    Defaults
	Distros     []Distro
	Collections []Collection
}

// Defaults holds the distro_defaults section.
type Defaults struct {
	OSVersions int `yaml:"os_versions" json:"os_versions"`
}

// Distro is one operating system family under build.
type Distro struct {
	// Name is the canonical key in the distros mapping.
	Name           string `json:"-"`
	Dist           string `json:"dist"`
	Dir            string `json:"dir"`
	Description    string `json:"description"`
	RPMBuilderName string `json:"rpmbuilder_name"`
	// LookupName is the identifier handed to the version resolver.
	LookupName    string `json:"lookup_name,omitempty"`
	OSVersions    int    `json:"os_versions"`
	AArch64       bool   `json:"has_aarch64"`
	Rolling       bool   `json:"has_rolling_release"`
	Plesk         bool   `json:"has_plesk"`
	CheckVersions bool   `json:"versions_check"`
	Versions      []int  `json:"versions"`

	// LegacyRollingKey records that the rolling flag came from include_rolling_release.
	LegacyRollingKey bool `json:"-"`
}

// Key returns the dist+version job key, e.g. "el9".
func (d Distro) Key(version int) string {
	return fmt.Sprintf("%s%d", d.Dist, version)
}

// Lookup returns the identifier used for latest-version resolution.
func (d Distro) Lookup() string {
	if d.LookupName != "" {
		return d.LookupName
	}
	return d.Name
}

// Clone returns a deep copy of the distro.
func (d Distro) Clone() Distro {
	d.Versions = slices.Clone(d.Versions)
	return d
}

// Collection is a named, ordered set of branch descriptors.
type Collection struct {
	Name        string
	Description string
	Branches    BranchSet
}

// Branch maps a source-control branch to a build variant.
type Branch struct {
	Name          string   `yaml:"-" json:"-"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	GitBranch     string   `yaml:"git_branch" json:"git_branch,omitempty"`
	OnlyDists     []string `yaml:"only_dists" json:"only_dists,omitempty"`
	OnlyArchs     []string `yaml:"only_archs" json:"only_archs,omitempty"`
	Aliases       []string `yaml:"aliases" json:"aliases,omitempty"`
	EnableRepos   string   `yaml:"enable_repos" json:"enable_repos,omitempty"`
	Plesk         int      `yaml:"plesk" json:"plesk,omitempty"`
	Mod           int      `yaml:"mod" json:"mod,omitempty"`
	RequiresPlesk bool     `yaml:"requires_plesk" json:"requires_plesk,omitempty"`
}

// Ref returns the git branch the variant builds from.
func (b Branch) Ref() string {
	if b.GitBranch != "" {
		return b.GitBranch
	}
	return b.Name
}

// Triggers returns the git branches that run jobs for this variant: the
// branch itself first, then its aliases. A main-group branch without
// declared aliases triggers on the whole main group.
func (b Branch) Triggers() []string {
	ref := b.Ref()
	aliases := b.Aliases
	if aliases == nil && (slices.Contains(mainBranches, ref) || slices.Contains(mainBranches, b.Name)) {
		aliases = mainBranches
	}
	out := []string{ref}
	for _, a := range aliases {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

// BranchSet is an ordered list of branch descriptors.
type BranchSet []Branch

// Names returns the branch names in order.
func (s BranchSet) Names() []string {
	names := make([]string, len(s))
	for i, b := range s {
		names[i] = b.Name
	}
	return names
}

// Get returns the branch with the given name.
func (s BranchSet) Get(name string) (Branch, bool) {
	for _, b := range s {
		if b.Name == name {
			return b, true
		}
	}
	return Branch{}, false
}

// Keep returns the branches whose names are listed, in set order.
func (s BranchSet) Keep(names []string) BranchSet {
	var out BranchSet
	for _, b := range s {
		if slices.Contains(names, b.Name) {
			out = append(out, b)
		}
	}
	return out
}

// Drop returns the branches whose names are not listed, in set order.
func (s BranchSet) Drop(names []string) BranchSet {
	var out BranchSet
	for _, b := range s {
		if !slices.Contains(names, b.Name) {
			out = append(out, b)
		}
	}
	return out
}

// Distro returns the distro with the given canonical name.
func (m *Matrix) Distro(name string) (Distro, bool) {
	for _, d := range m.Distros {
		if d.Name == name {
			return d, true
		}
	}
	return Distro{}, false
}

// Collection returns the named branch collection.
func (m *Matrix) Collection(name string) (Collection, error) {
	for _, c := range m.Collections {
		if c.Name == name {
			return c, nil
		}
	}
	return Collection{}, fmt.Errorf("%w %q", ErrUnknownCollection, name)
}

// WithDistros returns a copy of the matrix carrying the given distro table.
func (m *Matrix) WithDistros(distros []Distro) *Matrix {
	out := &Matrix{
		Defaults:    m.Defaults,
		Distros:     make([]Distro, len(distros)),
		Collections: slices.Clone(m.Collections),
	}
	for i, d := range distros {
		out.Distros[i] = d.Clone()
	}
	return out
}

// Unresolved returns the version-checked distros that have no versions,
// which is the state of matrix.yml before a refresh.
func (m *Matrix) Unresolved() []string {
	var names []string
	for _, d := range m.Distros {
		if d.CheckVersions && len(d.Versions) == 0 {
			names = append(names, d.Name)
		}
	}
	return names
}

// RequireResolved fails with ErrUnresolved unless every version-checked
// distro has versions.
func (m *Matrix) RequireResolved() error {
	names := m.Unresolved()
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s (run 'buildstrap matrix refresh' and use %s)",
		ErrUnresolved, strings.Join(names, ", "), ResolvedFile)
}

// Validate checks table-wide invariants: unique canonical names, sane
// policy counts and no two distros producing the same job key.
func (m *Matrix) Validate() error {
	names := make(map[string]bool, len(m.Distros))
	keys := make(map[string]string)
	for _, d := range m.Distros {
		if d.Name == "" {
			return fmt.Errorf("distro with empty name")
		}
		if names[d.Name] {
			return fmt.Errorf("distro %q declared more than once", d.Name)
		}
		names[d.Name] = true
		if d.Dist == "" {
			return fmt.Errorf("distro %q: empty dist tag", d.Name)
		}
		if d.OSVersions < 1 {
			return fmt.Errorf("distro %q: os_versions must be at least 1, got %d", d.Name, d.OSVersions)
		}
		for _, v := range d.Versions {
			key := d.Key(v)
			if owner, ok := keys[key]; ok {
				return fmt.Errorf("distro %q: job key %q already produced by %q", d.Name, key, owner)
			}
			keys[key] = d.Name
		}
	}

	seen := make(map[string]bool, len(m.Collections))
	for _, c := range m.Collections {
		if seen[c.Name] {
			return fmt.Errorf("collection %q declared more than once", c.Name)
		}
		seen[c.Name] = true
		if err := c.Branches.Validate(); err != nil {
			return fmt.Errorf("collection %q: %w", c.Name, err)
		}
	}
	return nil
}

// Validate checks that branch names are present and unique.
func (s BranchSet) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, b := range s {
		if b.Name == "" {
			return fmt.Errorf("branch with empty name")
		}
		if seen[b.Name] {
			return fmt.Errorf("branch %q declared more than once", b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}
