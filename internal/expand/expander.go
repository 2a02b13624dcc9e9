// Package expand computes the (distro, version, branch, arch) job tuples of a run.
package expand

import (
	"fmt"

	"github.com/GetPageSpeed/buildstrap/internal/log"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
)

// ArchAArch64 is the only architecture gated by per-distro support.
const ArchAArch64 = "aarch64"

// Tuple is one build+deploy unit.
type Tuple struct {
	Distro  string
	Dist    string
	Version int
	Branch  matrix.Branch
	Arch    string
}

// Key returns dist+version, e.g. "el9".
func (t Tuple) Key() string {
	return fmt.Sprintf("%s%d", t.Dist, t.Version)
}

type branchFilter struct {
	branch    matrix.Branch
	onlyDists *Patterns
	onlyArchs *Patterns
}

func compileBranches(branches matrix.BranchSet) ([]branchFilter, error) {
	out := make([]branchFilter, 0, len(branches))
	for _, b := range branches {
		f := branchFilter{branch: b}
		if b.OnlyDists != nil {
			p, err := CompilePatterns(b.OnlyDists)
			if err != nil {
				return nil, fmt.Errorf("branch %q only_dists: %w", b.Name, err)
			}
			f.onlyDists = &p
		}
		if b.OnlyArchs != nil {
			p, err := CompilePatterns(b.OnlyArchs)
			if err != nil {
				return nil, fmt.Errorf("branch %q only_archs: %w", b.Name, err)
			}
			f.onlyArchs = &p
		}
		out = append(out, f)
	}
	return out, nil
}

// Expand walks distros, then versions, then branches, then archs, in input
// order, and emits every combination that survives filtering. Exclusion
// patterns are tested against the dist tag, dist+version and
// dist+version-arch. The result is never re-sorted.
func Expand(distros []matrix.Distro, branches matrix.BranchSet, archs []string, exclude Patterns) ([]Tuple, error) {
	filters, err := compileBranches(branches)
	if err != nil {
		return nil, err
	}

	logger := log.WithComponent("expand")
	var tuples []Tuple
	for _, d := range distros {
		emitted := 0
		for _, version := range d.Versions {
			key := d.Key(version)
			for _, f := range filters {
				if f.branch.RequiresPlesk && !d.Plesk {
					continue
				}
				if f.onlyDists != nil && !f.onlyDists.Match(d.Dist, key) {
					continue
				}
				for _, arch := range archs {
					if arch == ArchAArch64 && !d.AArch64 {
						continue
					}
					if f.onlyArchs != nil && !f.onlyArchs.Match(arch) {
						continue
					}
					if exclude.Match(d.Dist, key, key+"-"+arch) {
						continue
					}
					tuples = append(tuples, Tuple{
						Distro:  d.Name,
						Dist:    d.Dist,
						Version: version,
						Branch:  f.branch,
						Arch:    arch,
					})
					emitted++
				}
			}
		}
		if emitted == 0 {
			logger.Debug("distro yields no jobs", "distro", d.Name, "versions", d.Versions)
		}
	}
	return tuples, nil
}
