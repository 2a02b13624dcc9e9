package project

import (
	"slices"

	"github.com/GetPageSpeed/buildstrap/internal/expand"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/pipeline"
)

// FleetPlan returns the plan behind the shared fleet document of a kind.
// Fleet documents use the default archs and no exclusions; nginx kinds
// take the nginx collection, the without-plesk variant minus its
// Plesk-only branches.
func FleetPlan(m *matrix.Matrix, kind pipeline.Kind) (*Plan, error) {
	p := &Plan{
		Archs:         slices.Clone(DefaultArchs),
		Branches:      defaultBranches,
		Exclude:       expand.MustCompilePatterns(),
		ResourceClass: pipeline.DefaultResourceClass,
		Kind:          kind,
	}
	if !kind.Nginx() {
		return p, nil
	}

	c, err := m.Collection(nginxCollection)
	if err != nil {
		return nil, err
	}
	p.Collection = c.Name
	p.Branches = c.Branches
	if kind == pipeline.KindNginxWithoutPlesk {
		p.Branches = slices.DeleteFunc(slices.Clone(p.Branches), func(b matrix.Branch) bool {
			return b.RequiresPlesk || b.Plesk > 0
		})
	}
	return p, nil
}
