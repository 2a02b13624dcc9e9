package project

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/GetPageSpeed/buildstrap/internal/expand"
	"github.com/GetPageSpeed/buildstrap/internal/log"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/pipeline"
)

// DefaultArchs are built unless settings or the RPM spec file narrow them.
var DefaultArchs = []string{"x86_64", "aarch64"}

const (
	nginxCollection = "nginx"
	nginxDirPrefix  = "nginx-"
	noarch          = "noarch"
	smallClass      = "small"
)

// defaultBranches applies when no collection is selected.
var defaultBranches = matrix.BranchSet{{Name: "master", Description: "Main release branch"}}

// Plan is the fully resolved generation input for one project.
type Plan struct {
	Dir           string
	Spec          SpecArchs
	Archs         []string
	Collection    string
	Branches      matrix.BranchSet
	Exclude       expand.Patterns
	ResourceClass string
	Kind          pipeline.Kind
}

// Resolve computes the plan for the project at dir from its settings and
// the matrix. Each override stage is applied in a fixed order.
func Resolve(dir string, s *Settings, m *matrix.Matrix) (*Plan, error) {
	if s == nil {
		s = &Settings{}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory %q: %w", dir, err)
	}
	p := &Plan{Dir: abs}

	p.Archs = slices.Clone(DefaultArchs)
	if s.Archs != nil {
		p.Archs = slices.Clone(s.Archs)
	}
	if p.Spec, err = ScanSpec(abs); err != nil {
		return nil, err
	}
	if p.Spec.Archs != nil {
		p.Archs = slices.Clone(p.Spec.Archs)
	}
	p.Archs = slices.DeleteFunc(p.Archs, func(a string) bool {
		return slices.Contains(s.ExcludeArchs, a)
	})

	if strings.HasPrefix(filepath.Base(abs), nginxDirPrefix) {
		p.Collection = nginxCollection
	}
	if s.Collection != "" {
		p.Collection = s.Collection
	}

	p.Branches = defaultBranches
	if p.Collection != "" {
		c, err := m.Collection(p.Collection)
		if err != nil {
			return nil, err
		}
		p.Branches = c.Branches
	}
	if s.Branches != nil {
		p.Branches = s.Branches
	}
	if s.Branch != nil {
		p.Branches = p.Branches.Keep(s.Branch)
	}
	if s.ExcludeBranches != nil {
		p.Branches = p.Branches.Drop(s.ExcludeBranches)
	}

	if p.Exclude, err = expand.CompilePatterns(s.Exclude); err != nil {
		return nil, fmt.Errorf("%s exclude: %w", SettingsFile, err)
	}

	p.ResourceClass = pipeline.DefaultResourceClass
	if len(p.Archs) == 1 && p.Archs[0] == noarch {
		p.ResourceClass = smallClass
	}
	if s.ResourceClass != "" {
		p.ResourceClass = s.ResourceClass
	}

	p.Kind = pipeline.KindPlain
	if p.Collection == nginxCollection {
		p.Kind = pipeline.KindNginx
	}

	log.WithComponent("project").Debug("project plan resolved",
		"dir", p.Dir,
		"archs", p.Archs,
		"collection", p.Collection,
		"branches", p.Branches.Names(),
		"resource_class", p.ResourceClass,
	)
	return p, nil
}

// Options returns the synthesis options of the plan.
func (p *Plan) Options() pipeline.Options {
	return pipeline.Options{
		Kind:          p.Kind,
		ResourceClass: p.ResourceClass,
		SingleBranch:  expand.NamerFor(len(p.Branches)).SingleBranch,
	}
}

// Expand enumerates the plan's tuples over the matrix distros.
func (p *Plan) Expand(m *matrix.Matrix) ([]expand.Tuple, error) {
	if err := m.RequireResolved(); err != nil {
		return nil, err
	}
	return expand.Expand(m.Distros, p.Branches, p.Archs, p.Exclude)
}

// Document builds the pipeline document of the plan.
func (p *Plan) Document(m *matrix.Matrix) (*pipeline.Document, error) {
	tuples, err := p.Expand(m)
	if err != nil {
		return nil, err
	}
	return pipeline.Build(tuples, p.Options())
}
