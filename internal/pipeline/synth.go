package pipeline

import (
	"fmt"

	"github.com/GetPageSpeed/buildstrap/internal/expand"
)

const (
	// DefaultContext is the CircleCI context carrying deploy credentials.
	DefaultContext = "org-global"
	// DefaultResourceClass is used when a project does not override it.
	DefaultResourceClass = "medium"
	// SpecsBranch gates every job of the specs-only variant.
	SpecsBranch = "specs"
	// DefaultSSHFingerprint is the deploy key added to deploy jobs.
	DefaultSSHFingerprint = "8c:a4:dd:2c:47:4c:63:aa:90:0b:e0:d6:15:be:87:82"

	stableVariant    = "stable"
	extrasRepoPrefix = "getpagespeed-extras-"
)

var armResourceClasses = map[string]string{"small": "medium"}

// Options control synthesis for one generated document.
type Options struct {
	Kind          Kind
	ResourceClass string
	// SingleBranch drops the branch segment from job and workflow names.
	SingleBranch   bool
	Context        string
	SSHFingerprint string
}

func (o Options) withDefaults() Options {
	if o.Kind == "" {
		o.Kind = KindPlain
	}
	if o.ResourceClass == "" {
		o.ResourceClass = DefaultResourceClass
	}
	if o.Context == "" {
		o.Context = DefaultContext
	}
	if o.SSHFingerprint == "" {
		o.SSHFingerprint = DefaultSSHFingerprint
	}
	return o
}

// ARMResourceClass returns the ARM resource class matching the x86 one;
// there is no small ARM class, so small maps to arm.medium.
func (o Options) ARMResourceClass() string {
	rc := o.withDefaults().ResourceClass
	if mapped, ok := armResourceClasses[rc]; ok {
		rc = mapped
	}
	return "arm." + rc
}

// Synthesize converts one tuple into its build and deploy invocations,
// grouped as a workflow. The deploy always requires the build.
func Synthesize(t expand.Tuple, opts Options) Workflow {
	opts = opts.withDefaults()
	namer := expand.Namer{SingleBranch: opts.SingleBranch}
	buildName := namer.Build(t)

	build := &BuildInvocation{
		Name:    buildName,
		Context: opts.Context,
		Dist:    t.Key(),
		Filters: buildFilters(t, opts.Kind),
		Plesk:   t.Branch.Plesk,
		Mod:     t.Branch.Mod,
	}
	build.EnableRepos = enableRepos(t, opts.Kind)
	if t.Arch == expand.ArchAArch64 {
		build.ResourceClass = opts.ARMResourceClass()
	}

	deploy := &DeployInvocation{
		Name:     namer.Deploy(t),
		Context:  opts.Context,
		Dist:     t.Key(),
		Arch:     t.Arch,
		Filters:  deployFilters(t, opts.Kind),
		Requires: []string{buildName},
	}

	return Workflow{
		Name: namer.Workflow(t),
		Jobs: []WorkflowJob{{Build: build}, {Deploy: deploy}},
	}
}

// enableRepos enables the branch's extras repository at build time so the
// builder can see which RPMs already exist there.
func enableRepos(t expand.Tuple, kind Kind) string {
	if t.Branch.EnableRepos != "" {
		return t.Branch.EnableRepos
	}
	if kind.Nginx() && t.Branch.Name != stableVariant {
		return extrasRepoPrefix + t.Branch.Name
	}
	return ""
}

func buildFilters(t expand.Tuple, kind Kind) *Filters {
	switch kind {
	case KindSelf:
		// Required because the deploy has tag filters and requires the build.
		return &Filters{Tags: &FilterRule{Only: []string{"/.*/"}}}
	case KindSpecsOnly:
		return &Filters{Branches: &FilterRule{Only: []string{SpecsBranch}}}
	default:
		return &Filters{Branches: &FilterRule{Only: t.Branch.Triggers()}}
	}
}

func deployFilters(t expand.Tuple, kind Kind) *Filters {
	switch kind {
	case KindSelf:
		return &Filters{
			Tags:     &FilterRule{Only: []string{"/^v.*/"}},
			Branches: &FilterRule{Ignore: []string{"/.*/"}},
		}
	case KindSpecsOnly:
		return &Filters{Branches: &FilterRule{Only: []string{SpecsBranch}}}
	default:
		return &Filters{Branches: &FilterRule{Only: t.Branch.Triggers()}}
	}
}

// SynthesizeAll synthesizes every tuple in order. Two tuples mapping to the
// same workflow name indicate a malformed table and are rejected.
func SynthesizeAll(tuples []expand.Tuple, opts Options) (Workflows, error) {
	seen := make(map[string]bool, len(tuples))
	out := make(Workflows, 0, len(tuples))
	for _, t := range tuples {
		w := Synthesize(t, opts)
		if seen[w.Name] {
			return nil, fmt.Errorf("workflow %q generated twice (distro %q)", w.Name, t.Distro)
		}
		seen[w.Name] = true
		out = append(out, w)
	}
	return out, nil
}
