package expand

import "fmt"

// Namer derives job and workflow names from a tuple. With a single active
// branch the branch segment is omitted.
type Namer struct {
	SingleBranch bool
}

// NamerFor returns the namer for a run with the given number of active branches.
func NamerFor(branchCount int) Namer {
	return Namer{SingleBranch: branchCount == 1}
}

func (n Namer) name(prefix string, t Tuple) string {
	if n.SingleBranch {
		return fmt.Sprintf("%s-%s-%s", prefix, t.Key(), t.Arch)
	}
	return fmt.Sprintf("%s-%s-%s-%s", prefix, t.Key(), t.Branch.Name, t.Arch)
}

// Build returns the build job name, e.g. "build-el9-x86_64".
func (n Namer) Build(t Tuple) string { return n.name("build", t) }

// Deploy returns the deploy job name, e.g. "deploy-el9-x86_64".
func (n Namer) Deploy(t Tuple) string { return n.name("deploy", t) }

// Workflow returns the workflow name, e.g. "build-deploy-el9-x86_64".
func (n Namer) Workflow(t Tuple) string { return n.name("build-deploy", t) }
