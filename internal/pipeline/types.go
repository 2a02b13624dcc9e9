package pipeline

import (
	"bytes"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Document is a CircleCI 2.1 pipeline definition.
type Document struct {
	Version   float64   `yaml:"version"`
	Executors Map       `yaml:"executors"`
	Jobs      Map       `yaml:"jobs"`
	Workflows Workflows `yaml:"workflows"`
}

// Executor is a reusable execution environment.
type Executor struct {
	Parameters       Params        `yaml:"parameters"`
	Docker           []DockerImage `yaml:"docker"`
	WorkingDirectory string        `yaml:"working_directory"`
	Environment      Map           `yaml:"environment"`
}

// DockerImage selects the container of an executor.
type DockerImage struct {
	Image string `yaml:"image"`
}

// Param declares one executor or job parameter.
type Param struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description,omitempty"`
	Type        string `yaml:"type"`
	Default     any    `yaml:"default,omitempty"`
}

// Params is an ordered parameter list rendered as a mapping.
type Params []Param

// MarshalYAML implements yaml.Marshaler.
func (p Params) MarshalYAML() (interface{}, error) {
	m := make(Map, 0, len(p))
	for _, param := range p {
		m = append(m, Entry{Key: param.Name, Value: param})
	}
	return m.MarshalYAML()
}

// Job is a job definition.
type Job struct {
	Parallelism   int    `yaml:"parallelism,omitempty"`
	Parameters    Params `yaml:"parameters"`
	ResourceClass string `yaml:"resource_class,omitempty"`
	Executor      Map    `yaml:"executor"`
	Steps         []any  `yaml:"steps"`
}

// RunStep runs a shell command.
type RunStep struct {
	Run Run `yaml:"run"`
}

// Run is the body of a run step. Command is a string, Literal or Folded.
type Run struct {
	Name    string `yaml:"name"`
	Command any    `yaml:"command"`
}

// PersistStep persists files to the workflow workspace.
type PersistStep struct {
	PersistToWorkspace Workspace `yaml:"persist_to_workspace"`
}

// Workspace names the persisted root and paths.
type Workspace struct {
	Root  string   `yaml:"root"`
	Paths []string `yaml:"paths"`
}

// AttachStep attaches the workflow workspace.
type AttachStep struct {
	AttachWorkspace struct {
		At string `yaml:"at"`
	} `yaml:"attach_workspace"`
}

// SSHKeysStep adds deploy keys by fingerprint.
type SSHKeysStep struct {
	AddSSHKeys struct {
		Fingerprints []string `yaml:"fingerprints"`
	} `yaml:"add_ssh_keys"`
}

// Workflow is a named build to deploy chain.
type Workflow struct {
	Name string        `yaml:"-"`
	Jobs []WorkflowJob `yaml:"jobs"`
}

// Build returns the build invocation of the workflow.
func (w Workflow) Build() *BuildInvocation {
	for _, j := range w.Jobs {
		if j.Build != nil {
			return j.Build
		}
	}
	return nil
}

// Deploy returns the deploy invocation of the workflow.
func (w Workflow) Deploy() *DeployInvocation {
	for _, j := range w.Jobs {
		if j.Deploy != nil {
			return j.Deploy
		}
	}
	return nil
}

// Workflows keeps workflows in emission order.
type Workflows []Workflow

// Names returns workflow names in order.
func (ws Workflows) Names() []string {
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Name
	}
	return names
}

// Get returns the named workflow.
func (ws Workflows) Get(name string) (Workflow, bool) {
	i := slices.IndexFunc(ws, func(w Workflow) bool { return w.Name == name })
	if i < 0 {
		return Workflow{}, false
	}
	return ws[i], true
}

// MarshalYAML implements yaml.Marshaler.
func (ws Workflows) MarshalYAML() (interface{}, error) {
	m := make(Map, 0, len(ws))
	for _, w := range ws {
		m = append(m, Entry{Key: w.Name, Value: w})
	}
	return m.MarshalYAML()
}

// WorkflowJob references one job of a workflow with its arguments.
type WorkflowJob struct {
	Build  *BuildInvocation  `yaml:"build,omitempty"`
	Deploy *DeployInvocation `yaml:"deploy,omitempty"`
}

// BuildInvocation is the build job as called from a workflow.
type BuildInvocation struct {
	Name          string   `yaml:"name"`
	Context       string   `yaml:"context"`
	Dist          string   `yaml:"dist"`
	Filters       *Filters `yaml:"filters,omitempty"`
	EnableRepos   string   `yaml:"enable_repos,omitempty"`
	Plesk         int      `yaml:"plesk,omitempty"`
	Mod           int      `yaml:"mod,omitempty"`
	ResourceClass string   `yaml:"resource_class,omitempty"`
}

// DeployInvocation is the deploy job as called from a workflow.
type DeployInvocation struct {
	Name     string   `yaml:"name"`
	Context  string   `yaml:"context"`
	Dist     string   `yaml:"dist"`
	Arch     string   `yaml:"arch"`
	Filters  *Filters `yaml:"filters,omitempty"`
	Requires []string `yaml:"requires"`
}

// Filters gates a job on branches and tags.
type Filters struct {
	Branches *FilterRule `yaml:"branches,omitempty"`
	Tags     *FilterRule `yaml:"tags,omitempty"`
}

// FilterRule lists the refs a job runs on or ignores.
type FilterRule struct {
	Only   []string `yaml:"only,omitempty"`
	Ignore []string `yaml:"ignore,omitempty"`
}

// Marshal renders the document with two-space indentation.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline: %w", err)
	}
	return buf.Bytes(), nil
}
