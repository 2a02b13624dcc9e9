// Package doctor validates a distro matrix and a project's settings before
// anything is generated.
package doctor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/GetPageSpeed/buildstrap/internal/expand"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/pipeline"
	"github.com/GetPageSpeed/buildstrap/internal/project"
	"github.com/GetPageSpeed/buildstrap/internal/versions"
)

// Result holds the outcome of a validation run.
type Result struct {
	// Project is the checked project directory; empty for a matrix-only check.
	Project  string  `json:"project,omitempty"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates the matrix and, when a project directory is given, the
// plan resolved from its settings.
type Doctor struct {
	m        *matrix.Matrix
	dir      string
	settings *project.Settings
}

// New creates a Doctor. An empty dir validates the matrix alone.
func New(m *matrix.Matrix, dir string, settings *project.Settings) *Doctor {
	if settings == nil {
		settings = &project.Settings{}
	}
	return &Doctor{m: m, dir: dir, settings: settings}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true, Project: d.dir}

	d.validateMatrix(r)
	d.validateVersions(r)
	d.validateBranchPatterns(r)
	d.warnDeprecatedSyntax(r)
	if d.dir != "" {
		d.validatePlan(r)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateMatrix checks table-wide invariants such as duplicate job keys.
func (d *Doctor) validateMatrix(r *Result) {
	if err := d.m.Validate(); err != nil {
		d.addError(r, "matrix", "distros", err.Error())
	}
}

// validateVersions checks each version set. Resolved sets must be a
// consecutive descending run; hand-maintained ones only warn.
func (d *Doctor) validateVersions(r *Result) {
	for _, dist := range d.m.Distros {
		field := fmt.Sprintf("distros.%s.versions", dist.Name)
		if len(dist.Versions) == 0 {
			d.addWarning(r, "versions", field,
				fmt.Sprintf("distro %q has no versions; run 'buildstrap matrix refresh'", dist.Name))
			continue
		}
		err := versions.Validate(dist)
		if err == nil {
			continue
		}
		if dist.CheckVersions {
			d.addError(r, "versions", field, err.Error())
		} else {
			d.addWarning(r, "versions", field, err.Error())
		}
	}
}

// validateBranchPatterns compiles every only_dists and only_archs glob.
func (d *Doctor) validateBranchPatterns(r *Result) {
	for _, c := range d.m.Collections {
		for _, b := range c.Branches {
			field := fmt.Sprintf("collections.%s.branches.%s", c.Name, b.Name)
			if _, err := expand.CompilePatterns(b.OnlyDists); err != nil {
				d.addError(r, "collections", field+".only_dists", err.Error())
			}
			if _, err := expand.CompilePatterns(b.OnlyArchs); err != nil {
				d.addError(r, "collections", field+".only_archs", err.Error())
			}
		}
	}
}

func (d *Doctor) warnDeprecatedSyntax(r *Result) {
	for _, dist := range d.m.Distros {
		if dist.LegacyRollingKey {
			d.addWarning(r, "deprecated", fmt.Sprintf("distros.%s.include_rolling_release", dist.Name),
				"include_rolling_release is deprecated; use has_rolling_release")
		}
	}
}

// validatePlan resolves the project plan and checks what it would generate.
func (d *Doctor) validatePlan(r *Result) {
	plan, err := project.Resolve(d.dir, d.settings, d.m)
	if err != nil {
		d.addError(r, "settings", project.SettingsFile, err.Error())
		return
	}
	if len(plan.Archs) == 0 {
		d.addWarning(r, "settings", "archs", "no architectures left to build")
	}
	if len(plan.Branches) == 0 {
		d.addWarning(r, "settings", "branches", "no branches left to build")
	}
	d.warnUnknownBranches(r, plan, "branch", d.settings.Branch)
	d.warnUnknownBranches(r, plan, "exclude_branches", d.settings.ExcludeBranches)
	d.warnUnusedExcludes(r, plan)

	tuples, err := plan.Expand(d.m)
	if err != nil {
		d.addError(r, "expansion", "", err.Error())
		return
	}
	d.warnEmptyDistros(r, tuples)

	if _, err := pipeline.SynthesizeAll(tuples, plan.Options()); err != nil {
		d.addError(r, "pipeline", "workflows", err.Error())
	}
}

// warnUnknownBranches flags names that match no branch of the candidate set.
func (d *Doctor) warnUnknownBranches(r *Result, plan *project.Plan, field string, names []string) {
	candidates := d.candidateBranches(plan)
	for _, name := range names {
		if _, ok := candidates.Get(name); !ok {
			d.addWarning(r, "settings", field, fmt.Sprintf("branch %q is not defined", name))
		}
	}
}

func (d *Doctor) candidateBranches(plan *project.Plan) matrix.BranchSet {
	if d.settings.Branches != nil {
		return d.settings.Branches
	}
	if plan.Collection != "" {
		if c, err := d.m.Collection(plan.Collection); err == nil {
			return c.Branches
		}
	}
	return matrix.BranchSet{{Name: "master"}}
}

// warnUnusedExcludes flags exclusion patterns that match no combination.
func (d *Doctor) warnUnusedExcludes(r *Result, plan *project.Plan) {
	matched := make(map[string]bool, plan.Exclude.Len())
	for _, dist := range d.m.Distros {
		for _, v := range dist.Versions {
			key := dist.Key(v)
			values := []string{dist.Dist, key}
			for _, arch := range plan.Archs {
				values = append(values, key+"-"+arch)
			}
			for _, raw := range plan.Exclude.Matching(values...) {
				matched[raw] = true
			}
		}
	}
	for _, raw := range plan.Exclude.Raw() {
		if !matched[raw] {
			d.addWarning(r, "settings", "exclude", fmt.Sprintf("pattern %q matches nothing", raw))
		}
	}
}

func (d *Doctor) warnEmptyDistros(r *Result, tuples []expand.Tuple) {
	jobs := make(map[string]int, len(d.m.Distros))
	for _, t := range tuples {
		jobs[t.Distro]++
	}
	for _, dist := range d.m.Distros {
		if len(dist.Versions) > 0 && jobs[dist.Name] == 0 {
			d.addWarning(r, "expansion", fmt.Sprintf("distros.%s", dist.Name),
				fmt.Sprintf("distro %q yields no jobs for this project", dist.Name))
		}
	}
}

// FormatHuman renders the report as a summary line, then errors before
// warnings, one issue per line.
func FormatHuman(r *Result) string {
	var b strings.Builder

	subject := "Matrix"
	if r.Project != "" {
		subject = fmt.Sprintf("Project %s", filepath.Base(r.Project))
	}
	switch {
	case !r.Valid:
		fmt.Fprintf(&b, "%s has problems: %d error(s), %d warning(s)\n", subject, len(r.Errors), len(r.Warnings))
	case len(r.Warnings) > 0:
		fmt.Fprintf(&b, "%s is valid, %d warning(s)\n", subject, len(r.Warnings))
	default:
		fmt.Fprintf(&b, "%s is valid.\n", subject)
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, label string, is Issue) {
	fmt.Fprintf(b, "  %s [%s] ", label, is.Category)
	if is.Field != "" {
		fmt.Fprintf(b, "%s: ", is.Field)
	}
	b.WriteString(is.Message)
	b.WriteByte('\n')
}

// FormatJSON renders the report as indented JSON. Messages quote globs and
// shell fragments, so HTML escaping is off.
func FormatJSON(r *Result) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
