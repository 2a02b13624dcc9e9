package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/pipeline"
)

// Output file names.
const (
	MatrixJSONFile     = "matrix.json"
	ShellArraysFile    = "matrix.sh"
	DistroVersionsFile = "distro_versions.json"
	DefaultsFile       = "defaults"
)

const jsonIndent = "    "

// YAML renders a pipeline document.
func YAML(doc *pipeline.Document) ([]byte, error) {
	data, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to render pipeline document: %w", err)
	}
	return data, nil
}

// MatrixJSON renders the expanded matrix mirror with four-space indentation.
func MatrixJSON(m *matrix.Matrix) ([]byte, error) {
	return indentJSON(m)
}

// ShellArrays renders matrix.sh: the dist-to-directory and
// directory-to-description associative arrays used by shell tooling.
func ShellArrays(m *matrix.Matrix) []byte {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("# auto-generated by buildstrap from matrix.yml\n")
	b.WriteString("# mapping of dists to directories:\n")
	b.WriteString("declare -A dists=(\n")
	for _, d := range m.Distros {
		for _, v := range d.Versions {
			fmt.Fprintf(&b, "  [%q]=%q\n", d.Key(v), fmt.Sprintf("%s/%d", d.Dir, v))
		}
	}
	b.WriteString(")\n")
	b.WriteString("# mapping of directories to full descriptive names:\n")
	b.WriteString("declare -A os_long=(\n")
	seen := make(map[string]bool, len(m.Distros))
	for _, d := range m.Distros {
		if seen[d.Dir] {
			continue
		}
		seen[d.Dir] = true
		fmt.Fprintf(&b, "  [%q]=%q\n", d.Dir, d.Description)
	}
	b.WriteString(")\n")
	return []byte(b.String())
}

type distroVersion struct {
	OS      string `json:"os"`
	Version int    `json:"version"`
}

// DistroVersionsJSON renders the rpmbuilder CI matrix include list.
func DistroVersionsJSON(m *matrix.Matrix) ([]byte, error) {
	include := []distroVersion{}
	for _, d := range m.Distros {
		for _, v := range d.Versions {
			include = append(include, distroVersion{OS: d.RPMBuilderName, Version: v})
		}
	}
	return indentJSON(struct {
		Include []distroVersion `json:"include"`
	}{include})
}

// Defaults renders one "<rpmbuilder name> <version>" line per distro version.
func Defaults(m *matrix.Matrix) []byte {
	var b strings.Builder
	for _, d := range m.Distros {
		for _, v := range d.Versions {
			fmt.Fprintf(&b, "%s %d\n", d.RPMBuilderName, v)
		}
	}
	return []byte(b.String())
}

func indentJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to render JSON: %w", err)
	}
	return buf.Bytes(), nil
}
