package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GetPageSpeed/buildstrap/internal/doctor"
	"github.com/GetPageSpeed/buildstrap/internal/log"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/output"
	"github.com/GetPageSpeed/buildstrap/internal/project"
)

// projectConfigPath is where CircleCI looks for a project's pipeline.
var projectConfigPath = filepath.Join(".circleci", "config.yml")

func runProjectGenerate(args []string) int {
	var projectDir, matrixPath string
	var check, stdout bool

	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.StringVar(&projectDir, "project-dir", ".", "Root directory of the project")
	fs.StringVar(&matrixPath, "matrix", "", "Path to matrix.json or matrix.yml")
	fs.BoolVar(&check, "check", false, "Report drift as a diff instead of writing")
	fs.BoolVar(&stdout, "stdout", false, "Print the document instead of writing it")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	runID := lf.setup()
	logger := log.WithRun(runID).With("command", "project generate")

	m, err := loadMatrix(matrixPath, matrix.DiscoverResolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Matrix load error: %v\n", err)
		return 1
	}
	settings, err := project.LoadSettings(projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Settings error: %v\n", err)
		return 1
	}
	plan, err := project.Resolve(projectDir, settings, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Plan error: %v\n", err)
		return 1
	}
	doc, err := plan.Document(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generate error: %v\n", err)
		return 1
	}
	data, err := output.YAML(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
		return 1
	}
	logger.Info("pipeline generated",
		"project", plan.Dir,
		"kind", plan.Kind,
		"workflows", len(doc.Workflows),
	)

	if stdout {
		fmt.Print(string(data))
		return 0
	}

	target := filepath.Join(plan.Dir, projectConfigPath)
	if !check {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			return 1
		}
	}
	w := &output.Writer{Check: check}
	if _, err := w.Write(target, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		return 1
	}
	return reportWriter(w, logger.Info)
}

func runConfigCheck(args []string) int {
	var projectDir, matrixPath, format string
	var strict, jsonOut bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&projectDir, "project-dir", "", "Project directory whose settings.yml is validated")
	fs.StringVar(&matrixPath, "matrix", "", "Path to matrix.yml or matrix.json")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	// Handle -json alias for format=json
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	lf.setup()

	if jsonOut {
		format = "json"
	}

	// A project check validates against resolved versions; the matrix
	// alone is checked in its source form.
	discover := matrix.Discover
	if projectDir != "" {
		discover = matrix.DiscoverResolved
	}
	m, err := loadMatrix(matrixPath, discover)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Matrix load error: %v\n", err)
		return 1
	}

	var settings *project.Settings
	if projectDir != "" {
		settings, err = project.LoadSettings(projectDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Settings error: %v\n", err)
			return 1
		}
	}

	result := doctor.New(m, projectDir, settings).Validate()

	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 1
	}
	return 0
}
