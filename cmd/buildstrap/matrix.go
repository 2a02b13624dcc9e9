package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/GetPageSpeed/buildstrap/internal/lock"
	"github.com/GetPageSpeed/buildstrap/internal/log"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/output"
	"github.com/GetPageSpeed/buildstrap/internal/pipeline"
	"github.com/GetPageSpeed/buildstrap/internal/project"
	"github.com/GetPageSpeed/buildstrap/internal/resolver"
	"github.com/GetPageSpeed/buildstrap/internal/versions"
)

const defaultRPMBuilderDir = "../rpmbuilder"

func runMatrixRefresh(args []string) int {
	var matrixPath, outDir, rpmbuilderDir, apiURL string
	var check bool
	var timeout time.Duration
	var pins stringList

	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.StringVar(&matrixPath, "matrix", "", "Path to matrix.yml")
	fs.StringVar(&outDir, "out-dir", ".", "Directory receiving matrix.json, matrix.sh and the fleet documents")
	fs.StringVar(&rpmbuilderDir, "rpmbuilder-dir", "", "rpmbuilder checkout (default <out-dir>/"+defaultRPMBuilderDir+")")
	fs.StringVar(&apiURL, "api", resolver.DefaultBaseURL, "Release-cycle API base URL")
	fs.Var(&pins, "pin", "Pin a distro's current major, e.g. --pin fedora=42 (repeatable)")
	fs.BoolVar(&check, "check", false, "Report drift as a diff instead of writing")
	fs.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline for version resolution")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if rpmbuilderDir == "" {
		rpmbuilderDir = filepath.Join(outDir, defaultRPMBuilderDir)
	}

	runID := lf.setup()
	logger := log.WithRun(runID).With("command", "matrix refresh")

	pinned, err := resolver.ParsePins(pins)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if !check {
		l, err := lock.ForDir(outDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Lock error: %v\n", err)
			return 1
		}
		defer func() { _ = l.Release() }()
	}

	m, err := loadMatrix(matrixPath, matrix.Discover)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Matrix load error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := resolver.Pinned{Pins: pinned, Next: resolver.NewHTTPResolver(apiURL, nil)}
	expanded, err := versions.ExpandAll(ctx, m, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Version resolution error: %v\n", err)
		return 1
	}
	logger.Info("distro versions resolved", "distros", len(expanded.Distros))

	w := &output.Writer{Check: check}
	code := refreshOutputs(w, expanded, outDir, rpmbuilderDir)
	if code != 0 {
		return code
	}
	return reportWriter(w, logger.Info)
}

// refreshOutputs writes the outputs in a fixed order. Files written before
// a failure stay on disk.
func refreshOutputs(w *output.Writer, m *matrix.Matrix, outDir, rpmbuilderDir string) int {
	matrixJSON, err := output.MatrixJSON(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
		return 1
	}
	if err := w.WriteAll(outDir,
		output.File{Name: output.MatrixJSONFile, Data: matrixJSON},
		output.File{Name: output.ShellArraysFile, Data: output.ShellArrays(m), Mode: 0o755},
	); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		return 1
	}

	for _, kind := range pipeline.Kinds {
		data, err := fleetDocument(m, kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Generate error (%s): %v\n", kind, err)
			return 1
		}
		if err := w.WriteAll(outDir, output.File{Name: kind.FileName(), Data: data}); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			return 1
		}
	}

	if err := output.RequireDir(rpmbuilderDir); err != nil {
		fmt.Fprintf(os.Stderr, "rpmbuilder error: %v\n", err)
		return 1
	}
	versionsJSON, err := output.DistroVersionsJSON(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
		return 1
	}
	if err := w.WriteAll(rpmbuilderDir,
		output.File{Name: output.MatrixJSONFile, Data: matrixJSON},
		output.File{Name: output.DistroVersionsFile, Data: versionsJSON},
		output.File{Name: output.DefaultsFile, Data: output.Defaults(m)},
	); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		return 1
	}
	return 0
}

func fleetDocument(m *matrix.Matrix, kind pipeline.Kind) ([]byte, error) {
	plan, err := project.FleetPlan(m, kind)
	if err != nil {
		return nil, err
	}
	doc, err := plan.Document(m)
	if err != nil {
		return nil, err
	}
	return output.YAML(doc)
}

// reportWriter prints drift in check mode and a per-file summary otherwise.
func reportWriter(w *output.Writer, info func(msg string, args ...any)) int {
	if drifted := w.Drifted(); len(drifted) > 0 {
		for _, r := range drifted {
			fmt.Print(r.Diff)
		}
		fmt.Fprintf(os.Stderr, "Check failed: %d file(s) out of date\n", len(drifted))
		return 1
	}
	for _, r := range w.Results {
		info("output", "path", r.Path, "status", r.Status)
	}
	return 0
}

func runMatrixShow(args []string) int {
	var matrixPath string
	var jsonOut bool

	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.StringVar(&matrixPath, "matrix", "", "Path to matrix.yml or matrix.json")
	fs.BoolVar(&jsonOut, "json", false, "Output the matrix mirror as JSON")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	lf.setup()

	m, err := loadMatrix(matrixPath, matrix.DiscoverResolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Matrix load error: %v\n", err)
		return 1
	}

	if jsonOut {
		data, err := output.MatrixJSON(m)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
			return 1
		}
		fmt.Print(string(data))
		return 0
	}

	fmt.Println(distroTable(m))
	for _, c := range m.Collections {
		fmt.Printf("collection %s: %s\n", c.Name, strings.Join(c.Branches.Names(), ", "))
	}
	return 0
}

func distroTable(m *matrix.Matrix) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD"))).
		Headers("DISTRO", "DIST", "DIR", "VERSIONS", "AARCH64", "ROLLING", "PLESK", "CHECK", "DESCRIPTION").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, d := range m.Distros {
		vs := make([]string, len(d.Versions))
		for i, v := range d.Versions {
			vs[i] = strconv.Itoa(v)
		}
		t.Row(d.Name, d.Dist, d.Dir, strings.Join(vs, " "),
			yesNo(d.AArch64), yesNo(d.Rolling), yesNo(d.Plesk), yesNo(d.CheckVersions), d.Description)
	}
	return t.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// loadMatrix discovers and loads a matrix document. Generation reads
// resolved versions through matrix.DiscoverResolved.
func loadMatrix(explicit string, discover func(string) (string, error)) (*matrix.Matrix, error) {
	path, err := discover(explicit)
	if err != nil {
		return nil, err
	}
	m, err := matrix.Load(path)
	if err != nil {
		return nil, err
	}
	log.WithComponent("matrix").Debug("matrix loaded", "path", path, "distros", len(m.Distros))
	return m, nil
}
