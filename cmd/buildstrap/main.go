package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GetPageSpeed/buildstrap/internal/log"
)

// EnvLogLevel selects the log level when --log-level is not given.
const EnvLogLevel = "BUILDSTRAP_LOG_LEVEL"

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "matrix":
		return runMatrixNoun(args)
	case "project":
		return runProjectNoun(args)
	case "config":
		return runConfigNoun(args)

	// --- ROOT ALIASES ---
	case "refresh":
		return runMatrixRefresh(args)
	case "generate":
		return runProjectGenerate(args)
	case "doctor":
		return runConfigCheck(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

// versionInfo is what `buildstrap version` reports. Release builds stamp
// version, gitCommit and buildDate with -ldflags; otherwise the module and
// VCS stamps embedded by the go command fill the gaps.
type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Modified  bool   `json:"modified,omitempty"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version,omitempty"`
}

const commitLen = 12

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: buildstrap version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	commit := info.Commit
	if info.Modified {
		commit += " (modified)"
	}
	fmt.Printf("buildstrap %s\n", info.Version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	if info.GoVersion != "" {
		fmt.Printf("go: %s\n", info.GoVersion)
	}
	return 0
}

func currentVersionInfo() versionInfo {
	stamps := readBuildStamps()
	info := versionInfo{
		Version:   firstSet(version, stamps.module, "0.0.0-dev"),
		Commit:    "unknown",
		Modified:  stamps.modified,
		BuildTime: "unknown",
		GoVersion: stamps.goVersion,
	}
	if c := firstSet(gitCommit, stamps.revision); c != "" {
		info.Commit = c[:min(len(c), commitLen)]
	}
	if t, err := time.Parse(time.RFC3339Nano, firstSet(buildDate, stamps.time)); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

// firstSet returns the first value that is not blank or a placeholder.
func firstSet(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && v != "unknown" && v != "(devel)" {
			return v
		}
	}
	return ""
}

type buildStamps struct {
	module    string
	revision  string
	time      string
	modified  bool
	goVersion string
}

func readBuildStamps() buildStamps {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return buildStamps{}
	}
	s := buildStamps{module: bi.Main.Version, goVersion: bi.GoVersion}
	for _, kv := range bi.Settings {
		switch kv.Key {
		case "vcs.revision":
			s.revision = kv.Value
		case "vcs.time":
			s.time = kv.Value
		case "vcs.modified":
			s.modified = kv.Value == "true"
		}
	}
	return s
}

func printUsage() {
	fmt.Print(`buildstrap - CircleCI pipeline generator for RPM packaging projects

Usage:
  buildstrap <noun> <action> [flags]

Core Resources (Nouns):
  matrix    Distro matrix and fleet outputs
  project   Per-project pipeline generation
  config    Matrix and settings validation

Matrix Commands:
  matrix refresh    Resolve distro versions and write fleet outputs
  matrix show       Show the distro table

Project Commands:
  project generate  Write .circleci/config.yml for a project

Config Commands:
  config check      Validate the matrix and project settings

General:
  version           Show version information
  help              Show this help message

Use 'buildstrap <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runMatrixNoun(args []string) int {
	if len(args) < 1 {
		printMatrixNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printMatrixNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "refresh":
		if hasHelpFlag(actionArgs) {
			printMatrixRefreshHelp()
			return 0
		}
		return runMatrixRefresh(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printMatrixShowHelp()
			return 0
		}
		return runMatrixShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown matrix action: %s\n", action)
		return 1
	}
}

func runProjectNoun(args []string) int {
	if len(args) < 1 {
		printProjectNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printProjectNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "generate":
		if hasHelpFlag(actionArgs) {
			printProjectGenerateHelp()
			return 0
		}
		return runProjectGenerate(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown project action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printMatrixNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: buildstrap matrix <action>")
	fmt.Fprintln(w, "Actions: refresh, show")
}

func printProjectNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: buildstrap project <action>")
	fmt.Fprintln(w, "Actions: generate")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: buildstrap config <action>")
	fmt.Fprintln(w, "Actions: check")
}

func printMatrixRefreshHelp() {
	fmt.Println("Usage: buildstrap matrix refresh [--matrix PATH] [--out-dir DIR] [--rpmbuilder-dir DIR] [--api URL] [--pin distro=major]... [--check]")
	fmt.Println("Resolve the current major of every checked distro and write matrix.json, matrix.sh, the fleet pipeline documents and the rpmbuilder files.")
}

func printMatrixShowHelp() {
	fmt.Println("Usage: buildstrap matrix show [--matrix PATH] [--json]")
	fmt.Println("Render the distro table as stored, without resolving versions.")
}

func printProjectGenerateHelp() {
	fmt.Println("Usage: buildstrap project generate [--project-dir DIR] [--matrix PATH] [--check] [--stdout]")
	fmt.Println("Write <project-dir>/.circleci/config.yml from the resolved matrix (./matrix.json is preferred) and settings.yml.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: buildstrap config check [--project-dir DIR] [--matrix PATH] [--strict] [--json]")
	fmt.Println("Validate the matrix and, with --project-dir, the project settings.")
}

// --- SHARED FLAGS ---

type logFlags struct {
	level  string
	format string
}

func addLogFlags(fs *flag.FlagSet) *logFlags {
	lf := &logFlags{}
	fs.StringVar(&lf.level, "log-level", os.Getenv(EnvLogLevel), "Log level (debug, info, warn, error)")
	fs.StringVar(&lf.format, "log-format", "text", "Log format on stderr (text, json)")
	return lf
}

// setup configures logging and returns the id that tags this run.
func (lf *logFlags) setup() string {
	log.SetupWriter(lf.level, lf.format, os.Stderr)
	return uuid.NewString()
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
