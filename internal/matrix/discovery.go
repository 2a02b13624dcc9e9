package matrix

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvMatrixPath overrides matrix discovery when set.
const EnvMatrixPath = "BUILDSTRAP_MATRIX"

const (
	// SourceFile is the hand-maintained matrix document.
	SourceFile = "matrix.yml"
	// ResolvedFile is the JSON mirror carrying resolved versions.
	ResolvedFile = "matrix.json"
)

// Discover finds the source matrix document for a refresh.
// Priority order: explicit path, $BUILDSTRAP_MATRIX, ./matrix.yml, ./matrix.json,
// matrix.json next to the executable.
func Discover(explicit string) (string, error) {
	return discover(explicit, SourceFile, ResolvedFile)
}

// DiscoverResolved finds a matrix with resolved versions for generation.
// Same as Discover except ./matrix.json is checked before ./matrix.yml.
func DiscoverResolved(explicit string) (string, error) {
	return discover(explicit, ResolvedFile, SourceFile)
}

func discover(explicit string, candidates ...string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", fmt.Errorf("matrix file not found: %s", explicit)
		}
		return explicit, nil
	}

	if path := os.Getenv(EnvMatrixPath); path != "" {
		if fileExists(path) {
			return path, nil
		}
	}

	for _, candidate := range candidates {
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), ResolvedFile)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	checked := make([]string, len(candidates))
	for i, c := range candidates {
		checked[i] = "./" + c
	}
	return "", fmt.Errorf("no matrix found (checked: --matrix, $%s, %s, executable directory)",
		EnvMatrixPath, strings.Join(checked, ", "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
