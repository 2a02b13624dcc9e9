package project

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SpecArchs is the outcome of scanning a project's RPM spec file.
type SpecArchs struct {
	// File is the scanned spec, empty when no single spec was found.
	File string
	// Archs replaces the architecture set when non-nil.
	Archs []string
}

// ScanSpec looks for a BuildArch or ExclusiveArch declaration. Only a
// directory holding exactly one *.spec file is scanned.
func ScanSpec(dir string) (SpecArchs, error) {
	specs, err := filepath.Glob(filepath.Join(dir, "*.spec"))
	if err != nil {
		return SpecArchs{}, err
	}
	if len(specs) != 1 {
		return SpecArchs{}, nil
	}

	f, err := os.Open(specs[0])
	if err != nil {
		return SpecArchs{}, fmt.Errorf("failed to open spec file: %w", err)
	}
	defer f.Close()

	result := SpecArchs{File: specs[0]}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		line := strings.Join(fields, " ")
		if value, ok := strings.CutPrefix(line, "BuildArch:"); ok {
			// Arch-specific BuildArch lines do not narrow the set.
			if strings.TrimSpace(value) == "noarch" {
				result.Archs = []string{"noarch"}
				break
			}
		}
		if value, ok := strings.CutPrefix(line, "ExclusiveArch:"); ok {
			result.Archs = strings.Fields(value)
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return SpecArchs{}, fmt.Errorf("failed to scan %s: %w", specs[0], err)
	}
	return result, nil
}
