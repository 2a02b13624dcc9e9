package output

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/zeebo/blake3"

	"github.com/GetPageSpeed/buildstrap/internal/log"
)

// ErrMissingDir reports an absent directory the run is required to write into.
var ErrMissingDir = errors.New("directory not found")

// Status is the outcome of writing one file.
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusDrifted   Status = "drifted"
)

// File is a fully rendered output file.
type File struct {
	Name string
	Data []byte
	Mode fs.FileMode
}

// Result describes what happened to one file.
type Result struct {
	Path   string
	Status Status
	Digest string
	// Diff is the unified diff from disk to the rendered content in check mode.
	Diff string
}

// Writer places rendered files on disk. Check mode never writes and
// records differing files as drifted instead.
type Writer struct {
	Check   bool
	Results []Result
}

// RequireDir returns ErrMissingDir unless dir is an existing directory.
func RequireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrMissingDir, dir)
	}
	return nil
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteAll writes the files into dir in order, stopping at the first error.
func (w *Writer) WriteAll(dir string, files ...File) error {
	for _, f := range files {
		if _, err := w.Write(filepath.Join(dir, f.Name), f.Data, f.Mode); err != nil {
			return err
		}
	}
	return nil
}

// Write atomically replaces path with data unless its digest already matches.
func (w *Writer) Write(path string, data []byte, mode fs.FileMode) (Result, error) {
	if mode == 0 {
		mode = 0o644
	}
	res := Result{Path: path, Digest: Digest(data)}

	current, err := os.ReadFile(path)
	switch {
	case err == nil:
		if Digest(current) == res.Digest {
			res.Status = StatusUnchanged
			if !w.Check {
				if err := ensureMode(path, mode); err != nil {
					return res, fmt.Errorf("failed to set mode on %s: %w", path, err)
				}
			}
			return w.record(res), nil
		}
	case errors.Is(err, fs.ErrNotExist):
		current = nil
	default:
		return res, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if w.Check {
		res.Status = StatusDrifted
		res.Diff, err = unifiedDiff(path, current, data)
		if err != nil {
			return res, err
		}
		return w.record(res), nil
	}

	if err := atomicWrite(path, data, mode); err != nil {
		return res, err
	}
	res.Status = StatusWritten
	return w.record(res), nil
}

// Drifted returns the results that differ from disk in check mode.
func (w *Writer) Drifted() []Result {
	var out []Result
	for _, r := range w.Results {
		if r.Status == StatusDrifted {
			out = append(out, r)
		}
	}
	return out
}

func (w *Writer) record(res Result) Result {
	w.Results = append(w.Results, res)
	log.WithComponent("output").Debug("output file processed",
		"path", res.Path,
		"status", res.Status,
		"blake3", res.Digest,
	)
	return res
}

func ensureMode(path string, mode fs.FileMode) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm() == mode.Perm() {
		return nil
	}
	return os.Chmod(path, mode)
}

func atomicWrite(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func unifiedDiff(path string, current, rendered []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(rendered)),
		FromFile: path,
		ToFile:   path + " (generated)",
		Context:  3,
	})
}
