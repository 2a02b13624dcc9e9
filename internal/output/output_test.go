package output

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetPageSpeed/buildstrap/internal/matrix"
)

const testMatrix = `
distros:
  rhel:
    dist: el
    dir: redhat
    description: CentOS/RHEL
    rpmbuilder_name: centos
    versions_check: false
    versions: [9, 8]
  amazonlinux:
    dist: amzn
    dir: amzn
    description: Amazon Linux & friends
    versions_check: false
    versions: [2023]
collections:
  nginx:
    branches:
      mainline: {}
`

func loadMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	m, err := matrix.Parse([]byte(testMatrix))
	require.NoError(t, err)
	return m
}

func TestShellArrays(t *testing.T) {
	got := string(ShellArrays(loadMatrix(t)))
	want := `#!/bin/bash
# auto-generated by buildstrap from matrix.yml
# mapping of dists to directories:
declare -A dists=(
  ["el9"]="redhat/9"
  ["el8"]="redhat/8"
  ["amzn2023"]="amzn/2023"
)
# mapping of directories to full descriptive names:
declare -A os_long=(
  ["redhat"]="CentOS/RHEL"
  ["amzn"]="Amazon Linux & friends"
)
`
	assert.Equal(t, want, got)
}

func TestDistroVersionsAndDefaults(t *testing.T) {
	m := loadMatrix(t)

	data, err := DistroVersionsJSON(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"include\": [\n        {\n")

	var parsed struct {
		Include []struct {
			OS      string `json:"os"`
			Version int    `json:"version"`
		} `json:"include"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Len(t, parsed.Include, 3)
	assert.Equal(t, "centos", parsed.Include[0].OS)
	assert.Equal(t, 9, parsed.Include[0].Version)
	assert.Equal(t, "amazonlinux", parsed.Include[2].OS)

	assert.Equal(t, "centos 9\ncentos 8\namazonlinux 2023\n", string(Defaults(m)))
}

func TestMatrixJSON(t *testing.T) {
	data, err := MatrixJSON(loadMatrix(t))
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "{\n    \"distro_defaults\": "), out)
	assert.Contains(t, out, "Amazon Linux & friends", "HTML characters stay unescaped")
	assert.Less(t, strings.Index(out, `"rhel"`), strings.Index(out, `"amazonlinux"`))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Contains(t, generic, "collections")
}

func TestWriterSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrix.sh")

	var w Writer
	res, err := w.Write(path, []byte("one\n"), 0o755)
	require.NoError(t, err)
	assert.Equal(t, StatusWritten, res.Status)
	assert.Equal(t, Digest([]byte("one\n")), res.Digest)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	before := info.ModTime()
	res, err = w.Write(path, []byte("one\n"), 0o755)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, res.Status)
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before, info.ModTime())

	res, err = w.Write(path, []byte("two\n"), 0o755)
	require.NoError(t, err)
	assert.Equal(t, StatusWritten, res.Status)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
	assert.Len(t, w.Results, 3)
}

func TestWriterCheckMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))

	w := Writer{Check: true}
	res, err := w.Write(path, []byte("a\nc\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, StatusDrifted, res.Status)
	assert.Contains(t, res.Diff, "-b\n")
	assert.Contains(t, res.Diff, "+c\n")
	assert.Contains(t, res.Diff, "(generated)")

	missing := filepath.Join(dir, "new.yml")
	res, err = w.Write(missing, []byte("x\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, StatusDrifted, res.Status)
	_, err = os.Stat(missing)
	assert.True(t, errors.Is(err, os.ErrNotExist), "check mode never writes")

	res, err = w.Write(path, []byte("a\nb\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, res.Status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
	assert.Len(t, w.Drifted(), 2)
}

func TestWriteAllAndRequireDir(t *testing.T) {
	dir := t.TempDir()
	var w Writer
	require.NoError(t, w.WriteAll(dir,
		File{Name: DefaultsFile, Data: []byte("centos 9\n")},
		File{Name: ShellArraysFile, Data: []byte("#!/bin/bash\n"), Mode: 0o755},
	))
	assert.FileExists(t, filepath.Join(dir, DefaultsFile))
	assert.FileExists(t, filepath.Join(dir, ShellArraysFile))

	assert.NoError(t, RequireDir(dir))
	err := RequireDir(filepath.Join(dir, "rpmbuilder"))
	assert.True(t, errors.Is(err, ErrMissingDir))
	err = RequireDir(filepath.Join(dir, DefaultsFile))
	assert.True(t, errors.Is(err, ErrMissingDir))
}
