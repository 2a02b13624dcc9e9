package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/pipeline"
)

const testMatrix = `
distros:
  rhel:
    dist: el
    versions_check: false
    versions: [9, 8]
    has_plesk: true
  amazonlinux:
    dist: amzn
    versions_check: false
    versions: [2023]
    has_aarch64: false
collections:
  nginx:
    branches:
      stable:
        git_branch: master
      mainline: {}
      plesk:
        requires_plesk: true
        only_archs: [x86_64]
        plesk: 18
`

func loadMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	m, err := matrix.Parse([]byte(testMatrix))
	require.NoError(t, err)
	return m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadSettingsMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, &Settings{}, s)

	writeFile(t, filepath.Join(dir, SettingsFile), "")
	s, err = LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, &Settings{}, s)
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(`
archs: [x86_64]
exclude_archs: aarch64
exclude:
  - el7
  - "amzn*-aarch64"
branches: [master, develop]
branch: master
collection: nginx
resource_class: large
`))
	require.NoError(t, err)
	assert.Equal(t, StringList{"x86_64"}, s.Archs)
	assert.Equal(t, StringList{"aarch64"}, s.ExcludeArchs)
	assert.Equal(t, StringList{"el7", "amzn*-aarch64"}, s.Exclude)
	assert.Equal(t, []string{"master", "develop"}, s.Branches.Names())
	assert.Equal(t, StringList{"master"}, s.Branch)
	assert.Nil(t, s.ExcludeBranches)
	assert.Equal(t, "nginx", s.Collection)
	assert.Equal(t, "large", s.ResourceClass)
}

func TestParseSettingsErrors(t *testing.T) {
	_, err := ParseSettings([]byte("archs: [x86_64"))
	assert.Error(t, err)

	_, err = ParseSettings([]byte("archs: {a: b}"))
	assert.Error(t, err)
}

func TestScanSpec(t *testing.T) {
	tests := []struct {
		name  string
		specs map[string]string
		want  []string
	}{
		{name: "no spec", specs: nil, want: nil},
		{
			name:  "noarch",
			specs: map[string]string{"foo.spec": "Name: foo\nBuildArch:\t   noarch\n"},
			want:  []string{"noarch"},
		},
		{
			name:  "exclusive arch",
			specs: map[string]string{"foo.spec": "Name: foo\n  ExclusiveArch:  x86_64   aarch64\nBuildArch: noarch\n"},
			want:  []string{"x86_64", "aarch64"},
		},
		{
			name:  "arch specific build arch is ignored",
			specs: map[string]string{"foo.spec": "BuildArch: x86_64\nExclusiveArch: x86_64\n"},
			want:  []string{"x86_64"},
		},
		{
			name:  "several specs are not scanned",
			specs: map[string]string{"a.spec": "BuildArch: noarch\n", "b.spec": "BuildArch: noarch\n"},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, body := range tt.specs {
				writeFile(t, filepath.Join(dir, name), body)
			}
			got, err := ScanSpec(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Archs)
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lua-resty-core")
	require.NoError(t, os.Mkdir(dir, 0o755))

	p, err := Resolve(dir, nil, loadMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"x86_64", "aarch64"}, p.Archs)
	assert.Empty(t, p.Collection)
	assert.Equal(t, []string{"master"}, p.Branches.Names())
	assert.Equal(t, "medium", p.ResourceClass)
	assert.Equal(t, pipeline.KindPlain, p.Kind)
	assert.True(t, p.Options().SingleBranch)
}

func TestResolveNginxDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nginx-module-brotli")
	require.NoError(t, os.Mkdir(dir, 0o755))

	p, err := Resolve(dir, &Settings{ExcludeBranches: StringList{"plesk"}}, loadMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, "nginx", p.Collection)
	assert.Equal(t, pipeline.KindNginx, p.Kind)
	assert.Equal(t, []string{"stable", "mainline"}, p.Branches.Names())
	assert.False(t, p.Options().SingleBranch)
}

func TestResolveBranchOverrideOrder(t *testing.T) {
	dir := t.TempDir()
	s := &Settings{
		Collection:      "nginx",
		Branch:          StringList{"stable", "plesk", "unknown"},
		ExcludeBranches: StringList{"plesk"},
	}
	p, err := Resolve(dir, s, loadMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"stable"}, p.Branches.Names())

	s = &Settings{Collection: "nginx", Branches: matrix.BranchSet{{Name: "develop"}}}
	p, err = Resolve(dir, s, loadMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"develop"}, p.Branches.Names())
}

func TestResolveArchPipeline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "foo.spec"), "BuildArch: noarch\n")

	p, err := Resolve(dir, &Settings{Archs: StringList{"x86_64"}}, loadMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"noarch"}, p.Archs, "the RPM spec file wins over settings")
	assert.Equal(t, "small", p.ResourceClass)

	p, err = Resolve(dir, &Settings{ResourceClass: "large"}, loadMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, "large", p.ResourceClass)

	p, err = Resolve(t.TempDir(), &Settings{ExcludeArchs: StringList{"aarch64"}}, loadMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"x86_64"}, p.Archs)
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve(t.TempDir(), &Settings{Collection: "apache"}, loadMatrix(t))
	assert.True(t, errors.Is(err, matrix.ErrUnknownCollection))

	_, err = Resolve(t.TempDir(), &Settings{Exclude: StringList{"[unterminated"}}, loadMatrix(t))
	assert.Error(t, err)
}

func TestPlanDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nginx-module-foo")
	require.NoError(t, os.Mkdir(dir, 0o755))
	m := loadMatrix(t)

	p, err := Resolve(dir, &Settings{Exclude: StringList{"amzn*"}}, m)
	require.NoError(t, err)

	tuples, err := p.Expand(m)
	require.NoError(t, err)
	for _, tup := range tuples {
		assert.Equal(t, "el", tup.Dist)
	}

	doc, err := p.Document(m)
	require.NoError(t, err)
	names := doc.Workflows.Names()
	assert.Contains(t, names, "build-deploy-el9-stable-x86_64")
	assert.Contains(t, names, "build-deploy-el8-mainline-aarch64")
	assert.Contains(t, names, "build-deploy-el9-plesk-x86_64")
	assert.NotContains(t, names, "build-deploy-el9-plesk-aarch64")

	w, ok := doc.Workflows.Get("build-deploy-el9-stable-x86_64")
	require.True(t, ok)
	assert.Equal(t, []string{"master", "main", "stable"}, w.Build().Filters.Branches.Only)
}
