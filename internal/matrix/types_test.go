package matrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchTriggers(t *testing.T) {
	tests := []struct {
		name   string
		branch Branch
		want   []string
	}{
		{name: "master co-triggers main group", branch: Branch{Name: "master"}, want: []string{"master", "main", "stable"}},
		{name: "stable variant on master", branch: Branch{Name: "stable", GitBranch: "master"}, want: []string{"master", "main", "stable"}},
		{name: "feature branch", branch: Branch{Name: "mainline"}, want: []string{"mainline"}},
		{name: "explicit aliases", branch: Branch{Name: "master", Aliases: []string{"main"}}, want: []string{"master", "main"}},
		{name: "empty aliases disable main group", branch: Branch{Name: "master", Aliases: []string{}}, want: []string{"master"}},
		{name: "duplicates removed", branch: Branch{Name: "quic", Aliases: []string{"quic", "nginx-quic"}}, want: []string{"quic", "nginx-quic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.branch.Triggers())
		})
	}
}

func TestBranchSetKeepDrop(t *testing.T) {
	s := BranchSet{{Name: "stable"}, {Name: "mainline"}, {Name: "plesk"}}
	assert.Equal(t, []string{"stable", "plesk"}, s.Keep([]string{"plesk", "stable"}).Names())
	assert.Equal(t, []string{"stable", "mainline"}, s.Drop([]string{"plesk"}).Names())
}

func TestDistroKey(t *testing.T) {
	d := Distro{Name: "rhel", Dist: "el"}
	assert.Equal(t, "el9", d.Key(9))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("distros: {}\n"), 0o644))

	got, err := Discover(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = Discover(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	t.Setenv(EnvMatrixPath, path)
	got, err = Discover("")
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestDiscoverOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{SourceFile, ResolvedFile} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("distros: {}\n"), 0o644))
	}
	t.Chdir(dir)
	t.Setenv(EnvMatrixPath, "")

	got, err := Discover("")
	require.NoError(t, err)
	assert.Equal(t, SourceFile, got, "refresh reads the source matrix")

	got, err = DiscoverResolved("")
	require.NoError(t, err)
	assert.Equal(t, ResolvedFile, got, "generation reads resolved versions")

	require.NoError(t, os.Remove(ResolvedFile))
	got, err = DiscoverResolved("")
	require.NoError(t, err)
	assert.Equal(t, SourceFile, got)
}

func TestRequireResolved(t *testing.T) {
	m := &Matrix{Distros: []Distro{
		{Name: "rhel", Dist: "el", CheckVersions: true},
		{Name: "sles", Dist: "sles", Versions: []int{15}},
		{Name: "fedora", Dist: "fc", CheckVersions: true, Versions: []int{41, 40}},
	}}
	assert.Equal(t, []string{"rhel"}, m.Unresolved())
	err := m.RequireResolved()
	require.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), "rhel")

	m.Distros[0].Versions = []int{9, 8}
	assert.NoError(t, m.RequireResolved())
}
