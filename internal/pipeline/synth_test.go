package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetPageSpeed/buildstrap/internal/expand"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
)

func tuple(branch matrix.Branch, arch string) expand.Tuple {
	return expand.Tuple{Distro: "rhel", Dist: "el", Version: 9, Branch: branch, Arch: arch}
}

func TestSynthesizePlainSingleBranch(t *testing.T) {
	w := Synthesize(tuple(matrix.Branch{Name: "master"}, "x86_64"), Options{SingleBranch: true})

	assert.Equal(t, "build-deploy-el9-x86_64", w.Name)
	require.Len(t, w.Jobs, 2)

	build := w.Build()
	require.NotNil(t, build)
	assert.Equal(t, "build-el9-x86_64", build.Name)
	assert.Equal(t, DefaultContext, build.Context)
	assert.Equal(t, "el9", build.Dist)
	assert.Empty(t, build.ResourceClass)
	assert.Empty(t, build.EnableRepos)
	assert.Equal(t, []string{"master", "main", "stable"}, build.Filters.Branches.Only)

	deploy := w.Deploy()
	require.NotNil(t, deploy)
	assert.Equal(t, "deploy-el9-x86_64", deploy.Name)
	assert.Equal(t, []string{"build-el9-x86_64"}, deploy.Requires)
	assert.Equal(t, "x86_64", deploy.Arch)
	assert.Equal(t, "el9", deploy.Dist)
	assert.Equal(t, build.Filters.Branches.Only, deploy.Filters.Branches.Only)
}

func TestSynthesizeMultiBranchNames(t *testing.T) {
	w := Synthesize(tuple(matrix.Branch{Name: "mainline"}, "x86_64"), Options{Kind: KindNginx})
	assert.Equal(t, "build-deploy-el9-mainline-x86_64", w.Name)
	assert.Equal(t, "build-el9-mainline-x86_64", w.Build().Name)
	assert.Equal(t, []string{"build-el9-mainline-x86_64"}, w.Deploy().Requires)
	assert.Equal(t, []string{"mainline"}, w.Deploy().Filters.Branches.Only)
}

func TestSynthesizeARMResourceClass(t *testing.T) {
	tests := []struct {
		class string
		want  string
	}{
		{class: "", want: "arm.medium"},
		{class: "small", want: "arm.medium"},
		{class: "medium", want: "arm.medium"},
		{class: "large", want: "arm.large"},
	}
	for _, tt := range tests {
		w := Synthesize(tuple(matrix.Branch{Name: "master"}, "aarch64"), Options{ResourceClass: tt.class})
		assert.Equal(t, tt.want, w.Build().ResourceClass, "class %q", tt.class)
		assert.Equal(t, "aarch64", w.Deploy().Arch)
	}
}

func TestSynthesizeNginxBranchParameters(t *testing.T) {
	stable := Synthesize(tuple(matrix.Branch{Name: "stable", GitBranch: "master"}, "x86_64"), Options{Kind: KindNginx})
	assert.Empty(t, stable.Build().EnableRepos)

	mainline := Synthesize(tuple(matrix.Branch{Name: "mainline"}, "x86_64"), Options{Kind: KindNginx})
	assert.Equal(t, "getpagespeed-extras-mainline", mainline.Build().EnableRepos)

	plesk := Synthesize(tuple(matrix.Branch{Name: "plesk", Plesk: 18, EnableRepos: "getpagespeed-extras-plesk"}, "x86_64"), Options{Kind: KindNginx})
	assert.Equal(t, 18, plesk.Build().Plesk)
	assert.Equal(t, "getpagespeed-extras-plesk", plesk.Build().EnableRepos)

	mod := Synthesize(tuple(matrix.Branch{Name: "nginx-mod", Mod: 1}, "x86_64"), Options{Kind: KindNginx})
	assert.Equal(t, 1, mod.Build().Mod)

	plain := Synthesize(tuple(matrix.Branch{Name: "mainline"}, "x86_64"), Options{Kind: KindPlain})
	assert.Empty(t, plain.Build().EnableRepos, "extras repos are only implied for nginx kinds")
}

func TestSynthesizeSelfUsesTagFilters(t *testing.T) {
	w := Synthesize(tuple(matrix.Branch{Name: "master"}, "x86_64"), Options{Kind: KindSelf, SingleBranch: true})

	assert.Nil(t, w.Build().Filters.Branches)
	assert.Equal(t, []string{"/.*/"}, w.Build().Filters.Tags.Only)
	assert.Equal(t, []string{"/^v.*/"}, w.Deploy().Filters.Tags.Only)
	assert.Equal(t, []string{"/.*/"}, w.Deploy().Filters.Branches.Ignore)
}

func TestSynthesizeSpecsOnly(t *testing.T) {
	w := Synthesize(tuple(matrix.Branch{Name: "master"}, "x86_64"), Options{Kind: KindSpecsOnly, SingleBranch: true})
	assert.Equal(t, []string{SpecsBranch}, w.Build().Filters.Branches.Only)
	assert.Equal(t, []string{SpecsBranch}, w.Deploy().Filters.Branches.Only)
}

func TestSynthesizeAllRejectsDuplicates(t *testing.T) {
	tup := tuple(matrix.Branch{Name: "master"}, "x86_64")
	_, err := SynthesizeAll([]expand.Tuple{tup, tup}, Options{SingleBranch: true})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind(" NGINX ")
	require.NoError(t, err)
	assert.Equal(t, KindNginx, got)

	_, err = ParseKind("apache")
	assert.Error(t, err)
}

func TestKindFileNames(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds {
		name := k.FileName()
		assert.False(t, seen[name], "duplicate file name %s", name)
		seen[name] = true
	}
	assert.Equal(t, "generated_config.yml", KindPlain.FileName())
}
