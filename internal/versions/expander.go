// Package versions computes the OS majors each distro is built against.
package versions

import (
	"context"
	"fmt"

	"github.com/GetPageSpeed/buildstrap/internal/log"
	"github.com/GetPageSpeed/buildstrap/internal/matrix"
	"github.com/GetPageSpeed/buildstrap/internal/resolver"
)

// Expand returns a copy of d whose Versions hold the current major, the
// configured number of prior majors and, for rolling distros, current+1
// appended last. Distros with version checks disabled keep their declared
// versions and the resolver is not consulted.
func Expand(ctx context.Context, d matrix.Distro, r resolver.Resolver) (matrix.Distro, error) {
	out := d.Clone()
	if !d.CheckVersions {
		return out, nil
	}

	current, err := r.LatestMajor(ctx, d.Lookup())
	if err != nil {
		return matrix.Distro{}, fmt.Errorf("resolve latest major of %q: %w", d.Name, err)
	}

	count := d.OSVersions
	if count < 1 {
		count = matrix.DefaultOSVersions
	}
	if current-(count-1) < 1 {
		return matrix.Distro{}, fmt.Errorf("distro %q: latest major %d cannot cover %d versions", d.Name, current, count)
	}

	out.Versions = make([]int, 0, count+1)
	for i := 0; i < count; i++ {
		out.Versions = append(out.Versions, current-i)
	}
	if d.Rolling {
		out.Versions = append(out.Versions, current+1)
	}
	return out, nil
}

// ExpandAll expands every distro in declaration order and returns a new
// matrix. The first resolver failure aborts the whole run.
func ExpandAll(ctx context.Context, m *matrix.Matrix, r resolver.Resolver) (*matrix.Matrix, error) {
	distros := make([]matrix.Distro, 0, len(m.Distros))
	for _, d := range m.Distros {
		expanded, err := Expand(ctx, d, r)
		if err != nil {
			return nil, err
		}
		log.WithDistro(d.Name).Debug("versions expanded",
			"dist", expanded.Dist,
			"versions", expanded.Versions,
			"checked", d.CheckVersions)
		distros = append(distros, expanded)
	}

	next := m.WithDistros(distros)
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("expanded matrix: %w", err)
	}
	return next, nil
}

// Validate checks the version set invariant: strictly decreasing by one,
// optionally followed by a single rolling entry equal to the first plus one.
func Validate(d matrix.Distro) error {
	vs := d.Versions
	if len(vs) == 0 {
		return nil
	}
	n := len(vs)
	if n > 1 && vs[n-1] == vs[0]+1 {
		n--
	}
	for i := 1; i < n; i++ {
		if vs[i] != vs[i-1]-1 {
			return fmt.Errorf("distro %q: versions %v are not consecutive descending majors", d.Name, vs)
		}
	}
	return nil
}
