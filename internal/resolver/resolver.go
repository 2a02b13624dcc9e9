// Package resolver looks up the latest major release of an operating system.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks github.com/GetPageSpeed/buildstrap/internal/resolver Resolver

var (
	// ErrUnknownDistro is returned when the release source has no record of a distro.
	ErrUnknownDistro = errors.New("unknown distro")
	// ErrLookupFailed wraps transport and decoding failures.
	ErrLookupFailed = errors.New("version lookup failed")
)

// Resolver returns the latest known major release number of a distro.
type Resolver interface {
	LatestMajor(ctx context.Context, distro string) (int, error)
}

// Static resolves from a fixed table.
type Static map[string]int

// LatestMajor implements Resolver.
func (s Static) LatestMajor(_ context.Context, distro string) (int, error) {
	v, ok := s[distro]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownDistro, distro)
	}
	return v, nil
}

// Pinned answers from Pins first and defers everything else to Next.
type Pinned struct {
	Pins Static
	Next Resolver
}

// LatestMajor implements Resolver.
func (p Pinned) LatestMajor(ctx context.Context, distro string) (int, error) {
	if v, ok := p.Pins[distro]; ok {
		return v, nil
	}
	if p.Next == nil {
		return 0, fmt.Errorf("%w %q", ErrUnknownDistro, distro)
	}
	return p.Next.LatestMajor(ctx, distro)
}

// ParsePins parses "distro=major" pairs as given on the command line.
func ParsePins(pairs []string) (Static, error) {
	pins := make(Static, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid pin %q (expected distro=major)", pair)
		}
		major, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || major < 1 {
			return nil, fmt.Errorf("invalid pin %q: major must be a positive integer", pair)
		}
		pins[name] = major
	}
	return pins, nil
}
