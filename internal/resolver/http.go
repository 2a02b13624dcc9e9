package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// DefaultBaseURL is the public release-cycle API.
const DefaultBaseURL = "https://endoflife.date"

// HTTPResolver queries an endoflife.date compatible API:
// GET {BaseURL}/api/{distro}.json returns the release cycles of a product.
type HTTPResolver struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPResolver creates a resolver for baseURL. An empty baseURL selects
// DefaultBaseURL; a nil client gets a 30s timeout.
func NewHTTPResolver(baseURL string, client *http.Client) *HTTPResolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPResolver{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// cycle is one release cycle entry; the API emits the cycle as a string or
// a bare number depending on the product.
type cycle struct {
	Cycle cycleName `json:"cycle"`
}

type cycleName string

func (c *cycleName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = cycleName(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cycle must be a string or number: %w", err)
	}
	*c = cycleName(n.String())
	return nil
}

// LatestMajor implements Resolver. The highest parseable cycle wins.
func (r *HTTPResolver) LatestMajor(ctx context.Context, distro string) (int, error) {
	endpoint := fmt.Sprintf("%s/api/%s.json", r.BaseURL, url.PathEscape(distro))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request for %q: %v", ErrLookupFailed, distro, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrLookupFailed, distro, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w %q", ErrUnknownDistro, distro)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: %q: HTTP %d: %s", ErrLookupFailed, distro, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cycles []cycle
	if err := json.NewDecoder(resp.Body).Decode(&cycles); err != nil {
		return 0, fmt.Errorf("%w: %q: decode response: %v", ErrLookupFailed, distro, err)
	}
	return latestMajor(distro, cycles)
}

func latestMajor(distro string, cycles []cycle) (int, error) {
	versions := make(semver.Collection, 0, len(cycles))
	for _, c := range cycles {
		// Cycles such as "15 SP5" or "bookworm" carry no usable major.
		v, err := semver.NewVersion(strings.TrimSpace(string(c.Cycle)))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("%w: %q: no numeric release cycles", ErrLookupFailed, distro)
	}
	sort.Sort(versions)
	return int(versions[len(versions)-1].Major()), nil
}
