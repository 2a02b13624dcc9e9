package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newReleaseAPI serves canned release-cycle documents keyed by product.
func newReleaseAPI(t *testing.T, products map[string]string) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	r := chi.NewRouter()
	r.Get("/api/{product}.json", func(w http.ResponseWriter, req *http.Request) {
		hits++
		body, ok := products[chi.URLParam(req, "product")]
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	r.Get("/api/broken.json", func(w http.ResponseWriter, req *http.Request) {
		hits++
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHTTPResolverLatestMajor(t *testing.T) {
	srv, hits := newReleaseAPI(t, map[string]string{
		"rhel":         `[{"cycle":"9","latest":"9.4"},{"cycle":"8","latest":"8.10"},{"cycle":"7"}]`,
		"fedora":       `[{"cycle":"39"},{"cycle":"41"},{"cycle":"40"}]`,
		"amazon-linux": `[{"cycle":2023},{"cycle":"2"}]`,
		"sles":         `[{"cycle":"15.6"},{"cycle":"15 SP5"},{"cycle":"12.5"}]`,
		"debian":       `[{"cycle":"bookworm"}]`,
		"garbage":      `{"not":"a list"}`,
	})
	r := NewHTTPResolver(srv.URL+"/", srv.Client())

	tests := []struct {
		distro  string
		want    int
		wantErr error
	}{
		{distro: "rhel", want: 9},
		{distro: "fedora", want: 41},
		{distro: "amazon-linux", want: 2023},
		{distro: "sles", want: 15},
		{distro: "debian", wantErr: ErrLookupFailed},
		{distro: "garbage", wantErr: ErrLookupFailed},
		{distro: "plan9", wantErr: ErrUnknownDistro},
		{distro: "broken", wantErr: ErrLookupFailed},
	}
	for _, tt := range tests {
		t.Run(tt.distro, func(t *testing.T) {
			got, err := r.LatestMajor(context.Background(), tt.distro)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, len(tests), *hits, "each lookup is a single request, never retried")
}

func TestHTTPResolverTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewHTTPResolver(srv.URL, nil).LatestMajor(context.Background(), "rhel")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLookupFailed))
}

func TestNewHTTPResolverDefaults(t *testing.T) {
	r := NewHTTPResolver("", nil)
	assert.Equal(t, DefaultBaseURL, r.BaseURL)
	assert.NotNil(t, r.Client)
}
