package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akselw/stampede/internal/adapters/upstream"
	e "github.com/akselw/stampede/internal/errors"
	"github.com/akselw/stampede/internal/ratelimiting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter() ratelimiting.RequestLimiter {
	return ratelimiting.NewWindowLimitRequestLimiter(10, time.Second, time.Now, time.After)
}

func TestHTTPProviderGetDocument(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents", r.URL.Path)
		require.Equal(t, "some-key", r.URL.Query().Get("key"))
		require.Equal(t, "secret", r.Header.Get("API-Key"))

		w.Write([]byte(`{"value":42}`))
	}))
	defer server.Close()

	provider := upstream.NewHTTPProvider(server.Client(), newLimiter(), server.URL, "secret")

	document, err := provider.GetDocument(context.Background(), "some-key")
	require.NoError(t, err)

	assert.Equal(t, "some-key", document.Key)
	assert.JSONEq(t, `{"value":42}`, string(document.Data))
	assert.WithinDuration(t, time.Now(), document.FetchedAt, 5*time.Second)
}

func TestHTTPProviderNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider := upstream.NewHTTPProvider(server.Client(), newLimiter(), server.URL, "")

	_, err := provider.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, e.APIClientError)
}

func TestHTTPProviderUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := upstream.NewHTTPProvider(server.Client(), newLimiter(), server.URL, "")

	_, err := provider.GetDocument(context.Background(), "some-key")
	assert.ErrorIs(t, err, e.UpstreamError)
}

func TestHTTPProviderTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Refuse connections

	provider := upstream.NewHTTPProvider(http.DefaultClient, newLimiter(), server.URL, "")

	_, err := provider.GetDocument(context.Background(), "some-key")
	assert.ErrorIs(t, err, e.UpstreamError)
}
