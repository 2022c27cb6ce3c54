package ports_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akselw/stampede/internal/adapters/upstream"
	e "github.com/akselw/stampede/internal/errors"
	"github.com/akselw/stampede/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeGetDocumentHandler(t *testing.T) {
	t.Parallel()

	fetchedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	handler := ports.MakeGetDocumentHandler(func(ctx context.Context, key string) (upstream.Document, error) {
		require.Equal(t, "some-key", key)
		return upstream.Document{Key: key, Data: []byte(`{"value":42}`), FetchedAt: fetchedAt}, nil
	})

	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodGet, "/v1/document?key=some-key", nil))

	response := recorder.Result()
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "application/json", response.Header.Get("Content-Type"))
	assert.Equal(t, fetchedAt.Format(time.RFC3339Nano), response.Header.Get("X-Stampede-Fetched-At"))
	assert.JSONEq(t, `{"value":42}`, recorder.Body.String())
}

func TestMakeGetDocumentHandlerErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "client error", err: fmt.Errorf("%w: key is empty", e.APIClientError), statusCode: http.StatusBadRequest},
		{name: "ratelimit", err: fmt.Errorf("%w: upstream request budget exhausted", e.RatelimitExceededError), statusCode: http.StatusTooManyRequests},
		{name: "upstream", err: fmt.Errorf("%w: upstream status 503", e.UpstreamError), statusCode: http.StatusBadGateway},
		{name: "timeout", err: fmt.Errorf("failed to get document: %w", context.DeadlineExceeded), statusCode: http.StatusGatewayTimeout},
		{name: "unknown", err: fmt.Errorf("something else"), statusCode: http.StatusInternalServerError},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			handler := ports.MakeGetDocumentHandler(func(ctx context.Context, key string) (upstream.Document, error) {
				return upstream.Document{}, testCase.err
			})

			recorder := httptest.NewRecorder()
			handler(recorder, httptest.NewRequest(http.MethodGet, "/v1/document?key=some-key", nil))

			response := recorder.Result()
			require.Equal(t, testCase.statusCode, response.StatusCode)

			var body map[string]any
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["cause"])
		})
	}
}

func TestMakeInvalidateDocumentHandler(t *testing.T) {
	t.Parallel()

	invalidated := []string{}
	handler := ports.MakeInvalidateDocumentHandler(func(ctx context.Context, key string) error {
		invalidated = append(invalidated, key)
		return nil
	})

	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodPost, "/v1/invalidate?key=some-key", nil))

	require.Equal(t, http.StatusOK, recorder.Result().StatusCode)
	assert.JSONEq(t, `{"success":true}`, recorder.Body.String())
	assert.Equal(t, []string{"some-key"}, invalidated)
}

func TestMakeInvalidateDocumentHandlerError(t *testing.T) {
	t.Parallel()

	handler := ports.MakeInvalidateDocumentHandler(func(ctx context.Context, key string) error {
		return fmt.Errorf("%w: key is empty", e.APIClientError)
	})

	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodPost, "/v1/invalidate", nil))

	require.Equal(t, http.StatusBadRequest, recorder.Result().StatusCode)
}
