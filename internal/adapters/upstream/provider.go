package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/akselw/stampede/internal/config"
	e "github.com/akselw/stampede/internal/errors"
	"github.com/akselw/stampede/internal/logging"
	"github.com/akselw/stampede/internal/ratelimiting"
	"github.com/akselw/stampede/internal/reporting"
)

// maxUpstreamRequestTime is the operation budget passed to the request
// limiter; requests slower than this are cut off by the HTTP client anyway.
const maxUpstreamRequestTime = 10 * time.Second

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Document is a snapshot of an upstream document at fetch time.
type Document struct {
	Key       string
	Data      []byte
	FetchedAt time.Time
}

type DocumentProvider interface {
	GetDocument(ctx context.Context, key string) (Document, error)
}

type mockedDocumentProvider struct{}

func (provider *mockedDocumentProvider) GetDocument(ctx context.Context, key string) (Document, error) {
	return Document{
		Key:       key,
		Data:      []byte(fmt.Sprintf(`{"key":%q,"source":"mock"}`, key)),
		FetchedAt: time.Now(),
	}, nil
}

type httpDocumentProvider struct {
	httpClient HttpClient
	limiter    ratelimiting.RequestLimiter
	baseURL    string
	apiKey     string
}

func (provider *httpDocumentProvider) GetDocument(ctx context.Context, key string) (Document, error) {
	logger := logging.FromContext(ctx)
	requestURL := fmt.Sprintf("%s/documents?key=%s", provider.baseURL, url.QueryEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return Document{}, err
	}

	if provider.apiKey != "" {
		req.Header.Set("API-Key", provider.apiKey)
	}

	var resp *http.Response
	var doErr error

	start := time.Now()
	ran := provider.limiter.Limit(ctx, maxUpstreamRequestTime, func() {
		resp, doErr = provider.httpClient.Do(req)
	})
	if !ran {
		return Document{}, fmt.Errorf("%w: upstream request budget exhausted", e.RatelimitExceededError)
	}
	if doErr != nil {
		err := fmt.Errorf("%w: failed to send request: %w", e.UpstreamError, doErr)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return Document{}, err
	}

	fetchedAt := time.Now()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("%w: failed to read response body: %w", e.UpstreamError, err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return Document{}, err
	}
	logger.Info("upstream request completed", "status", resp.StatusCode, "duration", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return Document{}, fmt.Errorf("%w: document not found", e.APIClientError)
	default:
		err := fmt.Errorf("%w: upstream status %d", e.UpstreamError, resp.StatusCode)
		reporting.Report(ctx, err, map[string]string{"statusCode": fmt.Sprint(resp.StatusCode)})
		return Document{}, err
	}

	return Document{Key: key, Data: data, FetchedAt: fetchedAt}, nil
}

func NewHTTPProvider(httpClient HttpClient, limiter ratelimiting.RequestLimiter, baseURL, apiKey string) DocumentProvider {
	return &httpDocumentProvider{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func NewHTTPProviderOrMock(config config.Config, httpClient HttpClient, limiter ratelimiting.RequestLimiter) (DocumentProvider, error) {
	if config.UpstreamURL() != "" {
		return NewHTTPProvider(httpClient, limiter, config.UpstreamURL(), config.UpstreamAPIKey()), nil
	}
	if config.IsDevelopment() {
		return &mockedDocumentProvider{}, nil
	}
	return nil, fmt.Errorf("Missing upstream URL in non-development environment")
}
