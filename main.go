package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/akselw/stampede/internal/adapters/upstream"
	"github.com/akselw/stampede/internal/app"
	"github.com/akselw/stampede/internal/coalescing"
	"github.com/akselw/stampede/internal/config"
	"github.com/akselw/stampede/internal/logging"
	"github.com/akselw/stampede/internal/ports"
	"github.com/akselw/stampede/internal/ratelimiting"
	"github.com/akselw/stampede/internal/reporting"
	"github.com/akselw/stampede/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const upstreamRequestsPerMinute = 120

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	otelShutdown, err := telemetry.SetupOTelSDK(context.Background(), "stampede")
	if err != nil {
		fail("Failed to set up OpenTelemetry", "error", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}
	upstreamLimiter := ratelimiting.NewWindowLimitRequestLimiter(upstreamRequestsPerMinute, time.Minute, time.Now, time.After)
	provider, err := upstream.NewHTTPProviderOrMock(conf, httpClient, upstreamLimiter)
	if err != nil {
		fail("Failed to initialize upstream provider", "error", err.Error())
	}
	logger.Info("Initialized upstream provider")

	group := coalescing.New(
		func(ctx context.Context, key string) (upstream.Document, error) {
			return provider.GetDocument(ctx, key)
		},
		func(document upstream.Document) time.Duration {
			return conf.CacheTTL()
		},
	)
	defer group.Stop()

	rateLimiter, stopRateLimiter := ratelimiting.NewTokenBucketRateLimiter(2, 120)
	defer stopRateLimiter()
	requestRateLimiter := ratelimiting.NewRequestBasedRateLimiter(rateLimiter, ratelimiting.IPKeyFunc)

	getDocument := app.BuildGetDocument(group)
	invalidateDocument := app.BuildInvalidateDocument(group)

	middleware := ports.ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(logger),
		sentryMiddleware,
		ports.NewMetricsMiddleware(),
		ports.NewRateLimitMiddleware(requestRateLimiter),
	)

	http.HandleFunc("GET /v1/document", middleware(ports.MakeGetDocumentHandler(getDocument)))
	http.HandleFunc("POST /v1/invalidate", middleware(ports.MakeInvalidateDocumentHandler(invalidateDocument)))

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", conf.Port()), otelhttp.NewHandler(http.DefaultServeMux, "stampede"))
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
