package coalescing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type coalescingMetricsCollection struct {
	requestCount metric.Int64Counter
	removalCount metric.Int64Counter
	failureCount metric.Int64Counter
}

var metrics coalescingMetricsCollection

func init() {
	const name = "stampede/coalescing"
	meter := otel.Meter(name)

	requestCount, err := meter.Int64Counter(
		"coalescing/request_count",
		metric.WithDescription("Total number of requests by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request count metric: %w", err))
	}

	removalCount, err := meter.Int64Counter(
		"coalescing/removal_count",
		metric.WithDescription("Cached entries removed by expiry or invalidation"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create removal count metric: %w", err))
	}

	failureCount, err := meter.Int64Counter(
		"coalescing/failure_count",
		metric.WithDescription("Executions that resolved with a failure"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create failure count metric: %w", err))
	}

	metrics = coalescingMetricsCollection{
		requestCount: requestCount,
		removalCount: removalCount,
		failureCount: failureCount,
	}
}

func recordEvent(ctx context.Context, event Event) {
	switch event {
	case EventMiss:
		metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "miss")))
	case EventCoalesced:
		metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "coalesced")))
	case EventHit:
		metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "hit")))
	case EventExpired:
		metrics.removalCount.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "expired")))
	case EventInvalidated:
		metrics.removalCount.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalidated")))
	case EventFailed:
		metrics.failureCount.Add(ctx, 1)
	}
}
