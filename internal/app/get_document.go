package app

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/akselw/stampede/internal/adapters/upstream"
	"github.com/akselw/stampede/internal/coalescing"
	e "github.com/akselw/stampede/internal/errors"
	"github.com/akselw/stampede/internal/logging"
	"github.com/akselw/stampede/internal/reporting"
)

const maxKeyLength = 256

type GetDocument func(ctx context.Context, key string) (upstream.Document, error)

type InvalidateDocument func(ctx context.Context, key string) error

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key exceeds %d bytes", maxKeyLength)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("key contains control characters")
		}
	}
	return nil
}

func BuildGetDocument(group *coalescing.Group[string, upstream.Document]) GetDocument {
	return func(ctx context.Context, key string) (upstream.Document, error) {
		if err := validateKey(key); err != nil {
			logging.FromContext(ctx).Error("invalid document key", "error", err.Error())
			return upstream.Document{}, fmt.Errorf("%w: %w", e.APIClientError, err)
		}

		document, err := group.Call(ctx, key)
		if err != nil {
			// NOTE: The upstream provider handles its own error reporting,
			// but a crashed handler has had no chance to.
			var panicError *coalescing.PanicError
			if errors.As(err, &panicError) {
				reporting.Report(reporting.AddExtrasToContext(ctx, map[string]string{"key": key}), err)
			}
			return upstream.Document{}, fmt.Errorf("failed to get document: %w", err)
		}

		return document, nil
	}
}

func BuildInvalidateDocument(group *coalescing.Group[string, upstream.Document]) InvalidateDocument {
	return func(ctx context.Context, key string) error {
		if err := validateKey(key); err != nil {
			logging.FromContext(ctx).Error("invalid document key", "error", err.Error())
			return fmt.Errorf("%w: %w", e.APIClientError, err)
		}

		if err := group.Expire(ctx, key); err != nil {
			return fmt.Errorf("failed to invalidate document: %w", err)
		}

		return nil
	}
}
