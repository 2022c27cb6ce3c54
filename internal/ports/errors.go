package ports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akselw/stampede/internal/coalescing"
	e "github.com/akselw/stampede/internal/errors"
	"github.com/akselw/stampede/internal/logging"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, responseError error) int {
	w.Header().Set("Content-Type", "application/json")

	errorBytes, err := json.Marshal(errorResponse{
		Success: false,
		Cause:   responseError.Error(),
	})
	if err != nil {
		logging.FromContext(ctx).Error("Error marshalling error response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"Internal server error (stampede)"}`))
		return http.StatusInternalServerError
	}

	// Unknown error: default to 500
	statusCode := http.StatusInternalServerError

	if errors.Is(responseError, e.APIClientError) {
		statusCode = http.StatusBadRequest
	} else if errors.Is(responseError, e.RatelimitExceededError) {
		statusCode = http.StatusTooManyRequests
	} else if errors.Is(responseError, e.UpstreamError) {
		statusCode = http.StatusBadGateway
	} else if errors.Is(responseError, coalescing.ErrStopped) {
		statusCode = http.StatusServiceUnavailable
	} else if errors.Is(responseError, context.DeadlineExceeded) {
		statusCode = http.StatusGatewayTimeout
	}

	w.WriteHeader(statusCode)
	w.Write(errorBytes)
	return statusCode
}
