package ports

import (
	"net/http"

	"github.com/akselw/stampede/internal/app"
	"github.com/akselw/stampede/internal/logging"
)

func MakeInvalidateDocumentHandler(invalidateDocument app.InvalidateDocument) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)
		key := r.URL.Query().Get("key")

		if err := invalidateDocument(ctx, key); err != nil {
			logger.Error("Error invalidating document", "error", err)
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("Returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		logger.Info("Returning response", "statusCode", http.StatusOK, "reason", "success")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}
}
