package ports

import (
	"net/http"
	"time"

	"github.com/akselw/stampede/internal/app"
	"github.com/akselw/stampede/internal/logging"
)

func MakeGetDocumentHandler(getDocument app.GetDocument) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)
		key := r.URL.Query().Get("key")

		document, err := getDocument(ctx, key)
		if err != nil {
			logger.Error("Error getting document", "error", err)
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("Returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		logger.Info("Returning response", "statusCode", http.StatusOK, "reason", "success", "contentLength", len(document.Data))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Stampede-Fetched-At", document.FetchedAt.UTC().Format(time.RFC3339Nano))
		w.WriteHeader(http.StatusOK)
		w.Write(document.Data)
	}
}
