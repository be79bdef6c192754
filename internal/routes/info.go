package routes

import (
	"encoding/json"
	"io"
	"net/http"

	"pixelview/internal/myhttp"
	"pixelview/internal/pixelbuf"
)

// Info decodes the request body as a raw container or PNG and returns its
// metadata.
func Info() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMemory))
		if err != nil {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}

		b, err := pixelbuf.DecodeAny(data)
		if err != nil {
			logger.Debug("failed to decode image", "error", err)
			http.Error(w, http.StatusText(http.StatusUnsupportedMediaType), http.StatusUnsupportedMediaType)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b.Info()); err != nil {
			logger.Error("failed to encode response", "error", err)
		}
	}
}
