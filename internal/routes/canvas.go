package routes

import (
	"encoding/json"
	"net/http"

	"pixelview/internal/myhttp"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"
)

const (
	defaultCanvasWidth  = 320
	defaultCanvasHeight = 240
	maxCanvasPixels     = 8192 * 8192
)

type CanvasRequest struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Color    [3]uint8 `json:"color"`
	Alpha    *uint8   `json:"alpha,omitempty"`
	Encoding string   `json:"encoding,omitempty"`
}

// Canvas returns a solid colour buffer, RGBA when alpha is given.
func Canvas() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		request := CanvasRequest{
			Width:  defaultCanvasWidth,
			Height: defaultCanvasHeight,
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&request); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if request.Width <= 0 || request.Height <= 0 || request.Width*request.Height > maxCanvasPixels {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		encoding, err := report.ParseEncoding(request.Encoding)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		format := pixelbuf.RGB
		color := request.Color[:]
		if request.Alpha != nil {
			format = pixelbuf.RGBA
			color = append(color, *request.Alpha)
		}
		b, err := pixelbuf.NewFilled(request.Width, request.Height, format, color)
		if err != nil {
			logger.Error("failed to create canvas", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		data, _, err := report.Encode(b, encoding)
		if err != nil {
			logger.Error("failed to encode canvas", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		contentType := "application/octet-stream"
		if encoding == report.PNGEncoding {
			contentType = "image/png"
		}
		w.Header().Set("Content-Type", contentType)
		if _, err := w.Write(data); err != nil {
			logger.Debug("failed to write response", "error", err)
		}
	}
}
