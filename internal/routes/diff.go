package routes

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/geometry"
	"pixelview/internal/myhttp"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"
	"pixelview/internal/storage"
	"pixelview/internal/telemetry"

	"golang.org/x/xerrors"
)

const maxMemory = 32 << 20

// Diff compares the multipart files "baseline" and "target". Optional form
// fields override the engine defaults: geometry1, geometry2, compareType,
// stopOnFirstDiff, failPixels, regions, encoding and store.
func Diff(defaults diffimage.Config, storageClient storage.Storage, metrics *telemetry.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		if err := r.ParseMultipartForm(maxMemory); err != nil {
			logger.Debug("failed to parse form", "error", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		baseline, err := readBuffer(r.MultipartForm, "baseline")
		if err != nil {
			logger.Debug("failed to read baseline", "error", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		target, err := readBuffer(r.MultipartForm, "target")
		if err != nil {
			logger.Debug("failed to read target", "error", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		request, err := parseDiffForm(r, defaults)
		if err != nil {
			logger.Debug("invalid diff parameters", "error", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		result := diffimage.NewEngine(request.config).Diff(baseline, request.geometry1, target, request.geometry2)
		metrics.RecordComparison(r.Context(), request.config.CompareType.String(), report.Outcome(result))

		options := report.Options{
			CompareType:     request.config.CompareType,
			Image1:          baseline.SourcePath,
			Image2:          target.SourcePath,
			Artifacts:       true,
			Encoding:        request.encoding,
			RegionProximity: request.regionProximity,
		}
		if request.store {
			if storageClient == nil {
				http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
				return
			}
			options.Storage = storageClient
			options.KeyPrefix = "diff/" + time.Now().UTC().Format("20060102150405.000000000")
		}

		body, err := report.New(r.Context(), result, options)
		if err != nil {
			logger.Error("failed to build report", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		logger.Info("compared", "compareType", options.CompareType.String(), "isDiff", result.IsDiff)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("failed to encode response", "error", err)
		}
	}
}

type diffRequest struct {
	config          diffimage.Config
	geometry1       *geometry.Geometry
	geometry2       *geometry.Geometry
	encoding        report.Encoding
	store           bool
	regionProximity int
}

func parseDiffForm(r *http.Request, defaults diffimage.Config) (*diffRequest, error) {
	request := &diffRequest{
		config:          defaults,
		regionProximity: -1,
	}

	var err error
	if v := r.FormValue("geometry1"); v != "" {
		if request.geometry1, err = parseGeometry(v); err != nil {
			return nil, err
		}
	}
	if v := r.FormValue("geometry2"); v != "" {
		if request.geometry2, err = parseGeometry(v); err != nil {
			return nil, err
		}
	}
	if v := r.FormValue("compareType"); v != "" {
		if request.config.CompareType, err = diffimage.ParseCompareType(v); err != nil {
			return nil, err
		}
	}
	if v := r.FormValue("stopOnFirstDiff"); v != "" {
		if request.config.StopOnFirstDiff, err = strconv.ParseBool(v); err != nil {
			return nil, xerrors.Errorf("stopOnFirstDiff: %w", err)
		}
	}
	if v := r.FormValue("failPixels"); v != "" {
		if request.config.CollectFailPixels, err = strconv.ParseBool(v); err != nil {
			return nil, xerrors.Errorf("failPixels: %w", err)
		}
	}
	if v := r.FormValue("regions"); v != "" {
		if request.regionProximity, err = strconv.Atoi(v); err != nil {
			return nil, xerrors.Errorf("regions: %w", err)
		}
	}
	if request.regionProximity >= 0 {
		// Regions are built from the fail pixel lists.
		request.config.CollectFailPixels = true
	}
	if request.encoding, err = report.ParseEncoding(r.FormValue("encoding")); err != nil {
		return nil, err
	}
	if v := r.FormValue("store"); v != "" {
		if request.store, err = strconv.ParseBool(v); err != nil {
			return nil, xerrors.Errorf("store: %w", err)
		}
	}

	return request, nil
}

func parseGeometry(s string) (*geometry.Geometry, error) {
	g, err := geometry.Parse(s)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func readBuffer(form *multipart.Form, field string) (*pixelbuf.PixelBuffer, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, xerrors.Errorf("missing form file %q", field)
	}

	f, err := files[0].Open()
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, xerrors.Errorf("failed to read %s: %w", field, err)
	}

	b, err := pixelbuf.DecodeAny(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", field, err)
	}
	b.SourcePath = files[0].Filename
	return b, nil
}
