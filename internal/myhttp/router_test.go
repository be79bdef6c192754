package myhttp_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pixelview/internal/myhttp"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestRouterMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	histogram, err := noop.NewMeterProvider().Meter("test").Int64Histogram("test")
	if err != nil {
		t.Fatal(err)
	}

	mux := myhttp.NewServerMux(logger, histogram)
	mux.HandleFuncWithMiddleware("GET /ok", func(w http.ResponseWriter, r *http.Request) {
		myhttp.Logger(r.Context()).Info("handled")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFuncWithMiddleware("GET /panic", func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	t.Run("ScopedLogger", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ok", nil))

		if diff := cmp.Diff(http.StatusNoContent, recorder.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if !strings.Contains(logs.String(), `"traceid"`) {
			t.Errorf("Expected the request logger to carry the trace id, got %s", logs.String())
		}
	})

	t.Run("RecoversNonStringPanic", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/panic", nil))

		if diff := cmp.Diff(http.StatusInternalServerError, recorder.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}
