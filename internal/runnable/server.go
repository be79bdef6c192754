package runnable

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"pixelview/internal/config"
	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/myhttp"
	"pixelview/internal/routes"
	"pixelview/internal/storage"
	"pixelview/internal/telemetry"

	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int

	engineConfig  diffimage.Config
	storageClient storage.Storage
	telemetry     *telemetry.Telemetry
}

func NewServer(engineConfig diffimage.Config, storageClient storage.Storage, t *telemetry.Telemetry) *Server {
	return &Server{
		address:                config.OrDefault("ADDRESS", "0.0.0.0:8383"),
		terminationGracePeriod: config.OrDefault("TERMINATION_GRACE_PERIOD", 10*time.Second),
		lameduck:               config.OrDefault("LAMEDUCK", 1*time.Second),
		keepAlive:              config.OrDefault("HTTP_KEEPALIVE", true),
		maxConnections:         config.OrDefault("MAX_CONNECTIONS", 65532),
		engineConfig:           engineConfig,
		storageClient:          storageClient,
		telemetry:              t,
	}
}

var Debug = false

func (s *Server) Handler() http.Handler {
	mux := myhttp.NewServerMux(s.telemetry.Logger, s.telemetry.Metrics.HTTPRequestsDurationMicroSeconds)

	mux.HandleFuncWithMiddleware("POST /diff", routes.Diff(s.engineConfig, s.storageClient, s.telemetry.Metrics))
	mux.HandleFuncWithMiddleware("POST /info", routes.Info())
	mux.HandleFuncWithMiddleware("POST /canvas", routes.Canvas())

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	return mux
}

// Start serves until SIGTERM or ctx is done, then drains connections after the
// lame duck period.
func (s *Server) Start(ctx context.Context) error {
	logger := s.telemetry.Logger

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	go func() {
		if err := server.Serve(netutil.LimitListener(listener, s.maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve HTTP", "error", err)
		}
	}()
	logger.Info("listening", "address", listener.Addr().String())

	quit, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()
	<-quit.Done()
	time.Sleep(s.lameduck)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.terminationGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
