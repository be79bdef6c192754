package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/xerrors"
)

type Options struct {
	AppName string
	// Debug selects the text log handler.
	Debug bool
	// Profiling starts the pyroscope profiler against PYROSCOPE_ENDPOINT.
	Profiling bool
	// Tracing exports spans through OTLP gRPC configured by the standard
	// OTEL_EXPORTER_OTLP_* variables.
	Tracing bool
}

type Telemetry struct {
	Logger  *slog.Logger
	Meter   metric.Meter
	Metrics *Metrics

	profiler      *pyroscope.Profiler
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider
}

type Metrics struct {
	HTTPRequestsDurationMicroSeconds metric.Int64Histogram
	PixelDiffComparisons             metric.Int64Counter
}

func Setup(ctx context.Context, o Options) (*Telemetry, error) {
	t := &Telemetry{}

	level, err := LevelFromEnv(slog.LevelInfo)
	if err != nil {
		return nil, err
	}
	t.Logger = NewLogger(os.Stderr, level, o.Debug)

	if o.Profiling {
		runtime.SetMutexProfileFraction(1)
		runtime.SetBlockProfileRate(1)

		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: o.AppName,
			ServerAddress:   os.Getenv("PYROSCOPE_ENDPOINT"),
			UploadRate:      60 * time.Second,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
				pyroscope.ProfileMutexCount,
				pyroscope.ProfileMutexDuration,
				pyroscope.ProfileBlockCount,
				pyroscope.ProfileBlockDuration,
			},
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to create profiler: %w", err)
		}
		t.profiler = profiler
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	r, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(o.AppName)),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create resource: %w", err)
	}

	if o.Tracing {
		traceExporter, err := otlptracegrpc.New(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to create trace exporter: %w", err)
		}
		t.traceProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(r),
			sdktrace.WithBatcher(traceExporter),
		)
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(t.traceProvider))
	}

	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, xerrors.Errorf("failed to create exporter: %w", err)
	}
	t.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(r), sdkmetric.WithReader(exporter))
	t.Meter = t.meterProvider.Meter(o.AppName)

	t.Metrics, err = NewMetrics(t.Meter)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
	httpRequestsDurationMicroSeconds, err := meter.Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}
	pixelDiffComparisons, err := meter.Int64Counter("pixel_diff_comparisons_total",
		metric.WithDescription("Pixel buffer comparisons by compare type and result"),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create counter: %w", err)
	}
	return &Metrics{
		HTTPRequestsDurationMicroSeconds: httpRequestsDurationMicroSeconds,
		PixelDiffComparisons:             pixelDiffComparisons,
	}, nil
}

// RecordComparison counts one comparison. result is "equal", "different" or
// "invalid".
func (m *Metrics) RecordComparison(ctx context.Context, compareType string, result string) {
	if m == nil {
		return
	}
	m.PixelDiffComparisons.Add(ctx, 1, metric.WithAttributes(
		attribute.Key("compare_type").String(compareType),
		attribute.Key("result").String(result),
	))
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.traceProvider != nil {
		if err := t.traceProvider.Shutdown(ctx); err != nil {
			return xerrors.Errorf("failed to shutdown trace provider: %w", err)
		}
	}

	if err := t.meterProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown meter provider: %w", err)
	}

	if t.profiler != nil {
		if err := t.profiler.Stop(); err != nil {
			return xerrors.Errorf("failed to shutdown profiler: %w", err)
		}
	}

	return nil
}
