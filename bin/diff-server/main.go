package main

import (
	"context"
	"flag"
	"log"
	"time"

	"pixelview/internal/config"
	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/retry"
	"pixelview/internal/runnable"
	"pixelview/internal/storage"
	"pixelview/internal/telemetry"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	var configPath string
	var storageBackend string
	var compareType string
	var debug bool
	flag.StringVar(&configPath, "config", config.OrDefault("PIXELVIEW_CONFIG", ""), "Colour configuration file (YAML or JSON)")
	flag.StringVar(&storageBackend, "storage-backend", config.OrDefault("STORAGE_BACKEND", "file"), "Storage backend for stored diffs (file or s3)")
	flag.StringVar(&compareType, "compare-type", config.OrDefault("COMPARE_TYPE", diffimage.Full.String()), "Default compare type")
	flag.BoolVar(&debug, "debug", config.OrDefault("DEBUG", false), "Text logs and pprof endpoints")

	flag.Parse()

	ctx := context.Background()

	t, err := telemetry.Setup(ctx, telemetry.Options{
		AppName:   "diff-server",
		Debug:     debug,
		Profiling: config.OrDefault("PYROSCOPE_ENDPOINT", "") != "",
		Tracing:   config.OrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "") != "",
	})
	if err != nil {
		log.Fatalf("failed to setup telemetry: %v", err)
	}

	engineConfig, err := loadEngineConfig(configPath, compareType)
	if err != nil {
		log.Fatalf("failed to load engine config: %v", err)
	}

	s, err := storage.New(ctx, storage.Config{
		Backend: storage.Backend(storageBackend),
		File: storage.FileConfig{
			Directory: config.OrDefault("DIRECTORY", "/tmp"),
		},
		S3: storage.S3Config{
			Bucket:      config.OrDefault("S3_BUCKET", ""),
			Prefix:      config.OrDefault("S3_PREFIX", ""),
			EndpointURL: config.OrDefault("S3_ENDPOINT_URL", ""),
		},
	})
	if err != nil {
		log.Fatalf("failed to create storage backend: %v", err)
	}
	s = storage.NewRetryStorage(s, retry.NewExponentialBackOff(
		config.OrDefault("STORAGE_RETRY_BASE", 50*time.Millisecond),
		config.OrDefault("STORAGE_RETRY_MAX", 2*time.Second),
		config.OrDefault("STORAGE_RETRY_COUNT", uint(3)),
		nil,
	))

	runnable.Debug = debug
	server := runnable.NewServer(engineConfig, s, t)
	if err := server.Start(ctx); err != nil {
		t.Logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := t.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("failed to shutdown telemetry: %v", err)
	}
}

func loadEngineConfig(path string, compareType string) (diffimage.Config, error) {
	file := config.Default()
	if path != "" {
		var err error
		if file, err = config.Load(path); err != nil {
			return diffimage.Config{}, err
		}
	}

	colors, err := file.ColorPolicy()
	if err != nil {
		return diffimage.Config{}, err
	}
	c := diffimage.DefaultConfig()
	c.Colors = colors
	c.CollectFailPixels = config.OrDefault("COLLECT_FAIL_PIXELS", true)
	if c.CompareType, err = diffimage.ParseCompareType(compareType); err != nil {
		return diffimage.Config{}, err
	}
	return c, nil
}
