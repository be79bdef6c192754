package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"pixelview/internal/config"
	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"
	"pixelview/internal/retry"
	"pixelview/internal/storage"
	"pixelview/internal/telemetry"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type WorkerOutput struct {
	Total     int              `json:"total"`
	Different int              `json:"different"`
	Invalid   int              `json:"invalid"`
	ReportURL string           `json:"reportURL,omitempty"`
	Reports   []*report.Report `json:"reports"`
}

type Worker struct {
	Storage     storage.Storage
	Differ      diffimage.Differ
	CompareType diffimage.CompareType
	NullColor   [3]uint8
	Encoding    report.Encoding
	Concurrency int
	Regions     int
	Logger      *slog.Logger
	now         func() time.Time
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	var configPath string
	var compareType string
	var storageBackend string
	var callbackURL string
	var concurrency int
	var regions int
	var encoding string
	flag.StringVar(&configPath, "config", config.OrDefault("PIXELVIEW_CONFIG", ""), "Colour configuration file (YAML or JSON)")
	flag.StringVar(&compareType, "compare-type", config.OrDefault("COMPARE_TYPE", diffimage.Full.String()), "Compare type")
	flag.StringVar(&storageBackend, "storage-backend", config.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&callbackURL, "callback-url", config.OrDefault("CALLBACK_URL", ""), "Callback URL to send results to")
	flag.IntVar(&concurrency, "concurrency", config.OrDefault("CONCURRENCY", 4), "Pairs compared at the same time")
	flag.IntVar(&regions, "regions", config.OrDefault("REGION_PROXIMITY", diffimage.DefaultRegionProximity), "Region merge proximity (-1 disables)")
	flag.StringVar(&encoding, "encoding", config.OrDefault("ENCODING", "png"), "Delta image encoding (raw or png)")

	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: worker [flags] <baselines> <targets>")
		os.Exit(2)
	}

	ctx := context.Background()

	level, err := telemetry.LevelFromEnv(slog.LevelInfo)
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger := telemetry.NewLogger(os.Stderr, level, false)

	file := config.Default()
	if configPath != "" {
		if file, err = config.Load(configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	colors, err := file.ColorPolicy()
	if err != nil {
		log.Fatalf("invalid colour configuration: %v", err)
	}
	ct, err := diffimage.ParseCompareType(compareType)
	if err != nil {
		log.Fatalf("%v", err)
	}
	enc, err := report.ParseEncoding(encoding)
	if err != nil {
		log.Fatalf("%v", err)
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

	worker := &Worker{
		Storage: storage.NewRetryStorage(s, retry.NewExponentialBackOff(50*time.Millisecond, 2*time.Second, 3, nil)),
		Differ: diffimage.NewEngine(diffimage.Config{
			CompareType:       ct,
			Colors:            colors,
			CollectFailPixels: regions >= 0,
		}),
		CompareType: ct,
		NullColor:   file.NullColor,
		Encoding:    enc,
		Concurrency: concurrency,
		Regions:     regions,
		Logger:      logger,
	}

	output, err := worker.process(ctx, strings.Split(args[0], ","), strings.Split(args[1], ","))
	if err != nil {
		log.Fatalf("failed to process pairs: %v", err)
	}

	j, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}

	if callbackURL == "" {
		fmt.Println(string(j))
	} else {
		if err := callback(ctx, callbackURL, j); err != nil {
			log.Fatalf("failed to send callback: %v", err)
		}
	}
}

func (w *Worker) process(ctx context.Context, baselines []string, targets []string) (*WorkerOutput, error) {
	if len(baselines) != len(targets) {
		return nil, xerrors.Errorf("got %d baselines and %d targets", len(baselines), len(targets))
	}

	now := time.Now
	if w.now != nil {
		now = w.now
	}
	timestamp := now().UTC().Format("20060102150405")

	h := sha256.New()
	for i := range baselines {
		h.Write([]byte(baselines[i] + "\x00" + targets[i] + "\x00"))
	}
	batchKey := fmt.Sprintf("PixelView/diff/%x/%s", h.Sum(nil)[:8], timestamp)

	reports := make([]*report.Report, len(baselines))
	{
		eg, ctx := errgroup.WithContext(ctx)
		if w.Concurrency > 0 {
			eg.SetLimit(w.Concurrency)
		}

		for i := range baselines {
			eg.Go(func() error {
				r, err := w.comparePair(ctx, i, baselines[i], targets[i], batchKey)
				if err != nil {
					return xerrors.Errorf("pair %d: %w", i, err)
				}
				reports[i] = r
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	output := &WorkerOutput{
		Total:   len(reports),
		Reports: reports,
	}
	for _, r := range reports {
		switch {
		case r.Diagnostic != nil:
			output.Invalid++
		case r.IsDiff:
			output.Different++
		}
	}

	summary, err := json.Marshal(output)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal summary: %w", err)
	}
	url, err := w.Storage.Put(ctx, batchKey+"/report.json", summary)
	if err != nil {
		return nil, xerrors.Errorf("failed to upload summary: %w", err)
	}
	output.ReportURL = url

	return output, nil
}

func (w *Worker) comparePair(ctx context.Context, index int, baseline string, target string, batchKey string) (*report.Report, error) {
	var first, second *pixelbuf.PixelBuffer
	{
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			first = w.load(ctx, baseline)
			return nil
		})

		eg.Go(func() error {
			second = w.load(ctx, target)
			return nil
		})

		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	result := w.Differ.Diff(first, nil, second, nil)
	w.logger().Info("compared", "baseline", baseline, "target", target, "outcome", report.Outcome(result))

	return report.New(ctx, result, report.Options{
		CompareType:     w.CompareType,
		Image1:          baseline,
		Image2:          target,
		Artifacts:       result.Details != nil && result.IsDiff,
		Encoding:        w.Encoding,
		Storage:         w.Storage,
		KeyPrefix:       report.KeyPrefix(batchKey, index, baseline, target),
		RegionProximity: w.Regions,
	})
}

// load fetches an input from storage. Unreadable inputs become the
// placeholder so the rest of the batch still runs.
func (w *Worker) load(ctx context.Context, url string) *pixelbuf.PixelBuffer {
	placeholder := func(err error) *pixelbuf.PixelBuffer {
		w.logger().Warn("using placeholder", "url", url, "error", err)
		p := pixelbuf.Placeholder(w.NullColor)
		p.SourcePath = url
		return p
	}

	data, err := w.Storage.Get(ctx, url)
	if err != nil {
		return placeholder(err)
	}
	b, err := pixelbuf.DecodeAny(data)
	if err != nil {
		return placeholder(err)
	}
	b.SourcePath = url
	return b
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func callback(ctx context.Context, callbackURL string, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, callbackURL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &retry.Transport{
			Base:      http.DefaultTransport,
			Strategy:  retry.NewExponentialBackOff(10*time.Millisecond, 1*time.Second, 3, nil),
			Condition: retry.NewDefaultCondition(),
		},
	}

	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		return xerrors.Errorf("callback returned %s", response.Status)
	}
	return nil
}
