package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"pixelview/internal/config"
	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/geometry"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"
	"pixelview/internal/retry"
	"pixelview/internal/storage"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

// DifferentError is returned with --exit-code when any pair differs.
var DifferentError = errors.New("images differ")

type compareOptions struct {
	root *rootOptions

	fileList        bool
	geometry1       geometry.Geometry
	geometry2       geometry.Geometry
	compareType     string
	stopOnFirstDiff bool
	failPixels      bool
	workers         int
	regions         int
	outputDir       string
	storageBackend  string
	bucket          string
	encoding        string
	exitCode        bool
}

func newCompareCmd(root *rootOptions) *cobra.Command {
	o := &compareOptions{root: root}

	cmd := &cobra.Command{
		Use:   "compare <list1> <list2>",
		Short: "Compare images pairwise and print one JSON report per pair",
		Long: `Each list is a comma separated list of image paths or, with --flist, of
files holding one image path per line. The n-th image of list1 is compared with
the n-th image of list2. A list with a single image is compared with every image
of the other list.`,
		Args: cobra.ExactArgs(2),
		RunE: o.run,
	}

	cmd.Flags().BoolVar(&o.fileList, "flist", false, "Treat list arguments as files containing image paths")
	cmd.Flags().Var(&o.geometry1, "geometry1", "Window of the first image, <width>x<height>+<x>+<y>")
	cmd.Flags().Var(&o.geometry2, "geometry2", "Window of the second image, <width>x<height>+<x>+<y>")
	cmd.Flags().StringVar(&o.compareType, "compare-type", diffimage.Full.String(), "ALPHALESS, ALPHA_HI1, ALPHA_HI2, ALPHA_LO1, ALPHA_LO2 or FULL")
	cmd.Flags().BoolVar(&o.stopOnFirstDiff, "stop-on-diff", false, "Only report whether the images differ")
	cmd.Flags().BoolVar(&o.failPixels, "fail-pixels", false, "Include the offsets of every differing pixel")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "Row partitions scanned concurrently (0 means GOMAXPROCS)")
	cmd.Flags().IntVar(&o.regions, "regions", -1, "Report bounding boxes of differences merged within this many pixels (-1 disables)")
	cmd.Flags().StringVar(&o.outputDir, "output-dir", "", "Write delta images under this directory or key prefix")
	cmd.Flags().StringVar(&o.storageBackend, "storage-backend", "file", "Storage backend for delta images (file or s3)")
	cmd.Flags().StringVar(&o.bucket, "bucket", config.OrDefault("S3_BUCKET", ""), "S3 bucket for --storage-backend s3")
	cmd.Flags().StringVar(&o.encoding, "encoding", "png", "Delta image encoding (raw or png)")
	cmd.Flags().BoolVar(&o.exitCode, "exit-code", false, "Exit with status 1 when any pair differs")

	return cmd
}

func (o *compareOptions) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	list1, err := expandList(args[0], o.fileList)
	if err != nil {
		return err
	}
	list2, err := expandList(args[1], o.fileList)
	if err != nil {
		return err
	}
	pairs, err := pairUp(list1, list2)
	if err != nil {
		return err
	}

	file, err := o.root.loadConfig()
	if err != nil {
		return err
	}
	colors, err := file.ColorPolicy()
	if err != nil {
		return err
	}
	compareType, err := diffimage.ParseCompareType(o.compareType)
	if err != nil {
		return err
	}
	encoding, err := report.ParseEncoding(o.encoding)
	if err != nil {
		return err
	}

	engine := diffimage.NewEngine(diffimage.Config{
		CompareType:       compareType,
		Colors:            colors,
		CollectFailPixels: o.failPixels || o.regions >= 0,
		StopOnFirstDiff:   o.stopOnFirstDiff,
		Workers:           o.workers,
	})

	var s storage.Storage
	if o.outputDir != "" {
		s, err = storage.New(ctx, storage.Config{
			Backend: storage.Backend(o.storageBackend),
			File:    storage.FileConfig{Directory: o.outputDir},
			S3: storage.S3Config{
				Bucket:      o.bucket,
				Prefix:      o.outputDir,
				EndpointURL: config.OrDefault("S3_ENDPOINT_URL", ""),
			},
		})
		if err != nil {
			return err
		}
		s = storage.NewRetryStorage(s, retry.NewExponentialBackOff(100*time.Millisecond, 2*time.Second, 3, nil))
	}

	var window1, window2 *geometry.Geometry
	if cmd.Flags().Changed("geometry1") {
		window1 = &o.geometry1
	}
	if cmd.Flags().Changed("geometry2") {
		window2 = &o.geometry2
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	anyDiff := false
	for i, pair := range pairs {
		first, err := pixelbuf.OpenOrPlaceholder(pair[0], file.NullColor)
		if err != nil {
			slog.Warn("using placeholder", "path", pair[0], "error", err)
		}
		second, err := pixelbuf.OpenOrPlaceholder(pair[1], file.NullColor)
		if err != nil {
			slog.Warn("using placeholder", "path", pair[1], "error", err)
		}

		start := time.Now()
		result := engine.Diff(first, window1, second, window2)
		slog.Debug("compared", "image1", pair[0], "image2", pair[1], "isDiff", result.IsDiff, "elapsed", time.Since(start))

		if !o.failPixels && result.Details != nil {
			result.Details.DiffPixelRGBList = nil
			if result.Details.Alpha != nil {
				result.Details.Alpha.DiffPixelList = nil
			}
		}

		r, err := report.New(ctx, result, report.Options{
			CompareType:     compareType,
			Image1:          pair[0],
			Image2:          pair[1],
			Artifacts:       s != nil,
			Encoding:        encoding,
			Storage:         s,
			KeyPrefix:       report.KeyPrefix("", i, pair[0], pair[1]),
			RegionProximity: o.regions,
		})
		if err != nil {
			return err
		}
		if err := encoder.Encode(r); err != nil {
			return xerrors.Errorf("failed to write report: %w", err)
		}

		anyDiff = anyDiff || result.IsDiff
	}

	if o.exitCode && anyDiff {
		return DifferentError
	}
	return nil
}

// expandList splits a comma separated argument. With fileList every entry
// names a file holding one path per line.
func expandList(arg string, fileList bool) ([]string, error) {
	var entries []string
	for _, entry := range strings.Split(arg, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			entries = append(entries, entry)
		}
	}
	if !fileList {
		return entries, nil
	}

	var paths []string
	for _, entry := range entries {
		f, err := os.Open(entry)
		if err != nil {
			return nil, xerrors.Errorf("failed to open list %s: %w", entry, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				paths = append(paths, line)
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, xerrors.Errorf("failed to read list %s: %w", entry, err)
		}
	}
	return paths, nil
}

func pairUp(list1 []string, list2 []string) ([][2]string, error) {
	switch {
	case len(list1) == 0 || len(list2) == 0:
		return nil, xerrors.New("both image lists must be non-empty")
	case len(list1) == 1 && len(list2) > 1:
		list1 = repeat(list1[0], len(list2))
	case len(list2) == 1 && len(list1) > 1:
		list2 = repeat(list2[0], len(list1))
	case len(list1) != len(list2):
		return nil, xerrors.Errorf("image lists differ in length: %d and %d", len(list1), len(list2))
	}

	pairs := make([][2]string, len(list1))
	for i := range list1 {
		pairs[i] = [2]string{list1[i], list2[i]}
	}
	return pairs, nil
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
