package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"
	"pixelview/internal/storage"

	"github.com/google/go-cmp/cmp"
)

func writeImage(t *testing.T, path string, px ...byte) {
	t.Helper()

	b, err := pixelbuf.New(px, len(px)/3, 1, pixelbuf.RGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Save(path); err != nil {
		t.Fatal(err)
	}
}

func TestWorker_process(t *testing.T) {
	ctx := context.Background()
	in := t.TempDir()
	out := t.TempDir()

	writeImage(t, filepath.Join(in, "a.rgb"), 10, 20, 30, 40, 50, 60)
	writeImage(t, filepath.Join(in, "b.rgb"), 10, 20, 30, 41, 52, 63)

	s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: out})
	if err != nil {
		t.Fatal(err)
	}

	config := diffimage.DefaultConfig()
	worker := &Worker{
		Storage:     s,
		Differ:      diffimage.NewEngine(config),
		CompareType: config.CompareType,
		Encoding:    report.RawEncoding,
		Concurrency: 2,
		Regions:     diffimage.DefaultRegionProximity,
		now: func() time.Time {
			return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		},
	}

	baselines := []string{
		filepath.Join(in, "a.rgb"),
		filepath.Join(in, "a.rgb"),
		filepath.Join(in, "a.rgb"),
	}
	targets := []string{
		filepath.Join(in, "a.rgb"),
		filepath.Join(in, "b.rgb"),
		filepath.Join(in, "missing.rgb"),
	}

	output, err := worker.process(ctx, baselines, targets)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([3]int{3, 1, 1}, [3]int{output.Total, output.Different, output.Invalid}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if output.Reports[0].IsDiff {
		t.Errorf("identical pair reported as different")
	}

	different := output.Reports[1]
	if different.Details == nil {
		t.Fatal("details missing")
	}
	if diff := cmp.Diff(int64(1), different.Details.PixelDiffCount); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	url, ok := different.Details.Artifacts[report.DeltaImageRGB]
	if !ok {
		t.Fatalf("delta image not uploaded: %v", different.Details.Artifacts)
	}
	data, err := os.ReadFile(url)
	if err != nil {
		t.Fatal(err)
	}
	delta, err := pixelbuf.DecodeRaw(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([2]int{2, 1}, [2]int{delta.Width, delta.Height}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if output.Reports[2].Diagnostic == nil {
		t.Errorf("missing input should be reported as invalid")
	}

	if _, err := os.Stat(output.ReportURL); err != nil {
		t.Errorf("summary not uploaded: %v", err)
	}
}

func TestWorker_process_LengthMismatch(t *testing.T) {
	worker := &Worker{Differ: diffimage.NewEngine(diffimage.DefaultConfig())}

	if _, err := worker.process(context.Background(), []string{"a", "b"}, []string{"a"}); err == nil {
		t.Error("expected error")
	}
}

func TestCallback(t *testing.T) {
	var calls atomic.Int32
	var body atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method %s", r.Method)
		}
		data, _ := io.ReadAll(r.Body)
		body.Store(string(data))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := callback(context.Background(), server.URL, []byte(`{"total":1}`)); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(int32(2), calls.Load()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(`{"total":1}`, body.Load()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCallback_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := callback(context.Background(), server.URL, []byte(`{}`)); err == nil {
		t.Error("expected error")
	}
}
