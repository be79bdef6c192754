package report_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"
	"pixelview/internal/storage"

	"github.com/google/go-cmp/cmp"
)

func createTestPair(t *testing.T) (*pixelbuf.PixelBuffer, *pixelbuf.PixelBuffer) {
	t.Helper()
	img1, err := pixelbuf.New([]byte{10, 10, 10, 10, 10, 10}, 2, 1, pixelbuf.RGB)
	if err != nil {
		t.Fatal(err)
	}
	img2, err := pixelbuf.New([]byte{10, 10, 10, 13, 10, 10}, 2, 1, pixelbuf.RGB)
	if err != nil {
		t.Fatal(err)
	}
	return img1, img2
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	img1, img2 := createTestPair(t)
	engine := diffimage.NewEngine(diffimage.Config{CompareType: diffimage.AlphaLess, Colors: diffimage.DefaultColorPolicy(), CollectFailPixels: true})

	t.Run("JSON", func(t *testing.T) {
		r, err := report.New(ctx, engine.Diff(img1, nil, img2, nil), report.Options{
			CompareType:     diffimage.AlphaLess,
			RegionProximity: 0,
		})
		if err != nil {
			t.Fatal(err)
		}

		data, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		want := `{"compareType":"ALPHALESS","isDiff":true,"details":{"geometry1":"2x1+0+0","geometry2":"2x1+0+0","pixelDiffCount":1,"absDiffCount":3,"maxChannelDelta":3,"diffAmount":0.5,"diffPixelRGBList":[[3,3]],"regions":["1x1+1+0"]}}`
		if diff := cmp.Diff(want, string(data)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Diagnostic", func(t *testing.T) {
		big, _ := pixelbuf.NewFilled(3, 3, pixelbuf.RGB, []byte{0, 0, 0})

		r, err := report.New(ctx, engine.Diff(img1, nil, big, nil), report.Options{RegionProximity: -1})
		if err != nil {
			t.Fatal(err)
		}

		if !r.IsDiff || r.Details != nil {
			t.Errorf("Expected a diagnostic only report, got %+v", r)
		}
		if diff := cmp.Diff("Geometry mismatch", r.Diagnostic["msg"]); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("InlineArtifacts", func(t *testing.T) {
		r, err := report.New(ctx, engine.Diff(img1, nil, img2, nil), report.Options{
			Artifacts:       true,
			Encoding:        report.RawEncoding,
			RegionProximity: -1,
		})
		if err != nil {
			t.Fatal(err)
		}

		data, err := base64.StdEncoding.DecodeString(r.Details.Artifacts[report.DeltaImageRGB])
		if err != nil {
			t.Fatal(err)
		}
		delta, err := pixelbuf.DecodeRaw(data)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]byte{0, 0, 0, 255, 255, 255}, delta.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if len(r.Details.Artifacts) != 1 {
			t.Errorf("Expected only the RGB delta for RGB inputs, got %v", r.Details.Artifacts)
		}
	})

	t.Run("StoredArtifacts", func(t *testing.T) {
		dir := t.TempDir()
		s, _ := storage.NewFileStorage(ctx, storage.FileConfig{Directory: dir})
		rgba1, _ := pixelbuf.NewFilled(2, 2, pixelbuf.RGBA, []byte{0, 0, 0, 255})
		rgba2, _ := pixelbuf.NewFilled(2, 2, pixelbuf.RGBA, []byte{0, 0, 0, 0})

		r, err := report.New(ctx, diffimage.NewEngine(diffimage.DefaultConfig()).Diff(rgba1, nil, rgba2, nil), report.Options{
			Artifacts:       true,
			Encoding:        report.PNGEncoding,
			Storage:         s,
			KeyPrefix:       "run",
			RegionProximity: -1,
		})
		if err != nil {
			t.Fatal(err)
		}

		want := map[string]string{
			report.DeltaImageRGB:   filepath.Join(dir, "run", "deltaImageRGB.png"),
			report.DeltaImageAlpha: filepath.Join(dir, "run", "deltaImageAlpha.png"),
			report.AlphaImage1:     filepath.Join(dir, "run", "alphaImage1.png"),
			report.AlphaImage2:     filepath.Join(dir, "run", "alphaImage2.png"),
		}
		if diff := cmp.Diff(want, r.Details.Artifacts); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		for _, url := range r.Details.Artifacts {
			if exists, _ := s.Exists(ctx, url); !exists {
				t.Errorf("Expected %s to be stored", url)
			}
		}
	})
}

func TestParseEncoding(t *testing.T) {
	for s, want := range map[string]report.Encoding{"": report.RawEncoding, "PNG": report.PNGEncoding, "raw": report.RawEncoding} {
		got, err := report.ParseEncoding(s)
		if err != nil || got != want {
			t.Errorf("%q: expected %s, got %s (%v)", s, want, got, err)
		}
	}
	if _, err := report.ParseEncoding("jpeg"); !errors.Is(err, report.UnknownEncodingError) {
		t.Errorf("Expected UnknownEncodingError, got %v", err)
	}
}

func TestKeyPrefix(t *testing.T) {
	if diff := cmp.Diff("out/0003-a-b", report.KeyPrefix("out", 3, "/tmp/a.rgba", `C:\imgs\b.png`)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
