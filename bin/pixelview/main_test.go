package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"

	"github.com/google/go-cmp/cmp"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeRaw(t *testing.T, path string, width int, height int, format pixelbuf.Format, pix []byte) {
	t.Helper()
	b, err := pixelbuf.New(pix, width, height, format)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Save(path); err != nil {
		t.Fatal(err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("Version: "+version+"\n", out); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestGenCanvas(t *testing.T) {
	dir := t.TempDir()

	t.Run("RGBA", func(t *testing.T) {
		path := filepath.Join(dir, "canvas.rgba")
		if _, err := execute(t, "gencanvas", path, "1", "2", "3", "--alpha", "4", "--width", "2", "--height", "1"); err != nil {
			t.Fatal(err)
		}

		b, err := pixelbuf.LoadRaw(path, pixelbuf.RGBA)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]byte{1, 2, 3, 4, 1, 2, 3, 4}, b.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}

		if _, err := execute(t, "gencanvas", path, "1", "2", "3"); !errors.Is(err, FileExistsError) {
			t.Errorf("Expected FileExistsError, got %v", err)
		}
	})

	t.Run("DefaultSize", func(t *testing.T) {
		path := filepath.Join(dir, "canvas.rgb")
		if _, err := execute(t, "gencanvas", path, "0", "0", "0"); err != nil {
			t.Fatal(err)
		}

		b, err := pixelbuf.LoadRaw(path, pixelbuf.RGB)
		if err != nil {
			t.Fatal(err)
		}
		if b.Width != 320 || b.Height != 240 {
			t.Errorf("Expected 320x240, got %dx%d", b.Width, b.Height)
		}
	})

	t.Run("InvalidComponent", func(t *testing.T) {
		if _, err := execute(t, "gencanvas", filepath.Join(dir, "bad.rgb"), "256", "0", "0"); err == nil {
			t.Errorf("Expected an error for a component above 255")
		}
	})
}

func TestInfoAndPrintVal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.rgb")
	writeRaw(t, path, 2, 1, pixelbuf.RGB, []byte{0, 0, 0, 0xAB, 0x01, 0xFF})

	out, err := execute(t, "info", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"srcFileName:   image.rgb", "mode:          RGB", "size:          2x1", "srcFileFormat: RGB888"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}

	out, err = execute(t, "printval", path, "1", "0")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("AB 01 FF\n", out); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if _, err := execute(t, "printval", path, "2", "0"); err == nil {
		t.Errorf("Expected an error outside the image")
	}
}

func TestGenConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	if _, err := execute(t, "genconfig", dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("Expected config.json to be written: %v", err)
	}
	if _, err := execute(t, "genconfig", dir); err == nil {
		t.Errorf("Expected an error when the config already exists")
	}
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.rgb")
	b := filepath.Join(dir, "b.rgb")
	writeRaw(t, a, 2, 1, pixelbuf.RGB, []byte{10, 10, 10, 10, 10, 10})
	writeRaw(t, b, 2, 1, pixelbuf.RGB, []byte{10, 10, 10, 13, 10, 10})

	decode := func(t *testing.T, out string) []report.Report {
		t.Helper()
		var reports []report.Report
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			var r report.Report
			if err := json.Unmarshal([]byte(line), &r); err != nil {
				t.Fatalf("invalid JSON line %q: %v", line, err)
			}
			reports = append(reports, r)
		}
		return reports
	}

	t.Run("CommaLists", func(t *testing.T) {
		out, err := execute(t, "compare", a+","+a, b+","+a, "--compare-type", "alphaless", "--fail-pixels")
		if err != nil {
			t.Fatal(err)
		}

		reports := decode(t, out)
		if len(reports) != 2 {
			t.Fatalf("Expected 2 reports, got %d", len(reports))
		}
		d := reports[0].Details
		if !reports[0].IsDiff || d.PixelDiffCount != 1 || d.AbsDiffCount != 3 || d.MaxChannelDelta != 3 {
			t.Errorf("Unexpected first report %+v", reports[0])
		}
		if reports[1].IsDiff {
			t.Errorf("Expected the second pair to be equal")
		}
	})

	t.Run("FileListAndExitCode", func(t *testing.T) {
		list1 := filepath.Join(dir, "list1.txt")
		list2 := filepath.Join(dir, "list2.txt")
		os.WriteFile(list1, []byte(a+"\n\n"), 0644)
		os.WriteFile(list2, []byte(b+"\n"), 0644)

		_, err := execute(t, "compare", list1, list2, "--flist", "--exit-code")
		if !errors.Is(err, DifferentError) {
			t.Errorf("Expected DifferentError, got %v", err)
		}
	})

	t.Run("Geometry", func(t *testing.T) {
		out, err := execute(t, "compare", a, b, "--geometry1", "1x1+0+0", "--geometry2", "1x1+0+0")
		if err != nil {
			t.Fatal(err)
		}
		if reports := decode(t, out); reports[0].IsDiff {
			t.Errorf("Expected the first pixels to be equal")
		}
	})

	t.Run("MissingFileUsesPlaceholder", func(t *testing.T) {
		out, err := execute(t, "compare", filepath.Join(dir, "missing.rgb"), b)
		if err != nil {
			t.Fatal(err)
		}
		reports := decode(t, out)
		if diff := cmp.Diff("Geometry mismatch", reports[0].Diagnostic["msg"]); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("OutputDir", func(t *testing.T) {
		output := filepath.Join(dir, "out")
		out, err := execute(t, "compare", a, b, "--output-dir", output, "--regions", "0")
		if err != nil {
			t.Fatal(err)
		}
		r := decode(t, out)[0]
		if len(r.Details.Regions) != 1 {
			t.Errorf("Expected one region, got %v", r.Details.Regions)
		}
		if r.Details.DiffPixelRGBList != nil {
			t.Errorf("Expected fail pixels to be omitted without --fail-pixels")
		}
		if _, err := os.Stat(r.Details.Artifacts[report.DeltaImageRGB]); err != nil {
			t.Errorf("Expected the delta image on disk: %v", err)
		}
	})
}

func TestPairUp(t *testing.T) {
	pairs, err := pairUp([]string{"a"}, []string{"b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][2]string{{"a", "b"}, {"a", "c"}}, pairs); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if _, err := pairUp([]string{"a", "b"}, []string{"c", "d", "e"}); err == nil {
		t.Errorf("Expected an error for lists of different length")
	}
}
