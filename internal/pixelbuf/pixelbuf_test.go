package pixelbuf

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	t.Run("SizeMismatch", func(t *testing.T) {
		if _, err := New(make([]byte, 5), 2, 1, RGB); !errors.Is(err, SizeMismatchError) {
			t.Errorf("Expected SizeMismatchError, got %v", err)
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		if _, err := New(nil, 0, 0, Format(9)); !errors.Is(err, UnknownFormatError) {
			t.Errorf("Expected UnknownFormatError, got %v", err)
		}
	})

	t.Run("Valid", func(t *testing.T) {
		b, err := New(make([]byte, 8), 2, 1, RGBA)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.BytesPerPixel() != 4 || !b.HasAlpha() {
			t.Errorf("Expected an RGBA buffer, got %s", b.Format)
		}
	})
}

func TestNewFilled(t *testing.T) {
	b, err := NewFilled(3, 2, RGB, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := bytes.Repeat([]byte{1, 2, 3}, 6)
	if diff := cmp.Diff(want, b.Pix); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if _, err := NewFilled(3, 2, RGBA, []byte{1, 2, 3}); !errors.Is(err, SizeMismatchError) {
		t.Errorf("Expected SizeMismatchError for short color, got %v", err)
	}
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder([3]uint8{0xFF, 0x00, 0xFF})

	if !p.IsPlaceholder() {
		t.Errorf("Expected placeholder source format, got %q", p.SourceFormat)
	}
	if p.Width != 100 || p.Height != 100 || p.Format != RGBA {
		t.Errorf("Unexpected placeholder shape %dx%d %s", p.Width, p.Height, p.Format)
	}
	px, _ := p.PixelAt(99, 99)
	if diff := cmp.Diff([]byte{0xFF, 0x00, 0xFF, 0x00}, px); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestOffsetAndXY(t *testing.T) {
	b, _ := NewFilled(5, 4, RGBA, []byte{0, 0, 0, 0})

	offset := b.Offset(3, 2)
	if offset != (2*5+3)*4 {
		t.Errorf("Unexpected offset %d", offset)
	}
	x, y := b.XY(offset)
	if x != 3 || y != 2 {
		t.Errorf("Expected (3,2), got (%d,%d)", x, y)
	}

	if _, ok := b.PixelAt(5, 0); ok {
		t.Errorf("Expected out of range pixel lookup to fail")
	}
}

func TestDropAlphaAndAlphaImage(t *testing.T) {
	b, _ := New([]byte{1, 2, 3, 40, 5, 6, 7, 80}, 2, 1, RGBA)

	rgb := b.DropAlpha()
	if diff := cmp.Diff([]byte{1, 2, 3, 5, 6, 7}, rgb.Pix); diff != "" {
		t.Errorf("DropAlpha (-want +got):\n%s", diff)
	}
	if rgb.Format != RGB {
		t.Errorf("Expected RGB, got %s", rgb.Format)
	}

	alpha := b.AlphaImage()
	if diff := cmp.Diff([]byte{40, 40, 40, 80, 80, 80}, alpha.Pix); diff != "" {
		t.Errorf("AlphaImage (-want +got):\n%s", diff)
	}

	if rgb.AlphaImage() != nil {
		t.Errorf("Expected no alpha image for an RGB buffer")
	}
}

func TestRawRoundTrip(t *testing.T) {
	for _, format := range []Format{RGB, RGBA} {
		format := format
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			pix := make([]byte, 7*3*format.BytesPerPixel())
			for i := range pix {
				pix[i] = byte(i * 7)
			}
			b, err := New(pix, 7, 3, format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			path := filepath.Join(t.TempDir(), "image.raw")
			if err := b.Save(path); err != nil {
				t.Fatalf("failed to save: %v", err)
			}

			got, err := LoadRaw(path, format)
			if err != nil {
				t.Fatalf("failed to load: %v", err)
			}
			if diff := cmp.Diff(b.Pix, got.Pix); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if got.Width != 7 || got.Height != 3 || got.Format != format {
				t.Errorf("Unexpected shape %dx%d %s", got.Width, got.Height, got.Format)
			}
			if got.SourcePath != path {
				t.Errorf("Expected source path %s, got %s", path, got.SourcePath)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("Header", func(t *testing.T) {
		data := append([]byte("rgb888 2 1\n"), 1, 2, 3, 4, 5, 6)
		b, err := Decode(bytes.NewReader(data), RGB)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.SourceFormat != "RGB888" {
			t.Errorf("Unexpected source format %q", b.SourceFormat)
		}
	})

	t.Run("WrongTag", func(t *testing.T) {
		data := append([]byte("rgb888 2 1\n"), 1, 2, 3, 4, 5, 6)
		if _, err := Decode(bytes.NewReader(data), RGBA); !errors.Is(err, InvalidHeaderError) {
			t.Errorf("Expected InvalidHeaderError, got %v", err)
		}
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		data := append([]byte("rgb888 2x1\n"), 1, 2, 3, 4, 5, 6)
		if _, err := Decode(bytes.NewReader(data), RGB); !errors.Is(err, InvalidHeaderError) {
			t.Errorf("Expected InvalidHeaderError, got %v", err)
		}
	})

	t.Run("NoNewline", func(t *testing.T) {
		if _, err := Decode(bytes.NewReader([]byte("rgb888 2 1")), RGB); !errors.Is(err, InvalidHeaderError) {
			t.Errorf("Expected InvalidHeaderError, got %v", err)
		}
	})

	t.Run("ShortBody", func(t *testing.T) {
		data := append([]byte("rgb888 2 1\n"), 1, 2, 3, 4, 5)
		if _, err := Decode(bytes.NewReader(data), RGB); !errors.Is(err, BodyLengthError) {
			t.Errorf("Expected BodyLengthError, got %v", err)
		}
	})

	t.Run("LargeHeaderShortBody", func(t *testing.T) {
		data := []byte("rgba8888 23000 23000\n")

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		_, err := Decode(bytes.NewReader(data), RGBA)
		runtime.ReadMemStats(&after)

		if !errors.Is(err, BodyLengthError) {
			t.Errorf("Expected BodyLengthError, got %v", err)
		}
		if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 16<<20 {
			t.Errorf("Decoding a %d byte input allocated %d bytes", len(data), allocated)
		}
	})

	t.Run("HeaderWithoutNewline", func(t *testing.T) {
		data := append([]byte("rgb888 2 1"), bytes.Repeat([]byte{0}, 1<<20)...)
		if _, err := Decode(bytes.NewReader(data), RGB); !errors.Is(err, InvalidHeaderError) {
			t.Errorf("Expected InvalidHeaderError, got %v", err)
		}
	})

	t.Run("TrailingData", func(t *testing.T) {
		data := append([]byte("rgb888 2 1\n"), 1, 2, 3, 4, 5, 6, 7)
		if _, err := Decode(bytes.NewReader(data), RGB); !errors.Is(err, BodyLengthError) {
			t.Errorf("Expected BodyLengthError, got %v", err)
		}
	})
}

func TestDecodeAny(t *testing.T) {
	t.Run("RawRGBA", func(t *testing.T) {
		data := append([]byte("rgba8888 1 1\n"), 1, 2, 3, 4)
		b, err := DecodeAny(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Format != RGBA {
			t.Errorf("Expected RGBA, got %s", b.Format)
		}
	})

	t.Run("PNG", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

		var buffer bytes.Buffer
		if err := png.Encode(&buffer, img); err != nil {
			t.Fatalf("failed to encode png: %v", err)
		}

		b, err := DecodeAny(buffer.Bytes())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.SourceFormat != "PNG" || b.Format != RGBA {
			t.Errorf("Unexpected %s %s", b.SourceFormat, b.Format)
		}
		px, _ := b.PixelAt(1, 1)
		if diff := cmp.Diff([]byte{10, 20, 30, 128}, px); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := DecodeAny([]byte("not an image")); !errors.Is(err, UnsupportedImageError) {
			t.Errorf("Expected UnsupportedImageError, got %v", err)
		}
	})
}

func TestImageRoundTrip(t *testing.T) {
	b, _ := New([]byte{1, 2, 3, 4, 5, 6}, 2, 1, RGB)

	img := b.ToImage()
	if img.NRGBAAt(1, 0) != (color.NRGBA{R: 4, G: 5, B: 6, A: 255}) {
		t.Errorf("Unexpected pixel %v", img.NRGBAAt(1, 0))
	}

	back := FromImage(img)
	if back.Format != RGBA {
		t.Errorf("Expected NRGBA input to keep its alpha channel, got %s", back.Format)
	}
	if diff := cmp.Diff(b.Pix, back.DropAlpha().Pix); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	opaque := image.NewRGBA(image.Rect(0, 0, 1, 1))
	opaque.Set(0, 0, color.RGBA{R: 9, G: 8, B: 7, A: 255})
	if got := FromImage(opaque); got.Format != RGB {
		t.Errorf("Expected opaque RGBA image to become RGB, got %s", got.Format)
	}
}
