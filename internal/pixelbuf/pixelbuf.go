package pixelbuf

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

type Format int

const (
	RGB Format = iota + 1
	RGBA
)

func (f Format) BytesPerPixel() int {
	switch f {
	case RGB:
		return 3
	case RGBA:
		return 4
	}
	return 0
}

// Tag is the header tag used by the raw container.
func (f Format) Tag() string {
	switch f {
	case RGB:
		return "rgb888"
	case RGBA:
		return "rgba8888"
	}
	return ""
}

func (f Format) String() string {
	switch f {
	case RGB:
		return "RGB"
	case RGBA:
		return "RGBA"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

const PlaceholderFormat = "nullImage"

var (
	UnknownFormatError = errors.New("unknown pixel format")
	SizeMismatchError  = errors.New("pixel data does not match dimensions")
)

// PixelBuffer owns a tightly packed RGB or RGBA image.
// len(Pix) is always Width*Height*Format.BytesPerPixel().
type PixelBuffer struct {
	Pix    []byte
	Width  int
	Height int
	Format Format

	SourcePath   string
	SourceFormat string
}

func New(pix []byte, width int, height int, format Format) (*PixelBuffer, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, xerrors.Errorf("%v: %w", format, UnknownFormatError)
	}
	if width < 0 || height < 0 {
		return nil, xerrors.Errorf("negative dimensions %dx%d: %w", width, height, SizeMismatchError)
	}
	if len(pix) != width*height*bpp {
		return nil, xerrors.Errorf("got %d bytes for %dx%d %s: %w", len(pix), width, height, format, SizeMismatchError)
	}
	return &PixelBuffer{
		Pix:    pix,
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

// NewFilled returns a solid canvas. color must hold one pixel of the format.
func NewFilled(width int, height int, format Format, color []byte) (*PixelBuffer, error) {
	if len(color) != format.BytesPerPixel() {
		return nil, xerrors.Errorf("color has %d components, %s needs %d: %w", len(color), format, format.BytesPerPixel(), SizeMismatchError)
	}
	if width < 0 || height < 0 {
		return nil, xerrors.Errorf("negative dimensions %dx%d: %w", width, height, SizeMismatchError)
	}
	return New(bytes.Repeat(color, width*height), width, height, format)
}

// Placeholder stands in for an image that could not be loaded.
func Placeholder(nullColor [3]uint8) *PixelBuffer {
	const size = 100
	b, _ := NewFilled(size, size, RGBA, []byte{nullColor[0], nullColor[1], nullColor[2], 0})
	b.SourceFormat = PlaceholderFormat
	return b
}

func (b *PixelBuffer) IsPlaceholder() bool {
	return b.SourceFormat == PlaceholderFormat
}

func (b *PixelBuffer) BytesPerPixel() int {
	return b.Format.BytesPerPixel()
}

func (b *PixelBuffer) HasAlpha() bool {
	return b.Format == RGBA
}

func (b *PixelBuffer) Offset(x int, y int) int {
	return (y*b.Width + x) * b.BytesPerPixel()
}

// XY converts a byte offset back into pixel coordinates.
func (b *PixelBuffer) XY(offset int) (int, int) {
	if b.Width == 0 {
		return 0, 0
	}
	pixel := offset / b.BytesPerPixel()
	return pixel % b.Width, pixel / b.Width
}

func (b *PixelBuffer) PixelAt(x int, y int) ([]byte, bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return nil, false
	}
	o := b.Offset(x, y)
	return b.Pix[o : o+b.BytesPerPixel()], true
}

func (b *PixelBuffer) Clone() *PixelBuffer {
	c := *b
	c.Pix = bytes.Clone(b.Pix)
	return &c
}

// DropAlpha returns an RGB copy of the buffer.
func (b *PixelBuffer) DropAlpha() *PixelBuffer {
	if b.Format == RGB {
		return b.Clone()
	}

	n := b.Width * b.Height
	pix := make([]byte, n*3)
	for i := 0; i < n; i++ {
		copy(pix[i*3:i*3+3], b.Pix[i*4:i*4+3])
	}
	return &PixelBuffer{
		Pix:          pix,
		Width:        b.Width,
		Height:       b.Height,
		Format:       RGB,
		SourcePath:   b.SourcePath,
		SourceFormat: b.SourceFormat,
	}
}

// AlphaImage renders the alpha channel as a grey RGB buffer, or nil for RGB input.
func (b *PixelBuffer) AlphaImage() *PixelBuffer {
	if b.Format != RGBA {
		return nil
	}

	n := b.Width * b.Height
	pix := make([]byte, n*3)
	for i := 0; i < n; i++ {
		a := b.Pix[i*4+3]
		pix[i*3] = a
		pix[i*3+1] = a
		pix[i*3+2] = a
	}
	return &PixelBuffer{
		Pix:    pix,
		Width:  b.Width,
		Height: b.Height,
		Format: RGB,
	}
}

type Info struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Mode         string `json:"mode"`
	SourcePath   string `json:"srcFilePath,omitempty"`
	SourceFormat string `json:"srcFileFormat,omitempty"`
}

func (b *PixelBuffer) Info() Info {
	return Info{
		Width:        b.Width,
		Height:       b.Height,
		Mode:         b.Format.String(),
		SourcePath:   b.SourcePath,
		SourceFormat: b.SourceFormat,
	}
}
