package pixelbuf

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/xerrors"
)

var UnsupportedImageError = errors.New("unable to identify image format")

// FromImage converts a decoded image. Images carrying an alpha channel become
// RGBA buffers, opaque ones RGB.
func FromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	nrgba, ok := img.(*image.NRGBA)
	if !ok || !nrgba.Rect.Min.Eq(image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}

	format := RGBA
	if !hasAlphaChannel(img) {
		format = RGB
	}
	bpp := format.BytesPerPixel()

	pix := make([]byte, width*height*bpp)
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		if format == RGBA {
			copy(pix[y*width*4:], row)
			continue
		}
		for x := 0; x < width; x++ {
			copy(pix[(y*width+x)*3:(y*width+x)*3+3], row[x*4:x*4+3])
		}
	}

	return &PixelBuffer{
		Pix:    pix,
		Width:  width,
		Height: height,
		Format: format,
	}
}

func hasAlphaChannel(img image.Image) bool {
	switch i := img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	case *image.Paletted:
		return !i.Opaque()
	case *image.RGBA:
		return !i.Opaque()
	case *image.RGBA64:
		return !i.Opaque()
	}
	return false
}

// ToImage returns an NRGBA view of the buffer for encoding with image codecs.
func (b *PixelBuffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	if b.Format == RGBA {
		copy(img.Pix, b.Pix)
		return img
	}
	n := b.Width * b.Height
	for i := 0; i < n; i++ {
		copy(img.Pix[i*4:i*4+3], b.Pix[i*3:i*3+3])
		img.Pix[i*4+3] = 0xFF
	}
	return img
}

func (b *PixelBuffer) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, b.ToImage()); err != nil {
		return xerrors.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// DecodeAny accepts raw containers first and falls back to PNG.
func DecodeAny(data []byte) (*PixelBuffer, error) {
	if b, err := DecodeRaw(data); err == nil {
		return b, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, UnsupportedImageError)
	}
	if format != "png" {
		return nil, xerrors.Errorf("unsupported image format %s: %w", format, UnsupportedImageError)
	}

	b := FromImage(img)
	b.SourceFormat = "PNG"
	return b, nil
}

func Open(path string) (*PixelBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read %s: %w", path, err)
	}

	b, err := DecodeAny(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", path, err)
	}
	b.SourcePath = path
	return b, nil
}

// OpenOrPlaceholder never fails; unreadable inputs become a placeholder so a
// batch of comparisons can continue.
func OpenOrPlaceholder(path string, nullColor [3]uint8) (*PixelBuffer, error) {
	b, err := Open(path)
	if err != nil {
		p := Placeholder(nullColor)
		p.SourcePath = path
		return p, err
	}
	return b, nil
}
