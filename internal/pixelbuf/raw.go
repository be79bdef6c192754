package pixelbuf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// The raw container is a one line ASCII header "<tag> <width> <height>\n"
// followed by exactly width*height*bpp bytes of packed pixels.

var (
	InvalidHeaderError = errors.New("invalid raw container header")
	BodyLengthError    = errors.New("raw container body length mismatch")
)

const maxHeaderLength = 64

var headerPattern = regexp.MustCompile(`^(rgb888|rgba8888) ([0-9]+) ([0-9]+)$`)

func (b *PixelBuffer) Encode(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %d %d\n", b.Format.Tag(), b.Width, b.Height); err != nil {
		return xerrors.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(b.Pix); err != nil {
		return xerrors.Errorf("failed to write body: %w", err)
	}
	return nil
}

func (b *PixelBuffer) MarshalBinary() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.Grow(len(b.Pix) + maxHeaderLength)
	if err := b.Encode(&buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (b *PixelBuffer) Save(path string) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return xerrors.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Decode reads a raw container that must hold the given format.
func Decode(r io.Reader, format Format) (*PixelBuffer, error) {
	br := bufio.NewReader(r)

	// ReadSlice stops at the buffer size, so a body without a newline is
	// never read whole.
	header, err := br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return nil, xerrors.Errorf("header longer than %d bytes: %w", maxHeaderLength, InvalidHeaderError)
	}
	if err != nil {
		return nil, xerrors.Errorf("missing header terminator: %w", InvalidHeaderError)
	}
	width, height, err := parseHeader(strings.TrimSuffix(string(header), "\n"), format)
	if err != nil {
		return nil, err
	}

	// Allocation follows the bytes read, never the size the header claims.
	expected := width * height * format.BytesPerPixel()
	pix, err := io.ReadAll(io.LimitReader(br, int64(expected)+1))
	if err != nil {
		return nil, xerrors.Errorf("failed to read body: %w", err)
	}
	if len(pix) < expected {
		return nil, xerrors.Errorf("expected %d bytes, got %d: %w", expected, len(pix), BodyLengthError)
	}
	if len(pix) > expected {
		return nil, xerrors.Errorf("trailing data after %d bytes: %w", expected, BodyLengthError)
	}

	return &PixelBuffer{
		Pix:          pix,
		Width:        width,
		Height:       height,
		Format:       format,
		SourceFormat: strings.ToUpper(format.Tag()),
	}, nil
}

// DecodeRaw tries the RGBA container first and then the RGB one.
func DecodeRaw(data []byte) (*PixelBuffer, error) {
	b, err := Decode(bytes.NewReader(data), RGBA)
	if err == nil {
		return b, nil
	}
	b, rgbErr := Decode(bytes.NewReader(data), RGB)
	if rgbErr == nil {
		return b, nil
	}
	if errors.Is(err, BodyLengthError) {
		return nil, err
	}
	return nil, rgbErr
}

func LoadRaw(path string, format Format) (*PixelBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	b, err := Decode(f, format)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", path, err)
	}
	b.SourcePath = path
	return b, nil
}

func parseHeader(header string, format Format) (int, int, error) {
	if len(header) > maxHeaderLength {
		return 0, 0, xerrors.Errorf("header longer than %d bytes: %w", maxHeaderLength, InvalidHeaderError)
	}
	m := headerPattern.FindStringSubmatch(header)
	if m == nil || m[1] != format.Tag() {
		return 0, 0, xerrors.Errorf("%q is not a %s header: %w", header, format.Tag(), InvalidHeaderError)
	}

	width, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, xerrors.Errorf("width %q: %v: %w", m[2], err, InvalidHeaderError)
	}
	height, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, 0, xerrors.Errorf("height %q: %v: %w", m[3], err, InvalidHeaderError)
	}
	if width > 0 && height > math.MaxInt32/width/format.BytesPerPixel() {
		return 0, 0, xerrors.Errorf("%dx%d is too large: %w", width, height, InvalidHeaderError)
	}
	return width, height, nil
}
