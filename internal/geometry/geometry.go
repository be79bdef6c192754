package geometry

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/xerrors"
)

// Geometry is an axis-aligned window into a pixel buffer.
type Geometry struct {
	X      int64
	Y      int64
	Width  int64
	Height int64
}

var InvalidGeometryError = errors.New("invalid geometry")

// Sample string to match: 320x240+0+0
var pattern = regexp.MustCompile(`^([0-9]+)x([0-9]+)\+([0-9]+)\+([0-9]+)$`)

// Parse reads the <width>x<height>+<x>+<y> form. Zero-area windows and values
// above MaxInt32 are rejected.
func Parse(s string) (Geometry, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Geometry{}, xerrors.Errorf("%q does not match <width>x<height>+<x>+<y>: %w", s, InvalidGeometryError)
	}

	var values [4]int64
	for i := range values {
		v, err := strconv.ParseInt(m[i+1], 10, 32)
		if err != nil {
			return Geometry{}, xerrors.Errorf("%q: %v: %w", s, err, InvalidGeometryError)
		}
		values[i] = v
	}

	g := Geometry{
		Width:  values[0],
		Height: values[1],
		X:      values[2],
		Y:      values[3],
	}
	if g.Area() == 0 {
		return Geometry{}, xerrors.Errorf("%q has zero area: %w", s, InvalidGeometryError)
	}
	return g, nil
}

func Full(width int, height int) Geometry {
	return Geometry{
		Width:  int64(width),
		Height: int64(height),
	}
}

func (g Geometry) IsAreaEqual(other Geometry) bool {
	return g.Width == other.Width && g.Height == other.Height
}

// FitsWithin reports whether the window lies inside a width x height buffer.
func (g Geometry) FitsWithin(width int, height int) bool {
	return g.X >= 0 && g.Y >= 0 && g.Width >= 0 && g.Height >= 0 &&
		g.X <= int64(width)-g.Width &&
		g.Y <= int64(height)-g.Height
}

func (g Geometry) Area() int64 {
	return g.Width * g.Height
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", g.Width, g.Height, g.X, g.Y)
}

func (g Geometry) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Geometry) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Set and Type let *Geometry be used as a command line flag value.
func (g *Geometry) Set(s string) error {
	return g.UnmarshalText([]byte(s))
}

func (g *Geometry) Type() string {
	return "geometry"
}
