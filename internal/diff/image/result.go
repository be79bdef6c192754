package image

import (
	"encoding/json"
	"fmt"
	"strconv"

	"pixelview/internal/geometry"
	"pixelview/internal/pixelbuf"
)

// DiffResult always carries IsDiff. Diagnostic is set when the inputs could not
// be compared; Details is set only when the whole window was scanned.
type DiffResult struct {
	IsDiff     bool
	Diagnostic *ValidationError
	Details    *Details
}

type Details struct {
	Geometry1 geometry.Geometry
	Geometry2 geometry.Geometry

	PixelDiffCount  int64
	AbsDiffCount    int64
	MaxChannelDelta uint8

	DeltaImageRGB    *pixelbuf.PixelBuffer
	DiffPixelRGBList []OffsetPair

	// Alpha is nil unless both buffers were RGBA under Full.
	Alpha *AlphaDetails

	width1 int
	bpp1   int
}

type AlphaDetails struct {
	DeltaImage    *pixelbuf.PixelBuffer
	Image1        *pixelbuf.PixelBuffer
	Image2        *pixelbuf.PixelBuffer
	DiffPixelList []OffsetPair
}

// OffsetPair holds the byte offsets of one differing pixel in each input buffer.
type OffsetPair struct {
	Offset1 int
	Offset2 int
}

func (p OffsetPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Offset1, p.Offset2})
}

func (p *OffsetPair) UnmarshalJSON(data []byte) error {
	var v [2]int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.Offset1, p.Offset2 = v[0], v[1]
	return nil
}

// WindowPoint converts a fail pixel into window coordinates.
func (d *Details) WindowPoint(pair OffsetPair) (int, int) {
	if d.width1 == 0 || d.bpp1 == 0 {
		return 0, 0
	}
	pixel := pair.Offset1 / d.bpp1
	return pixel%d.width1 - int(d.Geometry1.X), pixel/d.width1 - int(d.Geometry1.Y)
}

// DiffAmount is the fraction of window pixels that differ.
func (d *Details) DiffAmount() float64 {
	area := d.Geometry1.Area()
	if area == 0 {
		return 0.0
	}
	return float64(d.PixelDiffCount) / float64(area)
}

type Reason int

const (
	GeometryMismatch Reason = iota + 1
	InvalidGeometry
	InvalidFormatCombination
	InvalidCompareType
)

func (r Reason) String() string {
	switch r {
	case GeometryMismatch:
		return "Geometry mismatch"
	case InvalidGeometry:
		return "Invalid geometry"
	case InvalidFormatCombination:
		return "Invalid image format and comparison type combo"
	case InvalidCompareType:
		return "Invalid comparison type"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// ValidationError explains why two buffers could not be compared.
type ValidationError struct {
	Reason Reason

	Geometry1 geometry.Geometry
	Geometry2 geometry.Geometry

	Width1  int
	Height1 int
	Width2  int
	Height2 int

	CompareType    CompareType
	BytesPerPixel1 int
	BytesPerPixel2 int
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case GeometryMismatch:
		return fmt.Sprintf("%s: %s vs %s", e.Reason, e.Geometry1, e.Geometry2)
	case InvalidGeometry:
		return fmt.Sprintf("%s: %s within %dx%d, %s within %dx%d", e.Reason, e.Geometry1, e.Width1, e.Height1, e.Geometry2, e.Width2, e.Height2)
	case InvalidFormatCombination:
		return fmt.Sprintf("%s: %s with %d and %d bytes per pixel", e.Reason, e.CompareType, e.BytesPerPixel1, e.BytesPerPixel2)
	case InvalidCompareType:
		return fmt.Sprintf("%s: %s", e.Reason, e.CompareType)
	}
	return e.Reason.String()
}

// Fields flattens the diagnostic for logs and JSON output.
func (e *ValidationError) Fields() map[string]string {
	fields := map[string]string{
		"msg": e.Reason.String(),
	}
	switch e.Reason {
	case GeometryMismatch:
		fields["geometry1"] = e.Geometry1.String()
		fields["geometry2"] = e.Geometry2.String()
	case InvalidGeometry:
		fields["geometry1"] = e.Geometry1.String()
		fields["geometry2"] = e.Geometry2.String()
		fields["width1"] = strconv.Itoa(e.Width1)
		fields["width2"] = strconv.Itoa(e.Width2)
		fields["height1"] = strconv.Itoa(e.Height1)
		fields["height2"] = strconv.Itoa(e.Height2)
	case InvalidFormatCombination:
		fields["compareType"] = e.CompareType.String()
		fields["bytesPerPixel1"] = strconv.Itoa(e.BytesPerPixel1)
		fields["bytesPerPixel2"] = strconv.Itoa(e.BytesPerPixel2)
	case InvalidCompareType:
		fields["compareType"] = e.CompareType.String()
	}
	return fields
}
