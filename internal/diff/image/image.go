package image

import (
	"pixelview/internal/geometry"
	"pixelview/internal/pixelbuf"
)

// Differ compares a window of one buffer against an equally sized window of
// another. A nil window selects the whole buffer.
type Differ interface {
	Diff(first *pixelbuf.PixelBuffer, window1 *geometry.Geometry, second *pixelbuf.PixelBuffer, window2 *geometry.Geometry) *DiffResult
}
