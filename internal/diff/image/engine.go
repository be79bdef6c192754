package image

import (
	"runtime"
	"sync"
	"sync/atomic"

	"pixelview/internal/geometry"
	"pixelview/internal/pixelbuf"

	"golang.org/x/exp/constraints"
)

type Config struct {
	CompareType CompareType
	// Colors tints the delta images. nil paints every difference white.
	Colors            *ColorPolicy
	CollectFailPixels bool
	StopOnFirstDiff   bool
	// Workers bounds the number of row partitions scanned concurrently.
	// Zero or less means GOMAXPROCS.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		CompareType:       Full,
		Colors:            DefaultColorPolicy(),
		CollectFailPixels: true,
		StopOnFirstDiff:   false,
	}
}

type Engine struct {
	config Config
}

func NewEngine(config Config) *Engine {
	if config.CompareType == 0 {
		config.CompareType = Full
	}
	return &Engine{
		config: config,
	}
}

func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) Diff(first *pixelbuf.PixelBuffer, window1 *geometry.Geometry, second *pixelbuf.PixelBuffer, window2 *geometry.Geometry) *DiffResult {
	// includes panics on unknown compare types.
	if !e.config.CompareType.IsValid() {
		return &DiffResult{
			IsDiff: true,
			Diagnostic: &ValidationError{
				Reason:      InvalidCompareType,
				CompareType: e.config.CompareType,
			},
		}
	}

	g1 := geometry.Full(first.Width, first.Height)
	if window1 != nil {
		g1 = *window1
	}
	g2 := geometry.Full(second.Width, second.Height)
	if window2 != nil {
		g2 = *window2
	}

	if !g1.IsAreaEqual(g2) {
		return &DiffResult{
			IsDiff: true,
			Diagnostic: &ValidationError{
				Reason:    GeometryMismatch,
				Geometry1: g1,
				Geometry2: g2,
			},
		}
	}

	if !g1.FitsWithin(first.Width, first.Height) || !g2.FitsWithin(second.Width, second.Height) {
		return &DiffResult{
			IsDiff: true,
			Diagnostic: &ValidationError{
				Reason:    InvalidGeometry,
				Geometry1: g1,
				Geometry2: g2,
				Width1:    first.Width,
				Height1:   first.Height,
				Width2:    second.Width,
				Height2:   second.Height,
			},
		}
	}

	compareType := e.config.CompareType
	needAlpha1, needAlpha2 := compareType.RequiresAlpha()
	if (needAlpha1 && !first.HasAlpha()) || (needAlpha2 && !second.HasAlpha()) {
		return &DiffResult{
			IsDiff: true,
			Diagnostic: &ValidationError{
				Reason:         InvalidFormatCombination,
				CompareType:    compareType,
				BytesPerPixel1: first.BytesPerPixel(),
				BytesPerPixel2: second.BytesPerPixel(),
			},
		}
	}

	compareAlpha := false
	if compareType == Full {
		if first.HasAlpha() != second.HasAlpha() {
			return &DiffResult{IsDiff: true}
		}
		compareAlpha = first.HasAlpha()
	}

	width := int(g1.Width)
	height := int(g1.Height)

	s := &scan{
		config:       e.config,
		first:        first,
		second:       second,
		x1:           int(g1.X),
		y1:           int(g1.Y),
		x2:           int(g2.X),
		y2:           int(g2.Y),
		width:        width,
		compareAlpha: compareAlpha,
		deltaRGB:     newOutput(width, height),
	}
	if compareAlpha {
		s.deltaAlpha = newOutput(width, height)
		s.alpha1 = newOutput(width, height)
		s.alpha2 = newOutput(width, height)
	}

	numWorkers := e.workers(height)
	partials := make([]partial, numWorkers)
	var found atomic.Bool

	if numWorkers > 0 {
		rowsPerWorker := height / numWorkers

		var wg sync.WaitGroup
		wg.Add(numWorkers)
		for i := 0; i < numWorkers; i++ {
			startY := i * rowsPerWorker
			endY := startY + rowsPerWorker
			if i == numWorkers-1 {
				endY = height
			}

			go func(i int, startY int, endY int) {
				defer wg.Done()
				s.rows(startY, endY, &partials[i], &found)
			}(i, startY, endY)
		}
		wg.Wait()
	}

	if e.config.StopOnFirstDiff && found.Load() {
		return &DiffResult{IsDiff: true}
	}

	details := &Details{
		Geometry1:     g1,
		Geometry2:     g2,
		DeltaImageRGB: s.deltaRGB,
		width1:        first.Width,
		bpp1:          first.BytesPerPixel(),
	}
	if compareAlpha {
		details.Alpha = &AlphaDetails{
			DeltaImage: s.deltaAlpha,
			Image1:     s.alpha1,
			Image2:     s.alpha2,
		}
	}
	if e.config.CollectFailPixels {
		details.DiffPixelRGBList = make([]OffsetPair, 0)
		if details.Alpha != nil {
			details.Alpha.DiffPixelList = make([]OffsetPair, 0)
		}
	}

	// Partitions cover ascending row ranges, so appending in partition order
	// keeps the fail pixel lists in row-major order.
	for i := range partials {
		p := &partials[i]
		details.PixelDiffCount += p.pixelDiffCount
		details.AbsDiffCount += p.absDiffCount
		details.MaxChannelDelta = max(details.MaxChannelDelta, p.maxChannelDelta)
		if e.config.CollectFailPixels {
			details.DiffPixelRGBList = append(details.DiffPixelRGBList, p.rgbList...)
			if details.Alpha != nil {
				details.Alpha.DiffPixelList = append(details.Alpha.DiffPixelList, p.alphaList...)
			}
		}
	}

	return &DiffResult{
		IsDiff:  details.PixelDiffCount != 0,
		Details: details,
	}
}

func (e *Engine) workers(height int) int {
	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	n := e.config.Workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return min(n, height)
}

func newOutput(width int, height int) *pixelbuf.PixelBuffer {
	return &pixelbuf.PixelBuffer{
		Pix:    make([]byte, width*height*3),
		Width:  width,
		Height: height,
		Format: pixelbuf.RGB,
	}
}

type scan struct {
	config Config

	first  *pixelbuf.PixelBuffer
	second *pixelbuf.PixelBuffer
	x1, y1 int
	x2, y2 int
	width  int

	compareAlpha bool

	deltaRGB   *pixelbuf.PixelBuffer
	deltaAlpha *pixelbuf.PixelBuffer
	alpha1     *pixelbuf.PixelBuffer
	alpha2     *pixelbuf.PixelBuffer
}

// partial accumulates one row range. Each partition owns its partial and
// writes only its own rows of the output buffers.
type partial struct {
	pixelDiffCount  int64
	absDiffCount    int64
	maxChannelDelta uint8
	rgbList         []OffsetPair
	alphaList       []OffsetPair
}

func (s *scan) rows(startY int, endY int, p *partial, found *atomic.Bool) {
	pix1 := s.first.Pix
	pix2 := s.second.Pix
	bpp1 := s.first.BytesPerPixel()
	bpp2 := s.second.BytesPerPixel()
	compareType := s.config.CompareType
	colors := s.config.Colors
	collect := s.config.CollectFailPixels
	stop := s.config.StopOnFirstDiff

	for j := startY; j < endY; j++ {
		if stop && found.Load() {
			return
		}

		rowStart1 := ((j+s.y1)*s.first.Width + s.x1) * bpp1
		rowStart2 := ((j+s.y2)*s.second.Width + s.x2) * bpp2
		outputRowStart := j * s.width * 3

		for i := 0; i < s.width; i++ {
			offset1 := rowStart1 + i*bpp1
			offset2 := rowStart2 + i*bpp2
			outputOffset := outputRowStart + i*3

			var a1, a2 byte
			if bpp1 == 4 {
				a1 = pix1[offset1+3]
			}
			if bpp2 == 4 {
				a2 = pix2[offset2+3]
			}
			if !compareType.includes(a1, a2) {
				continue
			}

			dr := absDelta(pix1[offset1], pix2[offset2])
			dg := absDelta(pix1[offset1+1], pix2[offset2+1])
			db := absDelta(pix1[offset1+2], pix2[offset2+2])
			rgbDelta := max(dr, dg, db)

			var da uint8
			if s.compareAlpha {
				da = absDelta(a1, a2)
				fill(s.alpha1.Pix[outputOffset:outputOffset+3], a1)
				fill(s.alpha2.Pix[outputOffset:outputOffset+3], a2)
			}

			p.maxChannelDelta = max(p.maxChannelDelta, rgbDelta, da)
			p.absDiffCount += int64(dr) + int64(dg) + int64(db) + int64(da)

			different := false
			if rgbDelta > 0 {
				different = true
				c := colors.ColorFor(rgbDelta)
				copy(s.deltaRGB.Pix[outputOffset:outputOffset+3], c[:])
				if collect {
					p.rgbList = append(p.rgbList, OffsetPair{Offset1: offset1, Offset2: offset2})
				}
			}
			if da > 0 {
				different = true
				c := colors.ColorFor(da)
				copy(s.deltaAlpha.Pix[outputOffset:outputOffset+3], c[:])
				if collect {
					p.alphaList = append(p.alphaList, OffsetPair{Offset1: offset1, Offset2: offset2})
				}
			}

			if different {
				p.pixelDiffCount++
				if stop {
					found.Store(true)
					return
				}
			}
		}
	}
}

func absDelta[T constraints.Unsigned](a T, b T) T {
	if a > b {
		return a - b
	}
	return b - a
}

func fill(dst []byte, v byte) {
	for i := range dst {
		dst[i] = v
	}
}
