package image

import (
	"pixelview/internal/geometry"
	"pixelview/internal/pixelbuf"
)

const DefaultRegionProximity = 10

// Regions groups the differing pixels of a completed comparison into bounding
// boxes in window coordinates. Boxes that overlap or lie within proximity
// pixels of each other are merged. Fail pixel lists must have been collected.
func (d *Details) Regions(proximity int) []geometry.Geometry {
	width := int(d.Geometry1.Width)
	height := int(d.Geometry1.Height)
	if width == 0 || height == 0 {
		return nil
	}

	diffMap := make([][]bool, height)
	for i := range diffMap {
		diffMap[i] = make([]bool, width)
	}
	marked := 0
	mark := func(pairs []OffsetPair) {
		for _, pair := range pairs {
			x, y := d.WindowPoint(pair)
			if x >= 0 && x < width && y >= 0 && y < height && !diffMap[y][x] {
				diffMap[y][x] = true
				marked++
			}
		}
	}
	mark(d.DiffPixelRGBList)
	if d.Alpha != nil {
		mark(d.Alpha.DiffPixelList)
	}
	if marked == 0 {
		return nil
	}

	visited := make([][]bool, height)
	for i := range visited {
		visited[i] = make([]bool, width)
	}

	var regions []geometry.Geometry
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if diffMap[y][x] && !visited[y][x] {
				regions = append(regions, findBoundingBox(diffMap, visited, x, y, width, height))
			}
		}
	}

	return mergeRegions(regions, int64(proximity))
}

// findBoundingBox flood fills the 8-connected group containing (startX, startY).
func findBoundingBox(diffMap [][]bool, visited [][]bool, startX int, startY int, width int, height int) geometry.Geometry {
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	type point struct {
		x int
		y int
	}
	queue := []point{{startX, startY}}
	visited[startY][startX] = true

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		minX = min(minX, p.x)
		maxX = max(maxX, p.x)
		minY = min(minY, p.y)
		maxY = max(maxY, p.y)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}

				nx := p.x + dx
				ny := p.y + dy
				if nx >= 0 && nx < width && ny >= 0 && ny < height &&
					diffMap[ny][nx] && !visited[ny][nx] {
					visited[ny][nx] = true
					queue = append(queue, point{nx, ny})
				}
			}
		}
	}

	return geometry.Geometry{
		X:      int64(minX),
		Y:      int64(minY),
		Width:  int64(maxX - minX + 1),
		Height: int64(maxY - minY + 1),
	}
}

func mergeRegions(regions []geometry.Geometry, proximity int64) []geometry.Geometry {
	if len(regions) <= 1 {
		return regions
	}

	merged := make([]geometry.Geometry, 0, len(regions))
	used := make([]bool, len(regions))

	for i := 0; i < len(regions); i++ {
		if used[i] {
			continue
		}

		current := regions[i]
		mergedAny := true
		for mergedAny {
			mergedAny = false
			for j := i + 1; j < len(regions); j++ {
				if used[j] {
					continue
				}
				if overlaps(expand(current, proximity), expand(regions[j], proximity)) {
					current = combine(current, regions[j])
					used[j] = true
					mergedAny = true
				}
			}
		}

		merged = append(merged, current)
	}

	return merged
}

func expand(g geometry.Geometry, by int64) geometry.Geometry {
	return geometry.Geometry{
		X:      g.X - by,
		Y:      g.Y - by,
		Width:  g.Width + 2*by,
		Height: g.Height + 2*by,
	}
}

func overlaps(a geometry.Geometry, b geometry.Geometry) bool {
	return !(a.X+a.Width <= b.X || b.X+b.Width <= a.X ||
		a.Y+a.Height <= b.Y || b.Y+b.Height <= a.Y)
}

func combine(a geometry.Geometry, b geometry.Geometry) geometry.Geometry {
	minX := min(a.X, b.X)
	minY := min(a.Y, b.Y)
	maxX := max(a.X+a.Width, b.X+b.Width)
	maxY := max(a.Y+a.Height, b.Y+b.Height)
	return geometry.Geometry{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Marker returns a copy of the RGB delta image with the pixel of one fail
// pair painted in c.
func (d *Details) Marker(pair OffsetPair, c Color) *pixelbuf.PixelBuffer {
	marked := d.DeltaImageRGB.Clone()
	x, y := d.WindowPoint(pair)
	if px, ok := marked.PixelAt(x, y); ok {
		copy(px, c[:])
	}
	return marked
}
