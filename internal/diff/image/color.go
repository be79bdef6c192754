package image

import (
	"errors"
	"strconv"

	"golang.org/x/xerrors"
)

type Color [3]uint8

var (
	Black = Color{0x00, 0x00, 0x00}
	White = Color{0xFF, 0xFF, 0xFF}
	Red   = Color{0xFF, 0x00, 0x00}
	Green = Color{0x00, 0xFF, 0x00}
	Blue  = Color{0x00, 0x00, 0xFF}
)

const DefaultColorKey = "default"

var InvalidColorKeyError = errors.New("invalid color key")

// ColorPolicy maps a channel delta magnitude to the tint used in delta images.
// A nil policy paints every magnitude white.
type ColorPolicy struct {
	table [256]Color
}

func NewColorPolicy(fallback Color, colors map[uint8]Color) *ColorPolicy {
	p := &ColorPolicy{}
	for i := range p.table {
		p.table[i] = fallback
	}
	for magnitude, c := range colors {
		p.table[magnitude] = c
	}
	return p
}

// ParseColorPolicy accepts the string keyed form used by config files: decimal
// magnitudes plus an optional "default" entry.
func ParseColorPolicy(colors map[string]Color) (*ColorPolicy, error) {
	fallback := White
	if c, ok := colors[DefaultColorKey]; ok {
		fallback = c
	}

	byMagnitude := make(map[uint8]Color, len(colors))
	for key, c := range colors {
		if key == DefaultColorKey {
			continue
		}
		magnitude, err := strconv.ParseUint(key, 10, 8)
		if err != nil {
			return nil, xerrors.Errorf("%q: %w", key, InvalidColorKeyError)
		}
		byMagnitude[uint8(magnitude)] = c
	}
	return NewColorPolicy(fallback, byMagnitude), nil
}

func DefaultColorPolicy() *ColorPolicy {
	return NewColorPolicy(White, map[uint8]Color{
		0: Black,
		1: Green,
		2: Blue,
	})
}

func (p *ColorPolicy) ColorFor(magnitude uint8) Color {
	if p == nil {
		return White
	}
	return p.table[magnitude]
}
