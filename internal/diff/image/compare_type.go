package image

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// CompareType selects which pixels take part in a comparison and whether the
// alpha channel is compared.
type CompareType int

const (
	// AlphaLess ignores alpha when present.
	AlphaLess CompareType = iota + 1
	// AlphaHi1 compares only pixels whose alpha in the first buffer is 255.
	AlphaHi1
	// AlphaHi2 compares only pixels whose alpha in the second buffer is 255.
	AlphaHi2
	// AlphaLo1 skips pixels whose alpha in the first buffer is 0.
	AlphaLo1
	// AlphaLo2 skips pixels whose alpha in the second buffer is 0.
	AlphaLo2
	// Full compares colour and alpha. Alpha in only one buffer is a difference.
	Full
)

var CompareTypes = []CompareType{AlphaLess, AlphaHi1, AlphaHi2, AlphaLo1, AlphaLo2, Full}

var UnknownCompareTypeError = errors.New("unknown compare type")

func (c CompareType) String() string {
	switch c {
	case AlphaLess:
		return "ALPHALESS"
	case AlphaHi1:
		return "ALPHA_HI1"
	case AlphaHi2:
		return "ALPHA_HI2"
	case AlphaLo1:
		return "ALPHA_LO1"
	case AlphaLo2:
		return "ALPHA_LO2"
	case Full:
		return "FULL"
	}
	return fmt.Sprintf("CompareType(%d)", int(c))
}

func ParseCompareType(s string) (CompareType, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, c := range CompareTypes {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, xerrors.Errorf("%q: %w", s, UnknownCompareTypeError)
}

func (c CompareType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CompareType) UnmarshalText(text []byte) error {
	parsed, err := ParseCompareType(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c CompareType) IsValid() bool {
	return c >= AlphaLess && c <= Full
}

// RequiresAlpha reports which of the two buffers must be RGBA.
func (c CompareType) RequiresAlpha() (bool, bool) {
	switch c {
	case AlphaHi1, AlphaLo1:
		return true, false
	case AlphaHi2, AlphaLo2:
		return false, true
	}
	return false, false
}

// includes applies the per-pixel inclusion rule. alpha1 and alpha2 are only
// meaningful for buffers RequiresAlpha demanded.
func (c CompareType) includes(alpha1 byte, alpha2 byte) bool {
	switch c {
	case AlphaLess, Full:
		return true
	case AlphaHi1:
		return alpha1 == 0xFF
	case AlphaHi2:
		return alpha2 == 0xFF
	case AlphaLo1:
		return alpha1 != 0x00
	case AlphaLo2:
		return alpha2 != 0x00
	}
	panic(fmt.Sprintf("unhandled compare type %d", int(c)))
}
