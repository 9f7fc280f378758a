package led

import (
	"encoding"
	"encoding/hex"
	"fmt"
	"strings"
)

// RGBColor is a color with 8-bit red, green and blue channels.
type RGBColor [3]uint8

var (
	_ encoding.TextUnmarshaler = (*RGBColor)(nil)
	_ encoding.TextMarshaler   = (*RGBColor)(nil)
)

// RGB creates a new RGBColor.
func RGB(r, g, b uint8) RGBColor {
	return RGBColor{r, g, b}
}

// ParseRGBColor parses a color in the "#rrggbb" or "rrggbb" format.
func ParseRGBColor(s string) (RGBColor, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGBColor{}, fmt.Errorf("invalid color %q: expected #rrggbb", s)
	}

	var c RGBColor
	if _, err := hex.Decode(c[:], []byte(s)); err != nil {
		return RGBColor{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return c, nil
}

func (c *RGBColor) UnmarshalText(text []byte) error {
	parsed, err := ParseRGBColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c RGBColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// String returns the color in the "#rrggbb" format.
func (c RGBColor) String() string {
	return "#" + hex.EncodeToString(c[:])
}
