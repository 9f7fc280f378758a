package led

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Pixels is a frame of channel values laid out as three rows (red, green and
// blue) of one value per pixel. Values are nominally in [0, 255] but are kept
// as floats so that effects can fade and blend them; ToLEDs clips them.
type Pixels [3][]float64

// NewPixels allocates a black frame of n pixels.
func NewPixels(n int) Pixels {
	var p Pixels
	for ch := range p {
		p[ch] = make([]float64, n)
	}
	return p
}

// Len returns the number of pixels in the frame.
func (p Pixels) Len() int {
	return len(p[0])
}

// Clone returns a deep copy of p.
func (p Pixels) Clone() Pixels {
	var c Pixels
	for ch := range p {
		c[ch] = append([]float64(nil), p[ch]...)
	}
	return c
}

// Fill sets every pixel to c.
func (p Pixels) Fill(c RGBColor) {
	for ch := range p {
		v := float64(c[ch])
		for i := range p[ch] {
			p[ch][i] = v
		}
	}
}

// SetRange sets the pixels in [start, end) to the given channel values.
func (p Pixels) SetRange(start, end int, rgb [3]float64) {
	for ch := range p {
		for i := start; i < end; i++ {
			p[ch][i] = rgb[ch]
		}
	}
}

// At returns the color of pixel i, clipped to the 8-bit range.
func (p Pixels) At(i int) RGBColor {
	return RGBColor{clip(p[0][i], 255), clip(p[1][i], 255), clip(p[2][i], 255)}
}

// Scale multiplies every channel value by f.
func (p Pixels) Scale(f float64) {
	for ch := range p {
		floats.Scale(f, p[ch])
	}
}

// AddColor adds c scaled by f to every pixel.
func (p Pixels) AddColor(c RGBColor, f float64) {
	for ch := range p {
		floats.AddConst(float64(c[ch])*f, p[ch])
	}
}

// Equal returns true if both frames hold exactly the same values.
func (p Pixels) Equal(other Pixels) bool {
	for ch := range p {
		if !floats.Equal(p[ch], other[ch]) {
			return false
		}
	}
	return true
}

// ToLEDs converts the frame into a strip of n LEDs. Channel values are
// clipped to [0, maxBrightness]. Pixels beyond n are dropped and LEDs beyond
// the frame are left black.
func (p Pixels) ToLEDs(n int, maxBrightness uint8) LEDs {
	leds := NewLEDs(n)
	for i := 0; i < n && i < p.Len(); i++ {
		leds[i] = RGBColor{
			clip(p[0][i], maxBrightness),
			clip(p[1][i], maxBrightness),
			clip(p[2][i], maxBrightness),
		}
	}
	return leds
}

func clip(v float64, max uint8) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= float64(max):
		return max
	default:
		return uint8(v)
	}
}
