package effect

import (
	"math"

	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/led"
)

// gradientSlope is the steepness of the easing curve between two colors.
const gradientSlope = 2.5

// Gradient shows a static gradient mirrored about the middle of the strip.
type Gradient struct {
	frame led.Pixels
}

// NewGradient creates a gradient effect easing through the given colors. The
// gradient is generated for half of the strip and mirrored, so the first
// color sits at both ends of the strip.
func NewGradient(pixels int, colors []led.RGBColor) (*Gradient, error) {
	half := pixels / 2
	if len(colors) < 2 {
		return nil, errors.Wrap(ErrInvalidOption, "gradient needs at least two colors")
	}
	if half < len(colors)-1 {
		return nil, errors.Wrapf(ErrInvalidOption,
			"strip of %d pixels is too short for a gradient of %d colors", pixels, len(colors))
	}

	g := easeGradient(colors, half)

	frame := led.NewPixels(2 * half)
	for ch := range frame {
		for i, v := range g[ch] {
			frame[ch][half-1-i] = v
			frame[ch][half+i] = v
		}
	}

	return &Gradient{frame: frame}, nil
}

func (g *Gradient) Render([]float64, Context) led.Pixels { return g.frame.Clone() }
func (g *Gradient) NonReactive() bool                    { return true }

// easeGradient returns length pixels easing between the given colors. The
// last color comes first.
func easeGradient(colors []led.RGBColor, length int) led.Pixels {
	reversed := make([]led.RGBColor, len(colors))
	for i, c := range colors {
		reversed[len(colors)-1-i] = c
	}

	transitions := len(reversed) - 1
	easeLength := length / transitions
	pad := length - transitions*easeLength

	ease := make([]float64, easeLength)
	for i := range ease {
		ease[i] = easing(float64(i)/float64(easeLength), gradientSlope)
	}

	out := led.NewPixels(length)
	for ch := range out {
		for j := 0; j < transitions; j++ {
			start := float64(reversed[j][ch])
			diff := float64(reversed[j+1][ch]) - start
			for k, e := range ease {
				out[ch][j*easeLength+k] = math.Trunc(start + diff*e)
			}
		}
		if pad > 0 {
			last := out[ch][length-pad-1]
			for i := length - pad; i < length; i++ {
				out[ch][i] = last
			}
		}
	}

	return out
}

func easing(x, slope float64) float64 {
	xa := math.Pow(x, slope)
	return xa / (xa + math.Pow(1-x, slope))
}
