package effect

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"libdb.so/glowvis/internal/led"
)

// ErrInvalidSpeed is returned when a scroll speed would not move the strip or
// would push everything off of it.
var ErrInvalidSpeed = errors.New("invalid scroll speed")

// ScrollConfig configures a Scroll effect.
type ScrollConfig struct {
	// Pixels is the number of pixels on each side of the strip center. The
	// rendered frame is twice as long.
	Pixels int
	// Gain is the exponent applied to the spectrum before it is clipped.
	Gain float64
	// Speed is how many pixels the scroll moves each tick.
	Speed int
	// Decay is how much of the previous frame is kept each tick.
	Decay float64
	// Blur is the sigma of the Gaussian blur applied along the strip.
	Blur float64
	// LowsColor, MidsColor and HighsColor are the colors of each band at
	// full energy.
	LowsColor  led.RGBColor
	MidsColor  led.RGBColor
	HighsColor led.RGBColor
	// Flip mirrors the strip.
	Flip bool
}

// Scroll pushes a color mixed from the low, mid and high energy into the
// middle of the strip and scrolls it outwards, fading and blurring as it
// goes.
type Scroll struct {
	cfg    ScrollConfig
	buf    led.Pixels
	kernel []float64
	row    []float64 // blur scratch
}

// NewScroll creates a Scroll effect.
func NewScroll(cfg ScrollConfig) (*Scroll, error) {
	if cfg.Pixels < 2 {
		return nil, errors.Wrapf(ErrInvalidOption, "scroll needs at least 2 pixels per side, got %d", cfg.Pixels)
	}
	if cfg.Speed < 1 || cfg.Speed >= cfg.Pixels {
		return nil, errors.Wrapf(ErrInvalidSpeed, "speed %d not in [1, %d)", cfg.Speed, cfg.Pixels)
	}

	width := 2 * cfg.Pixels

	return &Scroll{
		cfg:    cfg,
		buf:    led.NewPixels(width),
		kernel: gaussianKernel(cfg.Blur),
		row:    make([]float64, width),
	}, nil
}

func (s *Scroll) NonReactive() bool { return false }

func (s *Scroll) Render(frame []float64, _ Context) led.Pixels {
	y := make([]float64, len(frame))
	for i, v := range frame {
		y[i] = math.Min(math.Max(math.Pow(v, s.cfg.Gain), 0), 1)
	}

	n := len(y)
	lows := bandMax(y[:n/6])
	mids := bandMax(y[n/6 : 2*n/5])
	highs := bandMax(y[2*n/5:])

	var color [3]float64
	for ch := range color {
		color[ch] = math.Trunc(float64(s.cfg.LowsColor[ch])*lows) +
			math.Trunc(float64(s.cfg.MidsColor[ch])*mids) +
			math.Trunc(float64(s.cfg.HighsColor[ch])*highs)
	}

	speed := s.cfg.Speed
	for _, row := range s.buf {
		copy(row[speed:], row[:len(row)-speed])
		floats.Scale(s.cfg.Decay, row)
		truncate(row)
		s.blur(row)
	}

	s.buf.SetRange(0, speed, color)

	src := s.buf
	if s.cfg.Flip {
		src = flipped(s.buf)
	}

	return mirror(src)
}

// blur applies the Gaussian kernel to row in place. Edges are mirrored.
func (s *Scroll) blur(row []float64) {
	if len(s.kernel) == 1 {
		return
	}

	radius := len(s.kernel) / 2
	n := len(row)
	for i := range s.row {
		var sum float64
		for k, w := range s.kernel {
			sum += w * row[reflectIndex(i+k-radius, n)]
		}
		s.row[i] = sum
	}

	copy(row, s.row)
	truncate(row)
}

// gaussianKernel returns a normalized Gaussian kernel of the given sigma,
// truncated at four sigmas.
func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}

	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)

	return kernel
}

// reflectIndex maps i into [0, n) by mirroring about the edges, repeating the
// edge sample: d c b a | a b c d | d c b a.
func reflectIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

func bandMax(band []float64) float64 {
	if len(band) == 0 {
		return 0
	}
	return floats.Max(band)
}

func truncate(row []float64) {
	for i, v := range row {
		row[i] = math.Trunc(v)
	}
}

func flipped(p led.Pixels) led.Pixels {
	out := led.NewPixels(p.Len())
	for ch := range p {
		for i, v := range p[ch] {
			out[ch][len(p[ch])-1-i] = v
		}
	}
	return out
}

// mirror lays every other pixel of p outwards from the middle of the frame:
// the odd pixels reversed on the left half, the even pixels on the right.
func mirror(p led.Pixels) led.Pixels {
	n := p.Len()
	half := (n + 1) / 2

	out := led.NewPixels(2 * half)
	for ch := range p {
		for i := 0; i < half; i++ {
			out[ch][i] = p[ch][n-1-2*i]
			out[ch][half+i] = p[ch][2*i]
		}
	}
	return out
}
