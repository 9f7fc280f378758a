package effect

import (
	"errors"
	"math"
	"testing"
)

func testScrollConfig() ScrollConfig {
	return ScrollConfig{
		Pixels:     30,
		Gain:       1,
		Speed:      3,
		Decay:      0.9,
		Blur:       0.2,
		LowsColor:  red,
		MidsColor:  green,
		HighsColor: blue,
	}
}

// lowsFrame returns a spectrum with full energy in the lows only.
func lowsFrame(bins int) []float64 {
	frame := make([]float64, bins)
	for i := 0; i < bins/6; i++ {
		frame[i] = 1
	}
	return frame
}

func TestScrollOutputWidth(t *testing.T) {
	for _, pixels := range []int{2, 7, 30, 61} {
		cfg := testScrollConfig()
		cfg.Pixels = pixels
		cfg.Speed = 1

		s, err := NewScroll(cfg)
		if err != nil {
			t.Fatalf("NewScroll(%d pixels): %v", pixels, err)
		}

		out := s.Render(lowsFrame(24), Context{})
		if out.Len() != 2*pixels {
			t.Errorf("%d pixels: output width = %d, want %d", pixels, out.Len(), 2*pixels)
		}
	}
}

func TestScrollInjectsLowsColor(t *testing.T) {
	s, err := NewScroll(testScrollConfig())
	if err != nil {
		t.Fatalf("NewScroll: %v", err)
	}

	out := s.Render(lowsFrame(24), Context{})

	for i := 0; i < s.cfg.Speed; i++ {
		r, g, b := s.buf[0][i], s.buf[1][i], s.buf[2][i]
		if r <= g || r <= b {
			t.Errorf("buffer column %d = (%v, %v, %v), want red to dominate", i, r, g, b)
		}
		if r != 255 {
			t.Errorf("buffer column %d red = %v, want 255", i, r)
		}
	}

	// Buffer column 0 lands right after the middle of the output.
	middle := out.Len() / 2
	if c := out.At(middle); c != red {
		t.Errorf("output pixel %d = %v, want %v", middle, c, red)
	}
}

func TestScrollMixesBands(t *testing.T) {
	s, err := NewScroll(testScrollConfig())
	if err != nil {
		t.Fatalf("NewScroll: %v", err)
	}

	frame := make([]float64, 30)
	frame[0] = 0.5  // lows
	frame[6] = 1    // mids
	frame[29] = 0.2 // highs

	s.Render(frame, Context{})

	want := [3]float64{127, 255, 51}
	for ch, v := range want {
		if got := s.buf[ch][0]; got != v {
			t.Errorf("channel %d = %v, want %v", ch, got, v)
		}
	}
}

func TestScrollMovesAndDecays(t *testing.T) {
	cfg := testScrollConfig()
	cfg.Blur = 0 // keep values exact
	s, err := NewScroll(cfg)
	if err != nil {
		t.Fatalf("NewScroll: %v", err)
	}

	s.Render(lowsFrame(24), Context{})
	s.Render(make([]float64, 24), Context{})

	// The injected color moved by speed and faded by decay.
	for i := 0; i < cfg.Speed; i++ {
		if got := s.buf[0][i]; got != 0 {
			t.Errorf("column %d red = %v, want 0 after a silent frame", i, got)
		}
		want := math.Trunc(255 * cfg.Decay)
		if got := s.buf[0][cfg.Speed+i]; got != want {
			t.Errorf("column %d red = %v, want %v", cfg.Speed+i, got, want)
		}
	}
}

func TestScrollFadesOut(t *testing.T) {
	s, err := NewScroll(testScrollConfig())
	if err != nil {
		t.Fatalf("NewScroll: %v", err)
	}

	s.Render(lowsFrame(24), Context{})
	silence := make([]float64, 24)
	for i := 0; i < 200; i++ {
		s.Render(silence, Context{})
	}

	for ch := range s.buf {
		for i, v := range s.buf[ch] {
			if v != 0 {
				t.Fatalf("channel %d pixel %d = %v, want faded to 0", ch, i, v)
			}
		}
	}
}

func TestScrollFlip(t *testing.T) {
	cfg := testScrollConfig()
	cfg.Flip = true
	s, err := NewScroll(cfg)
	if err != nil {
		t.Fatalf("NewScroll: %v", err)
	}

	out := s.Render(lowsFrame(24), Context{})

	// The freshly injected pixels end up on the outer edges instead.
	if c := out.At(0); c != red {
		t.Errorf("first output pixel = %v, want %v", c, red)
	}
	if c := out.At(out.Len() / 2); c == red {
		t.Errorf("middle output pixel is still red after flipping")
	}
	// The stored buffer itself is never flipped.
	if s.buf[0][0] != 255 {
		t.Errorf("buffer column 0 red = %v, want 255", s.buf[0][0])
	}
}

func TestScrollInvalidSpeed(t *testing.T) {
	tests := []struct {
		name  string
		speed int
	}{
		{"zero", 0},
		{"negative", -2},
		{"pixel count", 30},
		{"beyond pixel count", 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testScrollConfig()
			cfg.Speed = tt.speed
			if _, err := NewScroll(cfg); !errors.Is(err, ErrInvalidSpeed) {
				t.Fatalf("NewScroll(speed %d) error = %v, want ErrInvalidSpeed", tt.speed, err)
			}
		})
	}
}

func TestReflectIndex(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{0, 4, 0},
		{3, 4, 3},
		{-1, 4, 0},
		{-2, 4, 1},
		{4, 4, 3},
		{5, 4, 2},
		{-5, 2, 0},
	}

	for _, tt := range tests {
		if got := reflectIndex(tt.i, tt.n); got != tt.want {
			t.Errorf("reflectIndex(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(1)
	if len(k) != 9 {
		t.Fatalf("kernel length = %d, want 9", len(k))
	}

	var sum float64
	for i, w := range k {
		sum += w
		if w != k[len(k)-1-i] {
			t.Errorf("kernel is not symmetric at %d", i)
		}
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("kernel sums to %v, want 1", sum)
	}
}
