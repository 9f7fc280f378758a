package led

import (
	"bytes"
	"testing"
)

func TestParseRGBColor(t *testing.T) {
	tests := []struct {
		in   string
		want RGBColor
		fail bool
	}{
		{in: "#ff8000", want: RGB(255, 128, 0)},
		{in: "0a0B0c", want: RGB(10, 11, 12)},
		{in: "#fff", fail: true},
		{in: "#gg0000", fail: true},
		{in: "", fail: true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, err := ParseRGBColor(test.in)
			if test.fail {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal("unexpected error:", err)
			}
			if got != test.want {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestRGBColorText(t *testing.T) {
	var c RGBColor
	if err := c.UnmarshalText([]byte("#102030")); err != nil {
		t.Fatal(err)
	}
	b, err := c.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "#102030" {
		t.Errorf("got %q, want #102030", b)
	}
}

func TestPixelsToLEDs(t *testing.T) {
	p := NewPixels(3)
	p.SetRange(0, 1, [3]float64{-5, 100.7, 300})
	p.SetRange(1, 3, [3]float64{50, 50, 50})

	leds := p.ToLEDs(4, 200)
	want := LEDs{
		RGB(0, 100, 200),
		RGB(50, 50, 50),
		RGB(50, 50, 50),
		RGB(0, 0, 0),
	}
	for i := range want {
		if leds[i] != want[i] {
			t.Errorf("led %d: got %v, want %v", i, leds[i], want[i])
		}
	}

	if leds := p.ToLEDs(2, 255); len(leds) != 2 {
		t.Errorf("got %d LEDs, want 2", len(leds))
	}
}

func TestPixelsBlend(t *testing.T) {
	p := NewPixels(2)
	p.Fill(RGB(100, 200, 0))
	c := p.Clone()

	p.Scale(0.5)
	p.AddColor(RGB(10, 0, 20), 0.5)

	if got, want := p.At(0), RGB(55, 100, 10); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := c.At(1), RGB(100, 200, 0); got != want {
		t.Errorf("clone changed: got %v, want %v", got, want)
	}
	if p.Equal(c) {
		t.Error("expected frames to differ")
	}
}

func TestLEDsRotate(t *testing.T) {
	leds := LEDs{RGB(1, 0, 0), RGB(2, 0, 0), RGB(3, 0, 0), RGB(4, 0, 0)}

	leds.Rotate(1)
	want := LEDs{RGB(4, 0, 0), RGB(1, 0, 0), RGB(2, 0, 0), RGB(3, 0, 0)}
	for i := range want {
		if leds[i] != want[i] {
			t.Fatalf("after rotate: got %v, want %v", leds, want)
		}
	}

	leds.Rotate(-5)
	want = LEDs{RGB(1, 0, 0), RGB(2, 0, 0), RGB(3, 0, 0), RGB(4, 0, 0)}
	for i := range want {
		if leds[i] != want[i] {
			t.Fatalf("after rotating back: got %v, want %v", leds, want)
		}
	}
}

func TestLEDsWriteTo(t *testing.T) {
	leds := LEDs{RGB(1, 2, 3), RGB(4, 5, 6)}

	var buf bytes.Buffer
	n, err := leds.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("wrote %d bytes, want 6", n)
	}
	if !bytes.Equal(buf.Bytes(), []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("got %v", buf.Bytes())
	}
}
