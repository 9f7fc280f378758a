package freq

import (
	"fmt"
	"math"
	"time"
)

// Band is a named range of frequency bins used for event detection.
type Band uint8

const (
	Beat Band = iota
	Low
	Mid
	High
	numBands
)

// Bands lists every band in detection order.
var Bands = [numBands]Band{Beat, Low, Mid, High}

func (b Band) String() string {
	switch b {
	case Beat:
		return "beat"
	case Low:
		return "low"
	case Mid:
		return "mid"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Band(%d)", b)
	}
}

// DebounceInterval is the minimum time between two firings of the same band.
const DebounceInterval = 200 * time.Millisecond

// Range is a half-open interval of bin indices.
type Range struct {
	Low, High int
}

// Len returns the number of bins in the range.
func (r Range) Len() int {
	if r.High < r.Low {
		return 0
	}
	return r.High - r.Low
}

// bandCuts are the fractional cut points of every band.
var bandCuts = [numBands][2]float64{
	Beat: {0, 0.11},
	Low:  {0.13, 0.4},
	Mid:  {0.4, 0.7},
	High: {0.8, 1},
}

// Ranges returns the detection range of every band for the given bin count.
func Ranges(bins int) [numBands]Range {
	var ranges [numBands]Range
	for b, cut := range bandCuts {
		ranges[b] = Range{
			Low:  int(float64(bins) * cut[0]),
			High: int(float64(bins) * cut[1]),
		}
	}
	return ranges
}

// Flags holds the detection result of a single tick.
type Flags [numBands]bool

// Has returns true if the band fired this tick.
func (f Flags) Has(b Band) bool { return f[b] }

// Any returns true if any band fired this tick.
func (f Flags) Any() bool {
	for _, on := range f {
		if on {
			return true
		}
	}
	return false
}

type bandState struct {
	minAmplitude   float64
	minPercentDiff float64
	lastFired      time.Time
}

// Detector flags sudden rises of energy in the beat, low, mid and high bands
// relative to the rolling average kept in a History.
type Detector struct {
	ranges  [numBands]Range
	bands   [numBands]bandState
	current Flags
}

// NewDetector creates a detector for a spectrum of the given bin count.
func NewDetector(bins int) *Detector {
	return &Detector{
		ranges: Ranges(bins),
		bands: [numBands]bandState{
			Beat: {minAmplitude: 0.7, minPercentDiff: 70},
			Low:  {minAmplitude: 0.5, minPercentDiff: 100},
			Mid:  {minAmplitude: 0.3, minPercentDiff: 50},
			High: {minAmplitude: 0.3, minPercentDiff: 30},
		},
	}
}

// Ranges returns the detection ranges used by the detector.
func (d *Detector) Ranges() [numBands]Range { return d.ranges }

// Flags returns the result of the last Evaluate call.
func (d *Detector) Flags() Flags { return d.current }

// Evaluate runs detection over the history at the given time. Nothing fires
// until the history is full.
func (d *Detector) Evaluate(h *History, now time.Time) Flags {
	d.current = Flags{}
	if !h.Full() {
		return d.current
	}

	for b := range d.bands {
		band := &d.bands[b]
		if now.Sub(band.lastFired) < DebounceInterval {
			continue
		}
		if !d.triggered(h, d.ranges[b], band) {
			continue
		}
		band.lastFired = now
		d.current[b] = true
	}

	return d.current
}

func (d *Detector) triggered(h *History, r Range, band *bandState) bool {
	for i := r.Low; i < r.High && i < h.Bins(); i++ {
		newest := h.Newest(i)
		if newest >= band.minAmplitude && percentDiff(newest, h.Mean(i)) >= band.minPercentDiff {
			return true
		}
	}
	return false
}

// percentDiff returns how far v lies above avg in whole percent, rounded
// down. A zero average counts as no deviation.
func percentDiff(v, avg float64) float64 {
	if avg == 0 {
		return 0
	}
	return floorDiv((v-avg)*100, avg)
}

// floorDiv divides x by y rounding towards negative infinity. The quotient is
// derived from the remainder so that exact multiples such as 45 / 0.45 are
// not rounded up by the division itself.
func floorDiv(x, y float64) float64 {
	mod := math.Mod(x, y)
	div := (x - mod) / y
	if mod != 0 && (y < 0) != (mod < 0) {
		div--
	}
	if div == 0 {
		return math.Copysign(0, x/y)
	}

	q := math.Floor(div)
	if div-q > 0.5 {
		q++
	}
	return q
}
