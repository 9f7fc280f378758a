package ledvis

import (
	"sync"
	"time"

	"github.com/noriah/catnip/processor"
	"gonum.org/v1/gonum/floats"
)

// Frame is a single spectrum frame produced by the audio input.
type Frame struct {
	// Bins holds one normalized magnitude per frequency bin.
	Bins []float64
	// AudioPresent is true if the raw spectrum was loud enough to count as
	// music.
	AudioPresent bool
	// Time is when the frame was produced.
	Time time.Time
}

// Clone returns a copy of the frame that does not share its bins.
func (f Frame) Clone() Frame {
	f.Bins = append([]float64(nil), f.Bins...)
	return f
}

const (
	gainRise  = 0.99
	gainDecay = 0.01
	gainFloor = 0.1
)

// OutputConfig is the configuration for Output.
type OutputConfig struct {
	// Bins is the number of bins to request from catnip.
	Bins int
	// MinVolume is the loudest raw bin value below which a frame counts as
	// silence.
	MinVolume float64
}

// Output is a catnip output that normalizes every processed spectrum and
// hands it to a callback.
type Output struct {
	cfg    OutputConfig
	mu     sync.Mutex
	gain   float64
	handle func(Frame)
}

var _ processor.Output = (*Output)(nil)

// NewOutput creates a new output calling handle for every frame. handle is
// called from catnip's processing goroutine and must not block.
func NewOutput(cfg OutputConfig, handle func(Frame)) *Output {
	return &Output{
		cfg:    cfg,
		gain:   gainFloor,
		handle: handle,
	}
}

// Bins implements processor.Output.
func (o *Output) Bins(int) int {
	return o.cfg.Bins
}

// Write implements processor.Output. Channels are averaged into a single
// spectrum.
func (o *Output) Write(bins [][]float64, nchannels int) error {
	if nchannels < 1 {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	frame := make([]float64, o.cfg.Bins)
	for ch := 0; ch < nchannels; ch++ {
		floats.Add(frame, bins[ch][:o.cfg.Bins])
	}
	floats.Scale(1/float64(nchannels), frame)

	present := AudioPresent(frame, o.cfg.MinVolume)

	o.updateGain(floats.Max(frame))
	floats.Scale(1/o.gain, frame)

	o.handle(Frame{
		Bins:         frame,
		AudioPresent: present,
		Time:         time.Now(),
	})

	return nil
}

// updateGain follows the spectrum peak quickly upwards and slowly downwards.
func (o *Output) updateGain(peak float64) {
	alpha := gainDecay
	if peak > o.gain {
		alpha = gainRise
	}
	o.gain = alpha*peak + (1-alpha)*o.gain
	if o.gain < gainFloor {
		o.gain = gainFloor
	}
}
