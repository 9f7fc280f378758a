// Package effect contains the LED effects that turn a spectrum frame into
// pixels.
package effect

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/freq"
	"libdb.so/glowvis/internal/led"
)

// ErrUnknownEffect is returned when looking up an effect that is not
// registered.
var ErrUnknownEffect = errors.New("unknown effect")

// ErrInvalidOption is returned when an effect is constructed with options it
// cannot work with.
var ErrInvalidOption = errors.New("invalid effect option")

// Context is the per-tick state that effects may react to.
type Context struct {
	// Detections holds the band events detected this tick.
	Detections freq.Flags
	// Time is the time of the tick.
	Time time.Time
}

// Effect renders a frame of pixels from a spectrum frame.
type Effect interface {
	// Render renders the spectrum frame into pixels. The returned frame
	// belongs to the caller; stateful effects keep their own buffer.
	Render(frame []float64, ctx Context) led.Pixels
	// NonReactive returns true if the effect should keep rendering while no
	// audio is playing.
	NonReactive() bool
}

// Registry maps effect names to the effect instances of a single device.
type Registry struct {
	effects map[string]Effect
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{effects: make(map[string]Effect)}
}

// Register adds an effect under the given name, replacing any previous one.
func (r *Registry) Register(name string, e Effect) {
	r.effects[name] = e
}

// Lookup returns the effect with the given name.
func (r *Registry) Lookup(name string) (Effect, error) {
	e, ok := r.effects[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEffect, "%q", name)
	}
	return e, nil
}

// Names returns the sorted names of all registered effects.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.effects))
	for name := range r.effects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NonReactive returns the sorted names of the effects that render without
// audio.
func (r *Registry) NonReactive() []string {
	var names []string
	for _, name := range r.Names() {
		if r.effects[name].NonReactive() {
			names = append(names, name)
		}
	}
	return names
}

// Off renders a black strip. It is reactive, so the idle color takes over
// when the music stops.
type Off struct {
	pixels int
}

// NewOff creates an Off effect for a strip of the given length.
func NewOff(pixels int) *Off {
	return &Off{pixels: pixels}
}

func (o *Off) Render([]float64, Context) led.Pixels { return led.NewPixels(o.pixels) }
func (o *Off) NonReactive() bool                    { return false }

// Single fills the whole strip with one color.
type Single struct {
	pixels int
	color  led.RGBColor
}

// NewSingle creates a Single effect.
func NewSingle(pixels int, color led.RGBColor) *Single {
	return &Single{pixels: pixels, color: color}
}

func (s *Single) Render([]float64, Context) led.Pixels {
	p := led.NewPixels(s.pixels)
	p.Fill(s.color)
	return p
}

func (s *Single) NonReactive() bool { return true }
