// Package ledvis turns spectrum frames into LED frames. It keeps the
// per-device frequency history and band detector, picks the active effect and
// fades to an idle color when the music stops.
package ledvis

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"libdb.so/glowvis/internal/effect"
	"libdb.so/glowvis/internal/freq"
	"libdb.so/glowvis/internal/led"
)

const (
	// idleMixerDecay is how fast the idle color fades in per tick.
	idleMixerDecay = 0.97
	// idleOutputDecay is how fast the last live frame fades out per tick.
	idleOutputDecay = 0.96
)

// VisualizerConfig is the configuration for the visualizer.
type VisualizerConfig struct {
	// Pixels is the number of LEDs on the strip.
	Pixels int
	// Bins is the number of frequency bins in every spectrum frame.
	Bins int
	// Effect is the name of the effect to start with.
	Effect string
	// IdleColor is the color the strip fades to when there is no audio.
	IdleColor led.RGBColor
}

// Visualizer renders the frames of a single device. It is not safe for
// concurrent use; each device owns its own Visualizer.
type Visualizer struct {
	cfg      VisualizerConfig
	logger   *slog.Logger
	history  *freq.History
	detector *freq.Detector
	effects  *effect.Registry

	active     effect.Effect
	activeName string

	prev      led.Pixels
	idleMixer float64
}

// NewVisualizer creates a new visualizer using the given effects.
func NewVisualizer(cfg VisualizerConfig, effects *effect.Registry, logger *slog.Logger) (*Visualizer, error) {
	history, err := freq.NewHistory(cfg.Bins)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create frequency history")
	}

	v := &Visualizer{
		cfg:       cfg,
		logger:    logger,
		history:   history,
		detector:  freq.NewDetector(cfg.Bins),
		effects:   effects,
		prev:      led.NewPixels(cfg.Pixels),
		idleMixer: 1,
	}

	if err := v.SetEffect(cfg.Effect); err != nil {
		return nil, err
	}

	return v, nil
}

// SetEffect switches the active effect.
func (v *Visualizer) SetEffect(name string) error {
	e, err := v.effects.Lookup(name)
	if err != nil {
		return err
	}

	v.logger.Debug(
		"switching effect",
		"from", v.activeName,
		"to", name,
		"non_reactive", e.NonReactive())

	v.active = e
	v.activeName = name
	return nil
}

// Effect returns the name of the active effect.
func (v *Visualizer) Effect() string { return v.activeName }

// Detections returns the band events detected on the last frame.
func (v *Visualizer) Detections() freq.Flags { return v.detector.Flags() }

// Render processes one spectrum frame and returns the frame to show. The
// returned pixels are only valid until the next call to Render.
func (v *Visualizer) Render(frame []float64, audioPresent bool, now time.Time) led.Pixels {
	v.history.Push(frame)
	flags := v.detector.Evaluate(v.history, now)

	for _, band := range freq.Bands {
		if flags.Has(band) {
			v.logger.Debug("detected", "band", band)
		}
	}

	if v.active.NonReactive() || audioPresent {
		v.prev = v.active.Render(frame, effect.Context{
			Detections: flags,
			Time:       now,
		})
		v.idleMixer = 1
		return v.prev
	}

	// No audio: fade the last live frame out and the idle color in.
	v.idleMixer *= idleMixerDecay
	v.prev.Scale(idleOutputDecay)

	out := v.prev.Clone()
	out.AddColor(v.cfg.IdleColor, 1-v.idleMixer)
	return out
}

// AudioPresent returns true if the loudest bin of the frame reaches the
// minimum volume.
func AudioPresent(frame []float64, minVolume float64) bool {
	if len(frame) == 0 {
		return false
	}
	return floats.Max(frame) >= minVolume
}
