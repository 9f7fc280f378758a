package glowvis

import (
	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/effect"
	"libdb.so/glowvis/internal/led"
)

// Effect names as used in the configuration.
const (
	EffectOff      = "Off"
	EffectSingle   = "Single"
	EffectGradient = "Gradient"
	EffectScroll   = "Scroll"
)

// newEffects builds the effects available to the given device. Every device
// gets its own instances since effects like Scroll keep state between frames.
func (c *Config) newEffects(dev *DeviceConfig) (*effect.Registry, error) {
	pixels := effectPixels(dev.Pixels)

	r := effect.NewRegistry()
	r.Register(EffectOff, effect.NewOff(pixels))

	single, err := c.color(dev.Single.Color)
	if err != nil {
		return nil, errors.Wrap(err, "single")
	}
	r.Register(EffectSingle, effect.NewSingle(pixels, single))

	gradient, err := c.gradient(dev.Gradient.Gradient)
	if err != nil {
		return nil, errors.Wrap(err, "gradient")
	}
	g, err := effect.NewGradient(pixels, gradient)
	if err != nil {
		return nil, invalidConfig(err)
	}
	r.Register(EffectGradient, g)

	scroll, err := c.scrollConfig(dev)
	if err != nil {
		return nil, errors.Wrap(err, "scroll")
	}
	s, err := effect.NewScroll(scroll)
	if err != nil {
		return nil, invalidConfig(err)
	}
	r.Register(EffectScroll, s)

	return r, nil
}

func (c *Config) scrollConfig(dev *DeviceConfig) (effect.ScrollConfig, error) {
	cfg := effect.ScrollConfig{
		Pixels: dev.Pixels / 2,
		Gain:   dev.Scroll.Gain,
		Speed:  dev.Scroll.Speed,
		Decay:  dev.Scroll.Decay,
		Blur:   dev.Scroll.Blur,
		Flip:   dev.Scroll.Flip,
	}

	var err error
	if cfg.LowsColor, err = c.color(dev.Scroll.LowsColor); err != nil {
		return cfg, err
	}
	if cfg.MidsColor, err = c.color(dev.Scroll.MidsColor); err != nil {
		return cfg, err
	}
	if cfg.HighsColor, err = c.color(dev.Scroll.HighsColor); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// gradient resolves a gradient name into its colors.
func (c *Config) gradient(name string) ([]led.RGBColor, error) {
	names, ok := c.Gradients[name]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown gradient %q", name)
	}

	colors := make([]led.RGBColor, len(names))
	for i, name := range names {
		color, err := c.color(name)
		if err != nil {
			return nil, err
		}
		colors[i] = color
	}

	return colors, nil
}
