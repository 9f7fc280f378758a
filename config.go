package glowvis

import (
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/led"
)

// MaxSampleSize is the largest audio sample size catnip can analyze. The
// spectrum has at most half as many bins as samples.
const MaxSampleSize = 2048

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration for the glowvis daemon.
type Config struct {
	// Rate is the number of frames rendered per second.
	Rate int `toml:"rate"`
	// Audio is the configuration for the audio input.
	Audio AudioConfig `toml:"audio"`
	// Colors maps color names to colors. They are merged over the default
	// colors.
	Colors map[string]led.RGBColor `toml:"colors"`
	// Gradients maps gradient names to a list of color names. They are
	// merged over the default gradients.
	Gradients map[string][]string `toml:"gradients"`
	// Devices is the list of LED strips to drive.
	Devices []DeviceConfig `toml:"device"`
}

// AudioConfig is the configuration for the audio input.
type AudioConfig struct {
	// Backend is the catnip input backend, such as "pipewire" or
	// "portaudio".
	Backend string `toml:"backend"`
	// Device is the name of the input device. Empty means the default.
	Device     string  `toml:"device"`
	SampleRate float64 `toml:"sample_rate"`
	SampleSize int     `toml:"sample_size"`
	// Bins is the number of frequency bins in each spectrum frame.
	Bins   int     `toml:"bins"`
	Smooth float64 `toml:"smooth"`
	// MinVolume is the loudest raw bin value below which the input counts as
	// silence.
	MinVolume float64 `toml:"min_volume"`
}

// DeviceConfig is the configuration for a single LED strip.
type DeviceConfig struct {
	// Name identifies the device in logs.
	Name string `toml:"name"`
	// Pixels is the number of LEDs on the strip.
	Pixels int `toml:"pixels"`
	// Bins is the number of frequency bins the device expects. It must match
	// the audio bins and defaults to them.
	Bins int `toml:"bins"`
	// Effect is the name of the effect to show.
	Effect string `toml:"effect"`
	// IdleColor is the color the strip fades to while no music is playing.
	IdleColor led.RGBColor `toml:"idle_color"`
	// MaxBrightness caps every channel value sent to the strip.
	MaxBrightness int `toml:"max_brightness"`
	// Output is where the frames go.
	Output OutputConfig `toml:"output"`

	Scroll   ScrollEffectConfig   `toml:"scroll"`
	Single   SingleEffectConfig   `toml:"single"`
	Gradient GradientEffectConfig `toml:"gradient"`
}

// OutputKind is the kind of device a strip is attached to.
type OutputKind string

const (
	// SerialOutput is a microcontroller speaking the ledserial protocol.
	SerialOutput OutputKind = "serial"
	// UDPOutput is an ESP8266 receiving raw RGB datagrams.
	UDPOutput OutputKind = "udp"
	// WebSocketOutput serves the frames to WebSocket clients for previewing.
	WebSocketOutput OutputKind = "websocket"
)

// OutputConfig is the configuration for a device output.
type OutputConfig struct {
	Kind OutputKind `toml:"kind"`
	// Address is the "host:port" to send to (udp) or listen on (websocket).
	Address string `toml:"address"`
	// Device is the serial device path.
	Device string `toml:"device"`
	// Baud is the serial baud rate.
	Baud int `toml:"baud"`
	// AckTimeout is how long to wait for the serial controller to
	// acknowledge a packet.
	AckTimeout TOMLDuration `toml:"ack_timeout"`
	// Retry is how long to wait before reopening a failed serial port.
	Retry TOMLDuration `toml:"retry"`
}

// ScrollEffectConfig is the configuration for the Scroll effect.
type ScrollEffectConfig struct {
	Gain       float64 `toml:"gain"`
	Speed      int     `toml:"speed"`
	Decay      float64 `toml:"decay"`
	Blur       float64 `toml:"blur"`
	LowsColor  string  `toml:"lows_color"`
	MidsColor  string  `toml:"mids_color"`
	HighsColor string  `toml:"highs_color"`
	Flip       bool    `toml:"flip"`
}

// SingleEffectConfig is the configuration for the Single effect.
type SingleEffectConfig struct {
	Color string `toml:"color"`
}

// GradientEffectConfig is the configuration for the Gradient effect.
type GradientEffectConfig struct {
	Gradient string `toml:"gradient"`
}

// DefaultColors is the color table available to every configuration.
var DefaultColors = map[string]led.RGBColor{
	"Red":        led.RGB(255, 0, 0),
	"Orange":     led.RGB(255, 40, 0),
	"Yellow":     led.RGB(255, 255, 0),
	"Green":      led.RGB(0, 255, 0),
	"Blue":       led.RGB(0, 0, 255),
	"Light blue": led.RGB(1, 247, 161),
	"Purple":     led.RGB(80, 5, 252),
	"Pink":       led.RGB(255, 0, 178),
	"White":      led.RGB(255, 255, 255),
}

// DefaultGradients is the gradient table available to every configuration.
var DefaultGradients = map[string][]string{
	"Spectral":   {"Red", "Orange", "Yellow", "Green", "Light blue", "Blue", "Purple", "Pink"},
	"Dancefloor": {"Red", "Pink", "Purple", "Blue"},
	"Sunset":     {"Red", "Orange", "Yellow"},
	"Ocean":      {"Green", "Light blue", "Blue"},
	"Jungle":     {"Green", "Red", "Orange"},
	"Sunny":      {"Yellow", "Light blue", "Orange", "Blue"},
}

// setDefaults fills in every option left empty.
func (c *Config) setDefaults() {
	setDefault(&c.Rate, 60)

	setDefault(&c.Audio.SampleRate, 44100)
	setDefault(&c.Audio.SampleSize, 1024)
	setDefault(&c.Audio.Bins, 24)
	setDefault(&c.Audio.Smooth, 0.5)
	setDefault(&c.Audio.MinVolume, 1e-3)

	colors := make(map[string]led.RGBColor, len(DefaultColors)+len(c.Colors))
	for name, color := range DefaultColors {
		colors[name] = color
	}
	for name, color := range c.Colors {
		colors[name] = color
	}
	c.Colors = colors

	gradients := make(map[string][]string, len(DefaultGradients)+len(c.Gradients))
	for name, gradient := range DefaultGradients {
		gradients[name] = gradient
	}
	for name, gradient := range c.Gradients {
		gradients[name] = gradient
	}
	c.Gradients = gradients

	for i := range c.Devices {
		dev := &c.Devices[i]
		setDefault(&dev.Bins, c.Audio.Bins)
		setDefault(&dev.Effect, "Scroll")
		setDefault(&dev.MaxBrightness, 255)

		setDefault(&dev.Output.Baud, 115200)
		setDefault(&dev.Output.AckTimeout, TOMLDuration(time.Second))
		setDefault(&dev.Output.Retry, TOMLDuration(5*time.Second))

		setDefault(&dev.Scroll.Gain, 1)
		setDefault(&dev.Scroll.Speed, 5)
		setDefault(&dev.Scroll.Decay, 0.995)
		setDefault(&dev.Scroll.Blur, 0.2)
		setDefault(&dev.Scroll.LowsColor, "Red")
		setDefault(&dev.Scroll.MidsColor, "Green")
		setDefault(&dev.Scroll.HighsColor, "Blue")

		setDefault(&dev.Single.Color, "Purple")
		setDefault(&dev.Gradient.Gradient, "Spectral")
	}
}

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// Validate validates the configuration. Every device's effects are built
// once to catch invalid effect options.
func (c *Config) Validate() error {
	if c.Rate < 1 {
		return errors.Wrapf(ErrInvalidConfig, "invalid rate %d", c.Rate)
	}
	if c.Audio.SampleSize < 2 || c.Audio.SampleSize > MaxSampleSize {
		return errors.Wrapf(ErrInvalidConfig,
			"audio sample size %d not in [2, %d]", c.Audio.SampleSize, MaxSampleSize)
	}
	if c.Audio.Bins < 1 || c.Audio.Bins > c.Audio.SampleSize/2 {
		return errors.Wrapf(ErrInvalidConfig,
			"audio bin count %d not in [1, %d] for sample size %d",
			c.Audio.Bins, c.Audio.SampleSize/2, c.Audio.SampleSize)
	}
	if len(c.Devices) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no devices configured")
	}

	for name, gradient := range c.Gradients {
		for _, color := range gradient {
			if _, ok := c.Colors[color]; !ok {
				return errors.Wrapf(ErrInvalidConfig, "gradient %q: unknown color %q", name, color)
			}
		}
	}

	names := make(map[string]bool, len(c.Devices))
	for i := range c.Devices {
		dev := &c.Devices[i]
		if dev.Name == "" {
			return errors.Wrapf(ErrInvalidConfig, "device %d has no name", i)
		}
		if names[dev.Name] {
			return errors.Wrapf(ErrInvalidConfig, "duplicate device %q", dev.Name)
		}
		names[dev.Name] = true

		if err := c.validateDevice(dev); err != nil {
			return errors.Wrapf(err, "device %q", dev.Name)
		}
	}

	return nil
}

func (c *Config) validateDevice(dev *DeviceConfig) error {
	if dev.Pixels < 1 || dev.Pixels > 0xFFFF {
		return errors.Wrapf(ErrInvalidConfig, "invalid pixel count %d", dev.Pixels)
	}
	if dev.Bins != c.Audio.Bins {
		return errors.Wrapf(ErrInvalidConfig,
			"device expects %d bins but the audio input produces %d", dev.Bins, c.Audio.Bins)
	}
	if dev.MaxBrightness < 0 || dev.MaxBrightness > 255 {
		return errors.Wrapf(ErrInvalidConfig, "invalid max brightness %d", dev.MaxBrightness)
	}
	if dev.Scroll.Decay <= 0 || dev.Scroll.Decay >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "scroll decay %v not in (0, 1)", dev.Scroll.Decay)
	}
	if dev.Scroll.Blur <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "scroll blur %v must be positive", dev.Scroll.Blur)
	}

	switch dev.Output.Kind {
	case SerialOutput:
		if dev.Output.Device == "" {
			return errors.Wrap(ErrInvalidConfig, "serial output needs a device")
		}
	case UDPOutput, WebSocketOutput:
		if dev.Output.Address == "" {
			return errors.Wrapf(ErrInvalidConfig, "%s output needs an address", dev.Output.Kind)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown output kind %q", dev.Output.Kind)
	}

	effects, err := c.newEffects(dev)
	if err != nil {
		return err
	}
	if _, err := effects.Lookup(dev.Effect); err != nil {
		return invalidConfig(err)
	}

	return nil
}

// color resolves a color name.
func (c *Config) color(name string) (led.RGBColor, error) {
	color, ok := c.Colors[name]
	if !ok {
		return led.RGBColor{}, errors.Wrapf(ErrInvalidConfig, "unknown color %q", name)
	}
	return color, nil
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader and fills in the
// defaults. The configuration is not validated.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.setDefaults()
	return &config, nil
}

// invalidConfig marks err as a configuration error while keeping it
// inspectable with errors.Is.
func invalidConfig(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}
