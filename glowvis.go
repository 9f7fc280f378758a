// Package glowvis drives LED strips from live audio. Spectrum frames from
// catnip are fanned out to every configured device, rendered by the device's
// visualizer and handed to its sink.
package glowvis

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/glowvis/internal/led"
	"libdb.so/glowvis/internal/ledvis"
	"libdb.so/glowvis/internal/sink"
)

// TestPatternInterval is how often the test pattern moves by one pixel.
const TestPatternInterval = 200 * time.Millisecond

// Daemon is the main glowvis daemon.
type Daemon struct {
	cfg     *Config
	logger  *slog.Logger
	devices []*device
}

// device is the pipeline of a single LED strip. Only its own goroutine
// touches the visualizer.
type device struct {
	cfg    *DeviceConfig
	logger *slog.Logger
	vis    *ledvis.Visualizer
	frames chan ledvis.Frame
}

// NewDaemon creates a new glowvis daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		devices: make([]*device, len(cfg.Devices)),
	}

	for i := range cfg.Devices {
		dev := &cfg.Devices[i]
		logger := logger.With("device", dev.Name)

		effects, err := cfg.newEffects(dev)
		if err != nil {
			return nil, errors.Wrapf(err, "device %q", dev.Name)
		}

		vis, err := ledvis.NewVisualizer(ledvis.VisualizerConfig{
			Pixels:    effectPixels(dev.Pixels),
			Bins:      dev.Bins,
			Effect:    dev.Effect,
			IdleColor: dev.IdleColor,
		}, effects, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "device %q", dev.Name)
		}

		d.devices[i] = &device{
			cfg:    dev,
			logger: logger,
			vis:    vis,
			frames: make(chan ledvis.Frame, 1),
		}
	}

	return d, nil
}

// effectPixels returns the frame width the effects render for a strip. The
// symmetric effects cover an even number of pixels.
func effectPixels(pixels int) int {
	return pixels / 2 * 2
}

// Run starts the daemon. It blocks until the given context is canceled or
// the audio input fails.
func (d *Daemon) Run(ctx context.Context) error {
	sinks, err := d.openSinks()
	if err != nil {
		return err
	}

	errg, ctx := errgroup.WithContext(ctx)

	for i, dev := range d.devices {
		dev := dev
		s := sinks[i]

		errg.Go(func() error { return s.Run(ctx) })
		errg.Go(func() error { return dev.run(ctx, s) })
	}

	errg.Go(func() error {
		return d.runAudio(ctx, d.dispatch)
	})

	return errg.Wait()
}

// RunTest shows a red, green and blue pixel scrolling along every strip
// instead of visualizing audio. It blocks until the context is canceled.
func (d *Daemon) RunTest(ctx context.Context) error {
	sinks, err := d.openSinks()
	if err != nil {
		return err
	}

	errg, ctx := errgroup.WithContext(ctx)

	for i, dev := range d.devices {
		dev := dev
		s := sinks[i]

		errg.Go(func() error { return s.Run(ctx) })
		errg.Go(func() error { return dev.runTest(ctx, s) })
	}

	return errg.Wait()
}

func (d *Daemon) openSinks() ([]*sink.Async, error) {
	writers := make([]sink.Writer, 0, len(d.devices))
	for _, dev := range d.devices {
		w, err := openWriter(dev.cfg, dev.logger)
		if err != nil {
			for _, w := range writers {
				w.Close()
			}
			return nil, errors.Wrapf(err, "device %q", dev.cfg.Name)
		}
		writers = append(writers, w)
	}

	sinks := make([]*sink.Async, len(writers))
	for i, w := range writers {
		sinks[i] = sink.NewAsync(w, d.devices[i].logger)
	}
	return sinks, nil
}

func openWriter(cfg *DeviceConfig, logger *slog.Logger) (sink.Writer, error) {
	switch cfg.Output.Kind {
	case SerialOutput:
		return sink.NewSerial(sink.SerialConfig{
			Device:     cfg.Output.Device,
			Baud:       cfg.Output.Baud,
			NumLEDs:    cfg.Pixels,
			AckTimeout: time.Duration(cfg.Output.AckTimeout),
			Retry:      time.Duration(cfg.Output.Retry),
		}, logger), nil
	case UDPOutput:
		return sink.DialUDP(cfg.Output.Address, logger)
	case WebSocketOutput:
		return sink.ListenWebSocket(cfg.Output.Address, logger)
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown output kind %q", cfg.Output.Kind)
	}
}

// dispatch hands a copy of the frame to every device. A device that is still
// rendering the previous frame gets it replaced.
func (d *Daemon) dispatch(frame ledvis.Frame) {
	for _, dev := range d.devices {
		dev.push(frame.Clone())
	}
}

func (dev *device) push(frame ledvis.Frame) {
	for {
		select {
		case dev.frames <- frame:
			return
		default:
		}

		select {
		case <-dev.frames:
		default:
		}
	}
}

func (dev *device) run(ctx context.Context, s sink.Sink) error {
	maxBrightness := uint8(dev.cfg.MaxBrightness)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-dev.frames:
			pixels := dev.vis.Render(frame.Bins, frame.AudioPresent, frame.Time)
			s.Send(pixels.ToLEDs(dev.cfg.Pixels, maxBrightness))
		}
	}
}

func (dev *device) runTest(ctx context.Context, s sink.Sink) error {
	leds := testPattern(dev.cfg.Pixels, uint8(dev.cfg.MaxBrightness))

	ticker := time.NewTicker(TestPatternInterval)
	defer ticker.Stop()

	for {
		frame := make(led.LEDs, len(leds))
		copy(frame, leds)
		s.Send(frame)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			leds.Rotate(1)
		}
	}
}

// testPattern returns a strip with a red, a green and a blue pixel at its
// start.
func testPattern(n int, brightness uint8) led.LEDs {
	leds := led.NewLEDs(n)
	colors := []led.RGBColor{
		led.RGB(brightness, 0, 0),
		led.RGB(0, brightness, 0),
		led.RGB(0, 0, brightness),
	}
	for i, c := range colors {
		if i < n {
			leds.Set(i, c)
		}
	}
	return leds
}
