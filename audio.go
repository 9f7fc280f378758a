package glowvis

import (
	"context"

	"github.com/noriah/catnip"
	"github.com/noriah/catnip/dsp"
	"github.com/noriah/catnip/dsp/window"
	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/ledvis"
)

// runAudio captures audio with catnip and calls handle with every spectrum
// frame until the context is canceled. Input backends must be registered by
// the caller, usually by importing github.com/noriah/catnip/input/all.
func (d *Daemon) runAudio(ctx context.Context, handle func(ledvis.Frame)) error {
	audio := d.cfg.Audio

	output := ledvis.NewOutput(ledvis.OutputConfig{
		Bins:      audio.Bins,
		MinVolume: audio.MinVolume,
	}, handle)

	d.logger.Debug(
		"starting audio input",
		"backend", audio.Backend,
		"device", audio.Device,
		"bins", audio.Bins)

	err := catnip.Run(&catnip.Config{
		Backend:      audio.Backend,
		Device:       audio.Device,
		SampleRate:   audio.SampleRate,
		SampleSize:   audio.SampleSize,
		ChannelCount: 2,
		ProcessRate:  d.cfg.Rate,
		Combine:      true,
		Output:       output,
		Windower:     window.Lanczos(),
		Analyzer: dsp.NewAnalyzer(dsp.AnalyzerConfig{
			SampleRate: audio.SampleRate,
			SampleSize: audio.SampleSize,
			SquashLow:  true,
			BinMethod:  dsp.MaxSampleValue(),
		}),
		Smoother: dsp.NewSmoother(dsp.SmootherConfig{
			SampleSize:      audio.SampleSize,
			SampleRate:      audio.SampleRate,
			ChannelCount:    2,
			SmoothingFactor: audio.Smooth,
		}),
	}, ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "audio input failed")
	}

	return ctx.Err()
}
