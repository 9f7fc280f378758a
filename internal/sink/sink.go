// Package sink delivers rendered LED frames to devices without ever blocking
// the renderer.
package sink

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/led"
)

// Writer writes frames to a device. WriteFrame may block; it is only ever
// called from a single goroutine.
type Writer interface {
	// WriteFrame sends the LEDs to the device.
	WriteFrame(ctx context.Context, leds led.LEDs) error
	// Close releases the device.
	Close() error
}

// Sink is a fire-and-forget frame handoff.
type Sink interface {
	// Send hands the frame over to the device. It never blocks; if the device
	// is still busy with an earlier frame, that frame is replaced.
	Send(leds led.LEDs)
}

// Async runs a Writer on its own goroutine and feeds it the newest frame.
type Async struct {
	writer  Writer
	logger  *slog.Logger
	mailbox chan led.LEDs
}

var _ Sink = (*Async)(nil)

// NewAsync wraps w. Run must be called for frames to be written.
func NewAsync(w Writer, logger *slog.Logger) *Async {
	return &Async{
		writer:  w,
		logger:  logger,
		mailbox: make(chan led.LEDs, 1),
	}
}

// Send implements Sink. The LEDs must not be modified after Send is called.
func (a *Async) Send(leds led.LEDs) {
	for {
		select {
		case a.mailbox <- leds:
			return
		default:
		}

		// Drop the stale frame, unless the writer just took it.
		select {
		case <-a.mailbox:
		default:
		}
	}
}

// Run writes frames until the context is canceled. Write errors are logged
// and do not stop the loop. The writer is closed when Run returns.
func (a *Async) Run(ctx context.Context) error {
	defer func() {
		if err := a.writer.Close(); err != nil {
			a.logger.Warn("failed to close sink", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case leds := <-a.mailbox:
			err := a.writer.WriteFrame(ctx, leds)
			if err != nil && ctx.Err() == nil && !errors.Is(err, ErrNotReady) {
				a.logger.Warn(
					"failed to write frame",
					"error", err)
			}
		}
	}
}
