package sink

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"libdb.so/glowvis/internal/led"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingWriter blocks every write until release is closed.
type blockingWriter struct {
	release chan struct{}
	frames  chan led.LEDs
}

func (w *blockingWriter) WriteFrame(ctx context.Context, leds led.LEDs) error {
	select {
	case <-w.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.frames <- leds
	return nil
}

func (w *blockingWriter) Close() error { return nil }

func TestAsyncSendNeverBlocks(t *testing.T) {
	w := &blockingWriter{
		release: make(chan struct{}),
		frames:  make(chan led.LEDs, 16),
	}
	a := NewAsync(w, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	sent := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			leds := led.NewLEDs(1)
			leds[0] = led.RGB(uint8(i), 0, 0)
			a.Send(leds)
		}
		close(sent)
	}()

	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked on a stuck writer")
	}

	close(w.release)

	// The writer may have grabbed one early frame before it got stuck, but
	// the newest frame must always make it through.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case leds := <-w.frames:
			if leds[0][0] == 99 {
				cancel()
				if err := <-done; err != context.Canceled {
					t.Fatalf("Run returned %v, want context.Canceled", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("newest frame was never written")
		}
	}
}
