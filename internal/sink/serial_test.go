package sink

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.bug.st/serial"
	"libdb.so/glowvis/internal/led"
	"libdb.so/glowvis/ledserial"
)

// pipePort is a serial.Port backed by in-memory pipes. Methods not
// overridden here are never called by the writer.
type pipePort struct {
	serial.Port
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipePort) Read(b []byte) (int, error)         { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error)        { return p.w.Write(b) }
func (p *pipePort) SetReadTimeout(time.Duration) error { return nil }

func (p *pipePort) Close() error {
	p.r.Close()
	return p.w.Close()
}

// fakeController answers every packet it reads with an ack when ack is true.
type fakeController struct {
	r       *io.PipeReader
	w       *io.PipeWriter
	ack     bool
	packets chan ledserial.IncomingPacket
}

func (c *fakeController) run() {
	ctx := ledserial.ReadContext{}
	for {
		p, err := ledserial.ReadIncomingPacket(c.r, ctx)
		if err != nil {
			return
		}
		if initPacket, ok := p.(ledserial.InitializePacket); ok {
			ctx.NumLEDs = initPacket.NumLEDs
		}
		c.packets <- p

		if c.ack {
			if err := ledserial.WriteOutgoingPacket(c.w, ledserial.LogPacket{Message: "handled"}); err != nil {
				return
			}
			if err := ledserial.WriteOutgoingPacket(c.w, ledserial.AckPacket{IncomingPacketType: p.Type()}); err != nil {
				return
			}
		}
	}
}

func newTestSerial(t *testing.T, ack bool) (*Serial, *fakeController) {
	t.Helper()

	hostR, ctrlW := io.Pipe()
	ctrlR, hostW := io.Pipe()

	ctrl := &fakeController{
		r:       ctrlR,
		w:       ctrlW,
		ack:     ack,
		packets: make(chan ledserial.IncomingPacket, 16),
	}
	go ctrl.run()

	s := NewSerial(SerialConfig{
		NumLEDs:    2,
		AckTimeout: 200 * time.Millisecond,
		Retry:      time.Hour,
	}, discardLogger())
	s.open = func() (serial.Port, error) {
		return &pipePort{r: hostR, w: hostW}, nil
	}

	t.Cleanup(func() {
		s.Close()
		ctrlR.Close()
		ctrlW.Close()
	})

	return s, ctrl
}

func TestSerialWritesFrames(t *testing.T) {
	s, ctrl := newTestSerial(t, true)
	ctx := context.Background()

	leds := led.LEDs{led.RGB(1, 2, 3), led.RGB(4, 5, 6)}
	for i := 0; i < 2; i++ {
		if err := s.WriteFrame(ctx, leds); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}

	want := []ledserial.IncomingPacketType{
		ledserial.TypeInitializePacket,
		ledserial.TypeSetPacket,
		ledserial.TypeSetPacket,
	}
	for _, typ := range want {
		p := <-ctrl.packets
		if p.Type() != typ {
			t.Fatalf("controller got %s packet, want %s", p.Type(), typ)
		}
		if set, ok := p.(ledserial.SetPacket); ok {
			if string(set.Pix) != string([]byte{1, 2, 3, 4, 5, 6}) {
				t.Errorf("pixels = %v", set.Pix)
			}
		}
	}
}

func TestSerialAckTimeout(t *testing.T) {
	s, _ := newTestSerial(t, false)
	ctx := context.Background()

	if err := s.WriteFrame(ctx, led.NewLEDs(2)); err == nil {
		t.Fatal("WriteFrame succeeded without an ack")
	}

	// The port is closed and will not be retried for an hour.
	if err := s.WriteFrame(ctx, led.NewLEDs(2)); !errors.Is(err, ErrNotReady) {
		t.Fatalf("WriteFrame after failure = %v, want ErrNotReady", err)
	}
}
