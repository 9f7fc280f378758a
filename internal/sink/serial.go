package sink

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"libdb.so/glowvis/internal/led"
	"libdb.so/glowvis/ledserial"
)

// ErrNotReady is returned while the serial port is waiting to be reopened.
var ErrNotReady = errors.New("serial port not ready")

// SerialConfig is the configuration for a serial LED controller.
type SerialConfig struct {
	// Device is the path to the device file, usually /dev/ttyUSB0 or
	// /dev/ttyACM0.
	Device string
	// Baud is the baud rate for the serial connection.
	Baud int
	// NumLEDs is the number of LEDs on the strip.
	NumLEDs int
	// AckTimeout is how long to wait for the controller to acknowledge a
	// packet.
	AckTimeout time.Duration
	// Retry is how long to wait before reopening the port after a failure.
	Retry time.Duration
}

// Serial drives an LED controller speaking the ledserial protocol. Every
// packet must be acknowledged by the controller before the next one is sent.
type Serial struct {
	cfg    SerialConfig
	logger *slog.Logger
	open   func() (serial.Port, error)

	conn     *serialConn
	nextOpen time.Time
}

var _ Writer = (*Serial)(nil)

// NewSerial creates a serial writer. The port is opened lazily on the first
// frame and reopened after failures.
func NewSerial(cfg SerialConfig, logger *slog.Logger) *Serial {
	return &Serial{
		cfg:    cfg,
		logger: logger,
		open: func() (serial.Port, error) {
			return serial.Open(cfg.Device, &serial.Mode{BaudRate: cfg.Baud})
		},
	}
}

func (s *Serial) WriteFrame(ctx context.Context, leds led.LEDs) error {
	if s.conn == nil {
		if time.Now().Before(s.nextOpen) {
			return ErrNotReady
		}
		if err := s.connect(ctx); err != nil {
			s.fail()
			return err
		}
	}

	if err := s.conn.send(ctx, ledserial.SetPacket{Pix: leds.AsPixels()}, s.cfg.AckTimeout); err != nil {
		s.fail()
		return err
	}

	return nil
}

func (s *Serial) connect(ctx context.Context) error {
	port, err := s.open()
	if err != nil {
		return errors.Wrap(err, "failed to open serial port")
	}

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return errors.Wrap(err, "failed to reset read timeout")
	}

	s.conn = newSerialConn(port, s.logger)

	s.logger.Debug("sending initialize packet", "num_leds", s.cfg.NumLEDs)
	initPacket := ledserial.InitializePacket{NumLEDs: uint16(s.cfg.NumLEDs)}
	if err := s.conn.send(ctx, initPacket, s.cfg.AckTimeout); err != nil {
		return errors.Wrap(err, "failed to initialize LEDs")
	}

	return nil
}

// fail drops the connection and schedules a reconnect.
func (s *Serial) fail() {
	if s.conn != nil {
		s.conn.close()
		s.conn = nil
	}
	s.nextOpen = time.Now().Add(s.cfg.Retry)
}

func (s *Serial) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.close()
	s.conn = nil
	return err
}

// serialConn is a single open port and its packet reader.
type serialConn struct {
	port   serial.Port
	logger *slog.Logger
	acks   chan ledserial.AckPacket
	failed chan error
	done   chan struct{}
}

func newSerialConn(port serial.Port, logger *slog.Logger) *serialConn {
	c := &serialConn{
		port:   port,
		logger: logger,
		acks:   make(chan ledserial.AckPacket, 1),
		failed: make(chan error, 1),
		done:   make(chan struct{}),
	}
	go c.readPackets()
	return c
}

func (c *serialConn) close() error {
	c.logger.Debug("closing serial port")
	close(c.done)
	if err := c.port.Close(); err != nil {
		return errors.Wrap(err, "failed to close serial port")
	}
	return nil
}

// send writes the packet and waits for its acknowledgement.
func (c *serialConn) send(ctx context.Context, p ledserial.IncomingPacket, timeout time.Duration) error {
	c.logger.Debug(
		"writing packet",
		"type", p.Type())

	if err := ledserial.WriteIncomingPacket(c.port, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errors.Errorf("timed out waiting for %s ack", p.Type())
		case err := <-c.failed:
			return err
		case ack := <-c.acks:
			if ack.IncomingPacketType == p.Type() {
				return nil
			}
			c.logger.Debug(
				"ignoring ack for another packet",
				"acked_for", ack.IncomingPacketType)
		}
	}
}

func (c *serialConn) readPackets() {
	for {
		p, err := ledserial.ReadOutgoingPacket(c.port, ledserial.ReadContext{})
		select {
		case <-c.done:
			return
		default:
		}
		if err != nil {
			// A short read indicates a timeout. This is expected.
			// Ignore the error and try again.
			if errors.Is(err, io.EOF) {
				continue
			}
			c.failed <- errors.Wrap(err, "failed to read packet")
			return
		}

		switch p := p.(type) {
		case ledserial.AckPacket:
			select {
			case c.acks <- p:
			default:
				c.logger.Debug("dropping unexpected ack", "acked_for", p.IncomingPacketType)
			}

		case ledserial.ErrorPacket:
			c.logger.Warn(
				"received error packet from controller",
				"message", p.Message)

		case ledserial.PanicPacket:
			c.logger.Error(
				"controller unrecoverably panicked",
				"message", p.Message)
			c.failed <- errors.New("controller panicked")
			return

		case ledserial.LogPacket:
			c.logger.Info(
				"received log packet from controller",
				"message", p.Message)
		}
	}
}
