package sink

import (
	"context"
	"log/slog"
	"net"

	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/led"
)

// UDP sends every frame as a single datagram of interleaved r, g, b bytes, as
// expected by the ESP8266 LED firmware.
type UDP struct {
	conn   *net.UDPConn
	logger *slog.Logger
}

var _ Writer = (*UDP)(nil)

// DialUDP creates a UDP writer targeting the given "host:port" address.
func DialUDP(address string, logger *slog.Logger) (*UDP, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve UDP address %q", address)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial UDP address %q", address)
	}

	logger.Debug(
		"UDP sink connected",
		"remote", conn.RemoteAddr())

	return &UDP{conn: conn, logger: logger}, nil
}

func (u *UDP) WriteFrame(_ context.Context, leds led.LEDs) error {
	if _, err := leds.WriteTo(u.conn); err != nil {
		return errors.Wrap(err, "failed to send UDP packet")
	}
	return nil
}

func (u *UDP) Close() error {
	return u.conn.Close()
}
