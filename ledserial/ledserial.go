// Package ledserial implements the LED serial protocol.
//
// Every packet starts with a one-byte type, followed by the packet body and a
// little-endian CRC-32 (IEEE) of the type and body.
package ledserial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// Endianness defines the endianness of the protocol.
var Endianness = binary.LittleEndian

// IncomingPacketType is a type of packet sent to the controller.
type IncomingPacketType uint8

const (
	TypeInitializePacket IncomingPacketType = iota
	TypeClearPacket
	TypeSetPacket
)

// String returns a string representation of the packet type.
func (t IncomingPacketType) String() string {
	switch t {
	case TypeInitializePacket:
		return "initialize"
	case TypeClearPacket:
		return "clear"
	case TypeSetPacket:
		return "set"
	default:
		return fmt.Sprintf("IncomingPacketType(%d)", t)
	}
}

// IncomingPacket is a packet sent to the controller.
type IncomingPacket interface {
	// Type returns the type of packet.
	Type() IncomingPacketType
}

// InitializePacket is a packet that initializes the LED strip.
type InitializePacket struct {
	NumLEDs uint16
}

// ClearPacket is a packet that clears the LED strip.
type ClearPacket struct{}

// SetPacket is a packet that sets the LED strip to the given colors.
type SetPacket struct {
	Pix []uint8
}

func (p InitializePacket) Type() IncomingPacketType { return TypeInitializePacket }
func (p ClearPacket) Type() IncomingPacketType      { return TypeClearPacket }
func (p SetPacket) Type() IncomingPacketType        { return TypeSetPacket }

// OutgoingPacketType is a type of packet sent by the controller.
type OutgoingPacketType uint8

const (
	TypeErrorPacket OutgoingPacketType = iota
	TypePanicPacket
	TypeLogPacket
	TypeAckPacket
)

// String returns a string representation of the packet type.
func (t OutgoingPacketType) String() string {
	switch t {
	case TypeErrorPacket:
		return "error"
	case TypePanicPacket:
		return "panic"
	case TypeLogPacket:
		return "log"
	case TypeAckPacket:
		return "ack"
	default:
		return fmt.Sprintf("OutgoingPacketType(%d)", t)
	}
}

// OutgoingPacket is a packet sent by the controller.
type OutgoingPacket interface {
	// Type returns the type of packet.
	Type() OutgoingPacketType
}

// ErrorPacket is a packet that indicates an error occurred.
type ErrorPacket struct {
	Message string
}

// PanicPacket is a packet that indicates the program cannot recover.
type PanicPacket struct {
	Message string
}

// LogPacket is a packet that contains a log message.
type LogPacket struct {
	Message string
}

// AckPacket acknowledges that an incoming packet was handled.
type AckPacket struct {
	IncomingPacketType IncomingPacketType
}

func (p ErrorPacket) Type() OutgoingPacketType { return TypeErrorPacket }
func (p PanicPacket) Type() OutgoingPacketType { return TypePanicPacket }
func (p LogPacket) Type() OutgoingPacketType   { return TypeLogPacket }
func (p AckPacket) Type() OutgoingPacketType   { return TypeAckPacket }

// ReadContext is the state of the LED strip. Data in this structure are
// required to read incoming packets.
type ReadContext struct {
	// NumLEDs is the number of LEDs in the strip.
	NumLEDs uint16
}

// ErrChecksumMismatch is returned when a packet fails its checksum.
var ErrChecksumMismatch = errors.New("packet checksum mismatch")

// ReadIncomingPacket reads an incoming packet from the given reader.
func ReadIncomingPacket(r io.Reader, context ReadContext) (IncomingPacket, error) {
	pr := newPacketReader(r)

	ptype, err := pr.readType()
	if err != nil {
		return nil, fmt.Errorf("failed to read incoming packet type: %w", err)
	}

	var packet IncomingPacket
	switch ptype := IncomingPacketType(ptype); ptype {
	case TypeInitializePacket:
		var p InitializePacket
		if err := binary.Read(pr, Endianness, &p); err != nil {
			return nil, fmt.Errorf("failed to read number of LEDs: %w", err)
		}
		packet = p

	case TypeClearPacket:
		packet = ClearPacket{}

	case TypeSetPacket:
		p := SetPacket{Pix: make([]uint8, 3*int(context.NumLEDs))}
		if _, err := io.ReadFull(pr, p.Pix); err != nil {
			return nil, fmt.Errorf("failed to read pixel data: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := pr.verify(); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteIncomingPacket writes an incoming packet to the given writer.
func WriteIncomingPacket(w io.Writer, p IncomingPacket) error {
	pw := newPacketWriter(w)

	switch p := p.(type) {
	case InitializePacket:
		pw.write(TypeInitializePacket, p)
	case ClearPacket:
		pw.write(TypeClearPacket)
	case SetPacket:
		pw.write(TypeSetPacket, p.Pix)
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return pw.finish()
}

// ReadOutgoingPacket reads an outgoing packet from the given reader.
func ReadOutgoingPacket(r io.Reader, context ReadContext) (OutgoingPacket, error) {
	pr := newPacketReader(r)

	ptype, err := pr.readType()
	if err != nil {
		return nil, fmt.Errorf("failed to read outgoing packet type: %w", err)
	}

	var packet OutgoingPacket
	switch ptype := OutgoingPacketType(ptype); ptype {
	case TypeErrorPacket:
		msg, err := pr.readString()
		if err != nil {
			return nil, fmt.Errorf("failed to read error message: %w", err)
		}
		packet = ErrorPacket{Message: msg}

	case TypePanicPacket:
		msg, err := pr.readString()
		if err != nil {
			return nil, fmt.Errorf("failed to read panic message: %w", err)
		}
		packet = PanicPacket{Message: msg}

	case TypeLogPacket:
		msg, err := pr.readString()
		if err != nil {
			return nil, fmt.Errorf("failed to read log message: %w", err)
		}
		packet = LogPacket{Message: msg}

	case TypeAckPacket:
		var p AckPacket
		if err := binary.Read(pr, Endianness, &p.IncomingPacketType); err != nil {
			return nil, fmt.Errorf("failed to read acked packet type: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := pr.verify(); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteOutgoingPacket writes an outgoing packet to the given writer.
func WriteOutgoingPacket(w io.Writer, p OutgoingPacket) error {
	pw := newPacketWriter(w)

	switch p := p.(type) {
	case ErrorPacket:
		pw.write(TypeErrorPacket, uint16(len(p.Message)), []byte(p.Message))
	case PanicPacket:
		pw.write(TypePanicPacket, uint16(len(p.Message)), []byte(p.Message))
	case LogPacket:
		pw.write(TypeLogPacket, uint16(len(p.Message)), []byte(p.Message))
	case AckPacket:
		pw.write(TypeAckPacket, p.IncomingPacketType)
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return pw.finish()
}

// packetReader hashes everything read through it so the trailing checksum
// can be verified.
type packetReader struct {
	r    io.Reader
	hash hash.Hash32
}

func newPacketReader(r io.Reader) *packetReader {
	return &packetReader{r: r, hash: crc32.NewIEEE()}
}

func (pr *packetReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.hash.Write(b[:n])
	return n, err
}

func (pr *packetReader) readType() (uint8, error) {
	var ptype [1]byte
	if _, err := io.ReadFull(pr, ptype[:]); err != nil {
		return 0, err
	}
	return ptype[0], nil
}

func (pr *packetReader) readString() (string, error) {
	var length uint16
	if err := binary.Read(pr, Endianness, &length); err != nil {
		return "", fmt.Errorf("failed to read length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(pr, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// verify reads the checksum from the underlying reader, bypassing the hash.
func (pr *packetReader) verify() error {
	var checksum uint32
	if err := binary.Read(pr.r, Endianness, &checksum); err != nil {
		return fmt.Errorf("failed to read packet checksum: %w", err)
	}
	if checksum != pr.hash.Sum32() {
		return ErrChecksumMismatch
	}
	return nil
}

// packetWriter writes packet fields while hashing them. The first error is
// kept and returned by finish.
type packetWriter struct {
	w    io.Writer
	hash hash.Hash32
	err  error
}

func newPacketWriter(w io.Writer) *packetWriter {
	hash := crc32.NewIEEE()
	return &packetWriter{w: io.MultiWriter(w, hash), hash: hash}
}

func (pw *packetWriter) write(fields ...any) {
	for _, field := range fields {
		if pw.err != nil {
			return
		}
		if b, ok := field.([]byte); ok {
			_, pw.err = pw.w.Write(b)
		} else {
			pw.err = binary.Write(pw.w, Endianness, field)
		}
		if pw.err != nil {
			pw.err = fmt.Errorf("failed to write packet: %w", pw.err)
		}
	}
}

func (pw *packetWriter) finish() error {
	if pw.err != nil {
		return pw.err
	}
	// Sum before the checksum itself goes through the hash.
	if err := binary.Write(pw.w, Endianness, pw.hash.Sum32()); err != nil {
		return fmt.Errorf("failed to write packet checksum: %w", err)
	}
	return nil
}
