// Package wire implements the libvirt RPC packet framer: a 4-byte
// length-prefixed 24-byte header followed by a variable payload. It is a
// direct generalization of the header encode/decode embedded in
// go-libvirt's rpc.go (sendPacket/extractHeader), pulled out into its own
// package so the connection core doesn't hand-roll big-endian field
// offsets inline.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jimyag/govirt/internal/constants"
)

// Type is the packet's call/reply/event/stream discriminant (header
// offset 12).
type Type uint32

const (
	Call Type = iota
	Reply
	Message
	Stream
)

func (t Type) valid() bool {
	return t <= Stream
}

// Status is the packet's outcome discriminant (header offset 20).
type Status uint32

const (
	StatusOK Status = iota
	StatusError
	StatusContinue
)

func (s Status) valid() bool {
	return s <= StatusContinue
}

// Header is the fixed 24-byte packet header, all fields big-endian.
type Header struct {
	Program   uint32
	Version   uint32
	Procedure uint32
	Type      Type
	Serial    uint32
	Status    Status
}

// ProtocolMismatchError is returned when a decoded header's program or
// version does not match this module's remote protocol constants.
type ProtocolMismatchError struct {
	Program, Version uint32
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("wire: protocol mismatch: program=0x%x version=%d", e.Program, e.Version)
}

// InvalidMsgTypeError is returned when a header's type field is not one
// of Call/Reply/Message/Stream.
type InvalidMsgTypeError struct{ Type uint32 }

func (e *InvalidMsgTypeError) Error() string {
	return fmt.Sprintf("wire: invalid message type %d", e.Type)
}

// InvalidStatusError is returned when a header's status field is not one
// of StatusOK/StatusError/StatusContinue.
type InvalidStatusError struct{ Status uint32 }

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("wire: invalid status %d", e.Status)
}

// OversizedLengthError is returned when a decoded length prefix exceeds
// the defensive cap.
type OversizedLengthError struct{ Length uint32 }

func (e *OversizedLengthError) Error() string {
	return fmt.Sprintf("wire: frame length %d exceeds cap %d", e.Length, constants.MaxPacketLength)
}

// ShortFrameError is returned when a decoded length prefix is too small
// to even cover the fixed header, so the stream is desynchronized the
// same way an OversizedLengthError leaves it.
type ShortFrameError struct{ Length uint32 }

func (e *ShortFrameError) Error() string {
	return fmt.Sprintf("wire: frame length %d shorter than header", e.Length)
}

// Encode writes the length prefix, header, and payload to w. The length
// prefix counts itself: it is computed as 4 + 24 + len(payload); callers
// that only submit calls pass Type: Call, Status: StatusOK.
func Encode(w io.Writer, h Header, payload []byte) error {
	size := constants.PacketLengthSize + constants.HeaderSize + len(payload)
	buf := make([]byte, constants.PacketLengthSize+constants.HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	binary.BigEndian.PutUint32(buf[4:8], h.Program)
	binary.BigEndian.PutUint32(buf[8:12], h.Version)
	binary.BigEndian.PutUint32(buf[12:16], h.Procedure)
	binary.BigEndian.PutUint32(buf[16:20], uint32(h.Type))
	binary.BigEndian.PutUint32(buf[20:24], h.Serial)
	binary.BigEndian.PutUint32(buf[24:28], uint32(h.Status))

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads one frame from r: the length prefix, the 24-byte header,
// and the remaining payload. It validates program, version, type, and
// status, and rejects a length prefix over the defensive cap.
func Decode(r io.Reader) (Header, []byte, error) {
	lenBuf := make([]byte, constants.PacketLengthSize)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return Header{}, nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > constants.MaxPacketLength {
		return Header{}, nil, &OversizedLengthError{Length: length}
	}
	if length < constants.PacketLengthSize+constants.HeaderSize {
		return Header{}, nil, &ShortFrameError{Length: length}
	}

	rest := make([]byte, length-constants.PacketLengthSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Header{}, nil, err
	}

	h := Header{
		Program:   binary.BigEndian.Uint32(rest[0:4]),
		Version:   binary.BigEndian.Uint32(rest[4:8]),
		Procedure: binary.BigEndian.Uint32(rest[8:12]),
		Type:      Type(binary.BigEndian.Uint32(rest[12:16])),
		Serial:    binary.BigEndian.Uint32(rest[16:20]),
		Status:    Status(binary.BigEndian.Uint32(rest[20:24])),
	}

	if h.Program != constants.ProgramRemote || h.Version != constants.ProtocolVersion {
		return Header{}, nil, &ProtocolMismatchError{Program: h.Program, Version: h.Version}
	}
	if !h.Type.valid() {
		return Header{}, nil, &InvalidMsgTypeError{Type: uint32(h.Type)}
	}
	if !h.Status.valid() {
		return Header{}, nil, &InvalidStatusError{Status: uint32(h.Status)}
	}

	payload := rest[24:]
	return h, payload, nil
}
