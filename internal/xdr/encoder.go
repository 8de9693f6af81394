// Package xdr implements the subset of RFC 4506 External Data
// Representation that libvirt's wire protocol uses: big-endian, 4-byte
// aligned primitives, discriminated unions, optional pointers, and fixed
// or bounded-variable opaque/string/array data. It is written from scratch
// against the RFC rather than wrapping an existing XDR library, since the
// codec is itself one of the three subsystems this module exists to build.
package xdr

import "math"

// Encoder accumulates an XDR-encoded byte stream. The zero value is ready
// to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with a small initial buffer.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

// Bytes returns the accumulated, already 4-byte-aligned output.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len reports how many bytes have been encoded so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) put32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) put64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// pad appends zero bytes until the buffer length is a multiple of 4.
func (e *Encoder) pad() {
	if rem := len(e.buf) % 4; rem != 0 {
		for i := rem; i < 4; i++ {
			e.buf = append(e.buf, 0)
		}
	}
}

// EncodeInt32 writes a signed 32-bit integer.
func (e *Encoder) EncodeInt32(v int32) { e.put32(uint32(v)) }

// EncodeUint32 writes an unsigned 32-bit integer.
func (e *Encoder) EncodeUint32(v uint32) { e.put32(v) }

// EncodeInt64 writes a signed 64-bit "hyper".
func (e *Encoder) EncodeInt64(v int64) { e.put64(uint64(v)) }

// EncodeUint64 writes an unsigned 64-bit "hyper".
func (e *Encoder) EncodeUint64(v uint64) { e.put64(v) }

// EncodeBool writes a bool as a 4-byte word: 0 or 1.
func (e *Encoder) EncodeBool(v bool) {
	if v {
		e.put32(1)
	} else {
		e.put32(0)
	}
}

// EncodeFloat32 writes an IEEE 754 single-precision float, big-endian.
func (e *Encoder) EncodeFloat32(v float32) {
	e.put32(math.Float32bits(v))
}

// EncodeFloat64 writes an IEEE 754 double-precision float, big-endian.
func (e *Encoder) EncodeFloat64(v float64) {
	e.put64(math.Float64bits(v))
}

// EncodeFixedOpaque writes exactly len(b) bytes with no length prefix,
// then pads to the next 4-byte boundary. The caller is responsible for
// supplying exactly N bytes for a `opaque[N]` field.
func (e *Encoder) EncodeFixedOpaque(b []byte) {
	e.buf = append(e.buf, b...)
	e.pad()
}

// EncodeVarOpaque writes a 4-byte length, the bytes, and padding. If bound
// is non-zero and len(b) exceeds it, it returns BoundExceeded and writes
// nothing.
func (e *Encoder) EncodeVarOpaque(b []byte, bound uint32) error {
	if bound != 0 && uint32(len(b)) > bound {
		return newErr(BoundExceeded, "opaque<%d>: got %d bytes", bound, len(b))
	}
	e.put32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	e.pad()
	return nil
}

// EncodeString writes a string the same way as EncodeVarOpaque: length,
// raw bytes (no charset validation), padding.
func (e *Encoder) EncodeString(s string, bound uint32) error {
	if bound != 0 && uint32(len(s)) > bound {
		return newErr(BoundExceeded, "string<%d>: got %d bytes", bound, len(s))
	}
	e.put32(uint32(len(s)))
	e.buf = append(e.buf, s...)
	e.pad()
	return nil
}

// EncodeOptional writes the presence discriminant and, if present, calls
// encodeValue to write the payload.
func (e *Encoder) EncodeOptional(present bool, encodeValue func() error) error {
	if present {
		e.put32(1)
		if encodeValue != nil {
			return encodeValue()
		}
		return nil
	}
	e.put32(0)
	return nil
}

// EncodeArrayLen writes the element count that precedes a variable-length
// array (`T<N>`). The caller encodes each element itself immediately
// afterward, in order, so element-internal padding stays correct.
func (e *Encoder) EncodeArrayLen(n int, bound uint32) error {
	if bound != 0 && uint32(n) > bound {
		return newErr(BoundExceeded, "array<%d>: got %d elements", bound, n)
	}
	e.put32(uint32(n))
	return nil
}
