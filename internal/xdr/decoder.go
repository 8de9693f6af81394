package xdr

import "math"

// Decoder reads an XDR-encoded byte stream sequentially.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder over b. b is not copied; the caller must
// not mutate it while decoding is in progress.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Remaining returns the bytes not yet consumed.
func (d *Decoder) Remaining() []byte { return d.buf[d.pos:] }

// Pos reports the current read offset.
func (d *Decoder) Pos() int { return d.pos }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return newErr(UnexpectedEOF, "need %d bytes, have %d", n, len(d.buf)-d.pos)
	}
	return nil
}

func (d *Decoder) get32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := uint32(d.buf[d.pos])<<24 | uint32(d.buf[d.pos+1])<<16 | uint32(d.buf[d.pos+2])<<8 | uint32(d.buf[d.pos+3])
	d.pos += 4
	return v, nil
}

func (d *Decoder) get64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	hi, _ := d.get32()
	lo, _ := d.get32()
	return uint64(hi)<<32 | uint64(lo), nil
}

// unpad skips the padding bytes following a variable-width item, without
// validating their contents.
func (d *Decoder) unpad() error {
	if rem := d.pos % 4; rem != 0 {
		n := 4 - rem
		if err := d.need(n); err != nil {
			return err
		}
		d.pos += n
	}
	return nil
}

// DecodeInt32 reads a signed 32-bit integer.
func (d *Decoder) DecodeInt32() (int32, error) {
	v, err := d.get32()
	return int32(v), err
}

// DecodeUint32 reads an unsigned 32-bit integer.
func (d *Decoder) DecodeUint32() (uint32, error) {
	return d.get32()
}

// DecodeInt64 reads a signed 64-bit "hyper".
func (d *Decoder) DecodeInt64() (int64, error) {
	v, err := d.get64()
	return int64(v), err
}

// DecodeUint64 reads an unsigned 64-bit "hyper".
func (d *Decoder) DecodeUint64() (uint64, error) {
	return d.get64()
}

// DecodeBool reads a bool word; any value other than 0 or 1 is InvalidBool.
func (d *Decoder) DecodeBool() (bool, error) {
	v, err := d.get32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, newErr(InvalidBool, "got word %d", v)
	}
}

// DecodeFloat32 reads an IEEE 754 single-precision float.
func (d *Decoder) DecodeFloat32() (float32, error) {
	v, err := d.get32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// DecodeFloat64 reads an IEEE 754 double-precision float.
func (d *Decoder) DecodeFloat64() (float64, error) {
	v, err := d.get64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// DecodeFixedOpaque reads exactly n bytes, then skips padding to the next
// 4-byte boundary.
func (d *Decoder) DecodeFixedOpaque(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	if err := d.unpad(); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeVarOpaque reads a length-prefixed byte blob plus padding. If bound
// is non-zero and the decoded length exceeds it, it returns BoundExceeded
// without consuming the payload.
func (d *Decoder) DecodeVarOpaque(bound uint32) ([]byte, error) {
	n, err := d.get32()
	if err != nil {
		return nil, err
	}
	if bound != 0 && n > bound {
		return nil, newErr(BoundExceeded, "opaque<%d>: length %d", bound, n)
	}
	return d.DecodeFixedOpaque(int(n))
}

// DecodeString reads a length-prefixed string plus padding. The bytes are
// returned as-is; no charset validation is performed.
func (d *Decoder) DecodeString(bound uint32) (string, error) {
	b, err := d.DecodeVarOpaque(bound)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeOptional reads the presence discriminant and, if present, calls
// decodeValue to consume the payload. Any discriminant other than 0 or 1
// is InvalidOptional.
func (d *Decoder) DecodeOptional(decodeValue func() error) (bool, error) {
	v, err := d.get32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		if decodeValue != nil {
			if err := decodeValue(); err != nil {
				return true, err
			}
		}
		return true, nil
	default:
		return false, newErr(InvalidOptional, "got discriminant %d", v)
	}
}

// DecodeArrayLen reads the element count preceding a variable-length
// array. The caller decodes each element itself immediately afterward.
func (d *Decoder) DecodeArrayLen(bound uint32) (int, error) {
	n, err := d.get32()
	if err != nil {
		return 0, err
	}
	if bound != 0 && n > bound {
		return 0, newErr(BoundExceeded, "array<%d>: length %d", bound, n)
	}
	return int(n), nil
}
