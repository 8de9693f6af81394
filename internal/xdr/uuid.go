package xdr

import "github.com/google/uuid"

// FixedOpaque16 is the wire shape of a libvirt UUID: a 16-byte fixed
// opaque field. Structurally it is identical to any other fixed-length
// opaque; this type exists only so generated struct fields can carry
// UUID-flavored methods instead of a bare [16]byte.
type FixedOpaque16 [16]byte

// UUID converts to github.com/google/uuid's representation.
func (f FixedOpaque16) UUID() uuid.UUID {
	return uuid.UUID(f)
}

// FixedOpaque16FromUUID converts from github.com/google/uuid.
func FixedOpaque16FromUUID(u uuid.UUID) FixedOpaque16 {
	return FixedOpaque16(u)
}

// String renders the canonical dashed hex form.
func (f FixedOpaque16) String() string {
	return uuid.UUID(f).String()
}

// MarshalText implements encoding.TextMarshaler so a FixedOpaque16 embedded
// in a struct renders as a UUID string under encoding/json or similar,
// rather than a base64 byte blob.
func (f FixedOpaque16) MarshalText() ([]byte, error) {
	return uuid.UUID(f).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler, the inverse of
// MarshalText.
func (f *FixedOpaque16) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*f = FixedOpaque16(u)
	return nil
}

// EncodeFixedOpaque16 writes a UUID-shaped fixed opaque field.
func (e *Encoder) EncodeFixedOpaque16(v FixedOpaque16) {
	e.EncodeFixedOpaque(v[:])
}

// DecodeFixedOpaque16 reads a UUID-shaped fixed opaque field.
func (d *Decoder) DecodeFixedOpaque16() (FixedOpaque16, error) {
	b, err := d.DecodeFixedOpaque(16)
	if err != nil {
		return FixedOpaque16{}, err
	}
	var out FixedOpaque16
	copy(out[:], b)
	return out, nil
}
