package xdr

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"
)

// Primitive round-trip byte shapes.
func TestPrimitiveEncoding(t *testing.T) {
	e := NewEncoder()
	e.EncodeInt32(-1)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, e.Bytes())

	e = NewEncoder()
	e.EncodeBool(true)
	require.Equal(t, []byte{0, 0, 0, 1}, e.Bytes())

	e = NewEncoder()
	e.EncodeUint64(0x0102030405060708)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, e.Bytes())
}

// Scenario 2: string length prefix + padding.
func TestStringPadding(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.EncodeString("hi", 0))
	require.Equal(t, []byte{0, 0, 0, 2, 'h', 'i', 0, 0}, e.Bytes())

	e = NewEncoder()
	require.NoError(t, e.EncodeString("", 0))
	require.Equal(t, []byte{0, 0, 0, 0}, e.Bytes())
}

// Scenario 3: fixed opaque UUID has no length prefix and no padding for
// a length that is already a multiple of 4.
func TestFixedOpaqueUUID(t *testing.T) {
	var raw [16]byte
	for i := range raw {
		raw[i] = 0xAB
	}
	e := NewEncoder()
	e.EncodeFixedOpaque(raw[:])
	require.Equal(t, raw[:], e.Bytes())
}

// Scenario 4: optional discriminant and payload.
func TestOptional(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.EncodeOptional(true, func() error {
		e.EncodeInt32(42)
		return nil
	}))
	require.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 42}, e.Bytes())

	e = NewEncoder()
	require.NoError(t, e.EncodeOptional(false, nil))
	require.Equal(t, []byte{0, 0, 0, 0}, e.Bytes())
}

func TestInvalidBool(t *testing.T) {
	d := NewDecoder([]byte{0, 0, 0, 7})
	_, err := d.DecodeBool()
	require.True(t, Is(err, InvalidBool))
}

func TestInvalidOptional(t *testing.T) {
	d := NewDecoder([]byte{0, 0, 0, 2})
	_, err := d.DecodeOptional(nil)
	require.True(t, Is(err, InvalidOptional))
}

func TestBoundExceeded(t *testing.T) {
	e := NewEncoder()
	err := e.EncodeString("toolong", 3)
	require.True(t, Is(err, BoundExceeded))

	d := NewDecoder([]byte{0, 0, 0, 7, 't', 'o', 'o', 'l', 'o', 'n', 'g', 0})
	_, err = d.DecodeString(3)
	require.True(t, Is(err, BoundExceeded))
}

func TestUnexpectedEOF(t *testing.T) {
	d := NewDecoder([]byte{0, 0})
	_, err := d.DecodeUint32()
	require.True(t, Is(err, UnexpectedEOF))
}

// Alignment invariant: every encoded value's length is a multiple of 4.
func TestAlignmentInvariant(t *testing.T) {
	cases := []func(e *Encoder){
		func(e *Encoder) { e.EncodeInt32(1) },
		func(e *Encoder) { _ = e.EncodeString("x", 0) },
		func(e *Encoder) { _ = e.EncodeString("xyz", 0) },
		func(e *Encoder) { e.EncodeFixedOpaque([]byte{1, 2, 3}) },
		func(e *Encoder) { e.EncodeFixedOpaque([]byte{1, 2, 3, 4, 5}) },
		func(e *Encoder) { _ = e.EncodeVarOpaque([]byte{1, 2}, 0) },
		func(e *Encoder) { e.EncodeUint64(9) },
	}
	for _, c := range cases {
		e := NewEncoder()
		c(e)
		if len(e.Bytes())%4 != 0 {
			t.Fatalf("encoded length %d not 4-byte aligned", len(e.Bytes()))
		}
	}
}

// Round-trip property: decode(encode(v)) == v for a representative struct
// exercising every primitive and composite rule, diffed with go-test/deep
// the same way m-lab-tcp-info diffs its own binary-decode round trips.
func TestStructRoundTrip(t *testing.T) {
	type inner struct {
		A int32
		B string
	}
	type value struct {
		I   int32
		U   uint32
		H   int64
		UH  uint64
		F   float32
		D   float64
		Bl  bool
		S   string
		Opq []byte
		Fx  [4]byte
		Opt *inner
		Arr []int32
	}

	v := value{
		I: -7, U: 42, H: -1 << 40, UH: 1 << 50,
		F: 3.5, D: 2.718281828, Bl: true,
		S: "libvirt", Opq: []byte{9, 8, 7},
		Fx:  [4]byte{1, 2, 3, 4},
		Opt: &inner{A: 9, B: "nested"},
		Arr: []int32{1, 2, 3},
	}

	e := NewEncoder()
	e.EncodeInt32(v.I)
	e.EncodeUint32(v.U)
	e.EncodeInt64(v.H)
	e.EncodeUint64(v.UH)
	e.EncodeFloat32(v.F)
	e.EncodeFloat64(v.D)
	e.EncodeBool(v.Bl)
	require.NoError(t, e.EncodeString(v.S, 0))
	require.NoError(t, e.EncodeVarOpaque(v.Opq, 0))
	e.EncodeFixedOpaque(v.Fx[:])
	require.NoError(t, e.EncodeOptional(true, func() error {
		e.EncodeInt32(v.Opt.A)
		return e.EncodeString(v.Opt.B, 0)
	}))
	require.NoError(t, e.EncodeArrayLen(len(v.Arr), 0))
	for _, a := range v.Arr {
		e.EncodeInt32(a)
	}

	encodedLen := e.Len()
	d := NewDecoder(e.Bytes())

	var got value
	var err error
	got.I, err = d.DecodeInt32()
	require.NoError(t, err)
	got.U, err = d.DecodeUint32()
	require.NoError(t, err)
	got.H, err = d.DecodeInt64()
	require.NoError(t, err)
	got.UH, err = d.DecodeUint64()
	require.NoError(t, err)
	got.F, err = d.DecodeFloat32()
	require.NoError(t, err)
	got.D, err = d.DecodeFloat64()
	require.NoError(t, err)
	got.Bl, err = d.DecodeBool()
	require.NoError(t, err)
	got.S, err = d.DecodeString(0)
	require.NoError(t, err)
	got.Opq, err = d.DecodeVarOpaque(0)
	require.NoError(t, err)
	fx, err := d.DecodeFixedOpaque(4)
	require.NoError(t, err)
	copy(got.Fx[:], fx)
	present, err := d.DecodeOptional(func() error {
		got.Opt = &inner{}
		a, derr := d.DecodeInt32()
		if derr != nil {
			return derr
		}
		got.Opt.A = a
		s, derr := d.DecodeString(0)
		if derr != nil {
			return derr
		}
		got.Opt.B = s
		return nil
	})
	require.NoError(t, err)
	require.True(t, present)

	n, err := d.DecodeArrayLen(0)
	require.NoError(t, err)
	got.Arr = make([]int32, n)
	for i := range got.Arr {
		got.Arr[i], err = d.DecodeInt32()
		require.NoError(t, err)
	}

	require.Equal(t, encodedLen, d.Pos(), "consumed length must equal encoded length")
	if diff := deep.Equal(v, got); diff != nil {
		t.Fatalf("round trip mismatch: %v", diff)
	}
}

func TestFixedOpaque16UUIDConversion(t *testing.T) {
	var u FixedOpaque16
	for i := range u {
		u[i] = byte(i)
	}
	if u.String() == "" {
		t.Fatal("expected non-empty string form")
	}
	back := FixedOpaque16FromUUID(u.UUID())
	require.Equal(t, u, back)

	text, err := u.MarshalText()
	require.NoError(t, err)
	var roundTripped FixedOpaque16
	require.NoError(t, roundTripped.UnmarshalText(text))
	require.Equal(t, u, roundTripped)
}
