package wire

import (
	"bytes"
	"testing"

	"github.com/jimyag/govirt/internal/constants"
	"github.com/stretchr/testify/require"
)

// An empty-args call to procedure 57 (connect_get_version) produces a
// frame with length=28.
func TestEncodeEmptyCallFrame(t *testing.T) {
	var buf bytes.Buffer
	h := Header{
		Program:   constants.ProgramRemote,
		Version:   constants.ProtocolVersion,
		Procedure: 57,
		Type:      Call,
		Serial:    1,
		Status:    StatusOK,
	}
	require.NoError(t, Encode(&buf, h, nil))

	got := buf.Bytes()
	require.Len(t, got, 28)
	require.Equal(t, []byte{0, 0, 0, 28}, got[0:4])
	require.Equal(t, []byte{0x20, 0x00, 0x80, 0x86}, got[4:8])
	require.Equal(t, []byte{0, 0, 0, 1}, got[8:12])
	require.Equal(t, []byte{0, 0, 0, 57}, got[12:16])
	require.Equal(t, []byte{0, 0, 0, 0}, got[16:20])
	require.Equal(t, []byte{0, 0, 0, 1}, got[20:24])
	require.Equal(t, []byte{0, 0, 0, 0}, got[24:28])
}

func TestFramingRoundTrip(t *testing.T) {
	cases := []struct {
		h       Header
		payload []byte
	}{
		{Header{Program: constants.ProgramRemote, Version: 1, Procedure: 1, Type: Call, Serial: 1, Status: StatusOK}, nil},
		{Header{Program: constants.ProgramRemote, Version: 1, Procedure: 57, Type: Reply, Serial: 1, Status: StatusOK}, []byte{0, 0, 0, 0, 0, 0x10, 0, 0}},
		{Header{Program: constants.ProgramRemote, Version: 1, Procedure: 2, Type: Message, Serial: 0, Status: StatusOK}, []byte{0, 0, 0, 5, 'e', 'v', 'e', 'n', 't', 0, 0, 0}},
		{Header{Program: constants.ProgramRemote, Version: 1, Procedure: 3, Type: Stream, Serial: 9, Status: StatusContinue}, bytes.Repeat([]byte{0xAB}, 100)},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, tc.h, tc.payload))
		require.Equal(t, 0, buf.Len()%4, "frame length must stay 4-byte aligned for libvirt's own payload alignment")

		gotH, gotPayload, err := Decode(&buf)
		require.NoError(t, err)
		require.Equal(t, tc.h, gotH)
		if len(tc.payload) == 0 {
			require.Empty(t, gotPayload)
		} else {
			require.Equal(t, tc.payload, gotPayload)
		}
	}
}

func TestDecodeProtocolMismatch(t *testing.T) {
	var buf bytes.Buffer
	h := Header{Program: 0xDEADBEEF, Version: 1, Type: Call, Status: StatusOK}
	require.NoError(t, Encode(&buf, h, nil))

	_, _, err := Decode(&buf)
	var mismatch *ProtocolMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestDecodeInvalidMsgType(t *testing.T) {
	raw := make([]byte, 28)
	raw[3] = 28
	raw[7] = 0x86
	raw[6] = 0x80
	raw[5] = 0x00
	raw[4] = 0x20
	raw[11] = 1 // version
	raw[19] = 9 // bogus type
	_, _, err := Decode(bytes.NewReader(raw))
	var bad *InvalidMsgTypeError
	require.ErrorAs(t, err, &bad)
}

func TestDecodeOversizedLength(t *testing.T) {
	raw := make([]byte, 4)
	raw[0] = 0xFF
	raw[1] = 0xFF
	raw[2] = 0xFF
	raw[3] = 0xFF
	_, _, err := Decode(bytes.NewReader(raw))
	var big *OversizedLengthError
	require.ErrorAs(t, err, &big)
}
