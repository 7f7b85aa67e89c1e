package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{RequestBit: true, InstanceID: 0, Type: 0, Command: 4}
	buf, err := h.Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{0x80, 0x00, 0x04}, buf)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestHeaderEncodeRejectsOversizedFields(t *testing.T) {
	_, err := Header{InstanceID: 32}.Encode()
	require.Error(t, err)

	_, err = Header{Type: 64}.Encode()
	require.Error(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{0x80, 0x00})
	require.Error(t, err)
}

func TestHeaderMatches(t *testing.T) {
	req := Header{RequestBit: true, InstanceID: 5, Type: 2, Command: 0x51}
	resp := Header{RequestBit: false, InstanceID: 5, Type: 2, Command: 0x51}
	require.True(t, req.Matches(resp))

	staleEcho := Header{RequestBit: false, InstanceID: 6, Type: 2, Command: 0x51}
	require.False(t, req.Matches(staleEcho))

	stillRequest := Header{RequestBit: true, InstanceID: 5, Type: 2, Command: 0x51}
	require.False(t, req.Matches(stillRequest))
}

func TestGetPLDMTypesHappyPath(t *testing.T) {
	reqBuf := []byte{0x80, 0x00, 0x04}
	req, err := Decode(reqBuf)
	require.NoError(t, err)
	require.True(t, req.RequestBit)
	require.Equal(t, uint8(0), req.Type)
	require.Equal(t, uint8(4), req.Command)

	respBuf := []byte{0x00, 0x00, 0x04}
	resp, err := Decode(respBuf)
	require.NoError(t, err)
	require.True(t, req.Matches(resp))
}
