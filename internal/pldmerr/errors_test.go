package pldmerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NewRequest("GetPDR", 5, 3, 0x51, CodeTimeout, "response timeout")
	require.True(t, errors.Is(err, CodeTimeout))
	require.False(t, errors.Is(err, CodeChecksumMismatch))
}

func TestWrapPreservesContext(t *testing.T) {
	inner := NewRequest("GetPDR", 5, 3, 0x51, CodeTransportFailure, "socket closed")
	wrapped := Wrap("requester.send", CodeTransportFailure, inner)
	require.Equal(t, uint8(5), wrapped.TID)
	require.Equal(t, uint8(3), wrapped.InstanceID)
	require.Equal(t, "requester.send", wrapped.Op)
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := NewRequest("GetPDR", 5, 3, 0x51, CodeTimeout, "response timeout")
	require.Contains(t, err.Error(), "op=GetPDR")
	require.Contains(t, err.Error(), "tid=5")
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Wrap("op", CodeTimeout, nil))
}
