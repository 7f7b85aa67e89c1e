package multipart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/wire"
)

func TestReassemblerThreePartTransfer(t *testing.T) {
	full := []byte("the quick brown fox jumps over the lazy dog")
	part1, part2, part3 := full[:10], full[10:30], full[30:]

	r := NewReassembler()
	complete, err := r.Accept(wire.TransferFlagStart, part1, 0)
	require.NoError(t, err)
	require.False(t, complete)

	complete, err = r.Accept(wire.TransferFlagMiddle, part2, 0)
	require.NoError(t, err)
	require.False(t, complete)

	complete, err = r.Accept(wire.TransferFlagEnd, part3, CRC32(full))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, full, r.Bytes())
}

func TestReassemblerSinglePartSkipsChecksum(t *testing.T) {
	full := []byte("single chunk")
	r := NewReassembler()
	complete, err := r.Accept(wire.TransferFlagStartAndEnd, full, 0xdeadbeef)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, full, r.Bytes())
}

func TestReassemblerRejectsChecksumMismatch(t *testing.T) {
	full := []byte("abcdef")
	r := NewReassembler()
	_, err := r.Accept(wire.TransferFlagStart, full[:3], 0)
	require.NoError(t, err)
	_, err = r.Accept(wire.TransferFlagEnd, full[3:], 0xffffffff)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReassemblerRejectsOutOfSequence(t *testing.T) {
	r := NewReassembler()
	_, err := r.Accept(wire.TransferFlagMiddle, []byte("x"), 0)
	require.ErrorIs(t, err, ErrOutOfSequence)

	r2 := NewReassembler()
	_, err = r2.Accept(wire.TransferFlagStart, []byte("x"), 0)
	require.NoError(t, err)
	_, err = r2.Accept(wire.TransferFlagStart, []byte("y"), 0)
	require.ErrorIs(t, err, ErrOutOfSequence)
}

func TestChunkerRoundTripsThroughReassembler(t *testing.T) {
	full := make([]byte, 37)
	for i := range full {
		full[i] = byte(i)
	}
	c := NewChunker(full, 10)
	r := NewReassembler()
	for {
		flag, chunk, ok := c.Next()
		if !ok {
			break
		}
		crc := uint32(0)
		if flag.IsTerminal() && !flag.IsSinglePart() {
			// End chunk: caller supplies CRC over the full reassembled
			// payload, known up front because Chunker consumed it whole.
			crc = CRC32(full)
		}
		complete, err := r.Accept(flag, chunk, crc)
		require.NoError(t, err)
		if complete {
			break
		}
	}
	require.Equal(t, full, r.Bytes())
}

func TestChunkerSinglePartWhenPayloadFitsOneChunk(t *testing.T) {
	full := []byte("fits in one chunk")
	c := NewChunker(full, 4096)
	flag, chunk, ok := c.Next()
	require.True(t, ok)
	require.Equal(t, wire.TransferFlagStartAndEnd, flag)
	require.Equal(t, full, chunk)

	_, _, ok = c.Next()
	require.False(t, ok)
}

func TestChunkerEmptyPayloadYieldsSingleEmptyStartAndEnd(t *testing.T) {
	c := NewChunker(nil, 10)
	flag, chunk, ok := c.Next()
	require.True(t, ok)
	require.Equal(t, wire.TransferFlagStartAndEnd, flag)
	require.Empty(t, chunk)

	_, _, ok = c.Next()
	require.False(t, ok)
}
