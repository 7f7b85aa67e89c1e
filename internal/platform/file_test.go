package platform

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/terminus"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

func buildGetFileTableResponse(flag wire.TransferFlag, data []byte, checksum uint32) []byte {
	hdr := wire.Header{Type: PlatformType, Command: CmdGetFileTable}
	hdrBytes, _ := hdr.Encode()
	body := []byte{ccSuccess, byte(flag)}
	cnt := make([]byte, 4)
	binary.LittleEndian.PutUint32(cnt, uint32(len(data)))
	body = append(body, cnt...)
	body = append(body, data...)
	if flag.IsTerminal() && !flag.IsSinglePart() {
		crcBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(crcBuf, checksum)
		body = append(body, crcBuf...)
	}
	return append(hdrBytes, body...)
}

func buildReadFileResponse(data []byte) []byte {
	hdr := wire.Header{Type: PlatformType, Command: CmdReadFile}
	hdrBytes, _ := hdr.Encode()
	body := []byte{ccSuccess}
	cnt := make([]byte, 4)
	binary.LittleEndian.PutUint32(cnt, uint32(len(data)))
	body = append(body, cnt...)
	body = append(body, data...)
	return append(hdrBytes, body...)
}

func TestGetFileTableReassemblesMultiPartResponse(t *testing.T) {
	want := []byte("a file table entry larger than one chunk")

	sender := newScriptedPDRSender()
	sender.byCommand[CmdGetFileTable] = [][]byte{
		buildGetFileTableResponse(wire.TransferFlagStart, want[:10], 0),
		buildGetFileTableResponse(wire.TransferFlagEnd, want[10:], crc32Of(want)),
	}

	in := New(sender, Config{})
	got, err := in.GetFileTable(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestReadFileReturnsOpaqueBytes(t *testing.T) {
	want := []byte("file contents")

	sender := newScriptedPDRSender()
	sender.byCommand[CmdReadFile] = [][]byte{buildReadFileResponse(want)}

	in := New(sender, Config{})
	got, err := in.ReadFile(context.Background(), 9, 1, 0, uint32(len(want)))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSupportsFileTransferChecksCommandBitmap(t *testing.T) {
	term := &terminus.Terminus{SupportedCommands: make(map[uint8][32]byte)}
	require.False(t, SupportsFileTransfer(term))

	var bitmap [32]byte
	bitmap[CmdGetFileTable/8] |= 1 << (CmdGetFileTable % 8)
	term.SupportedCommands[PlatformType] = bitmap
	require.True(t, SupportsFileTransfer(term))
}
