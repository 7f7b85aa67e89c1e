package platform

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/openbmc/pldm-sub002/internal/multipart"
	"github.com/openbmc/pldm-sub002/internal/pldmerr"
	"github.com/openbmc/pldm-sub002/internal/terminus"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

// File-transfer command codes, advertised by devices that support the PLDM
// file-transfer commands alongside Platform type support. Their payload
// layout is out of scope to decode (command payload wire formats are a
// non-goal here), so GetFileTable/ReadFile hand back opaque bytes instead
// of a typed file-table record.
const (
	CmdGetFileTable uint8 = 0x0e
	CmdReadFile     uint8 = 0x0f
)

// SupportsFileTransfer reports whether term advertised CmdGetFileTable in
// its Platform command bitmap, populated by terminus discovery's
// GetPLDMCommands round trip.
func SupportsFileTransfer(term *terminus.Terminus) bool {
	bitmap, ok := term.SupportedCommands[PlatformType]
	if !ok {
		return false
	}
	return bitmap[CmdGetFileTable/8]&(1<<(CmdGetFileTable%8)) != 0
}

// GetFileTable fetches and reassembles a device's file table as opaque
// bytes, reusing the same multipart Start/Middle/End transfer-flag state
// machine GetPDR drives in paginatePDRs.
func (in *Initializer) GetFileTable(ctx context.Context, tid uint8) ([]byte, error) {
	r := multipart.NewReassembler()
	op := wire.OperationFlagFirstPart
	dataTransferHandle := uint32(0)

	for {
		req := encodeGetFileTableRequest(dataTransferHandle, op)
		resp, err := in.sender.SendAndRecv(ctx, tid, PlatformType, CmdGetFileTable, req)
		if err != nil {
			return nil, pldmerr.Wrap("platform.GetFileTable", pldmerr.CodeTransportFailure, err)
		}
		parsed, err := decodeGetFileTableResponse(resp)
		if err != nil {
			return nil, pldmerr.Wrap("platform.GetFileTable", pldmerr.CodeDecodeError, err)
		}
		complete, err := r.Accept(parsed.transferFlag, parsed.data, parsed.checksum)
		if err != nil {
			return nil, pldmerr.Wrap("platform.GetFileTable", pldmerr.CodeChecksumMismatch, err)
		}
		if complete {
			return r.Bytes(), nil
		}
		dataTransferHandle = parsed.nextDataTransferHandle
		op = wire.OperationFlagNextPart
	}
}

// ReadFile reads length bytes starting at offset from fileHandle and
// returns them as opaque bytes; the file's own internal record format is
// not decoded here.
func (in *Initializer) ReadFile(ctx context.Context, tid uint8, fileHandle uint32, offset, length uint32) ([]byte, error) {
	req := encodeReadFileRequest(fileHandle, offset, length)
	resp, err := in.sender.SendAndRecv(ctx, tid, PlatformType, CmdReadFile, req)
	if err != nil {
		return nil, pldmerr.Wrap("platform.ReadFile", pldmerr.CodeTransportFailure, err)
	}
	return decodeReadFileResponse(resp)
}

func encodeGetFileTableRequest(dataTransferHandle uint32, op wire.OperationFlag) []byte {
	buf := make([]byte, 4+1+1+1)
	binary.LittleEndian.PutUint32(buf[0:4], dataTransferHandle)
	buf[4] = byte(op)
	buf[5] = 0 // fileTableType, unused: a single, device-defined table
	buf[6] = 0 // padding to keep the fixed header a round size
	return buf
}

type getFileTableResponse struct {
	transferFlag wire.TransferFlag
	data         []byte
	checksum     uint32
}

func decodeGetFileTableResponse(data []byte) (getFileTableResponse, error) {
	const minLen = 1 + 1 + 4
	if len(data) < wire.HeaderSize+minLen {
		return getFileTableResponse{}, fmt.Errorf("platform: short GetFileTable response")
	}
	body := data[wire.HeaderSize:]
	if cc := body[0]; cc != ccSuccess {
		return getFileTableResponse{}, fmt.Errorf("platform: GetFileTable failed with cc=%#x", cc)
	}
	resp := getFileTableResponse{transferFlag: wire.TransferFlag(body[1])}
	respCount := int(binary.LittleEndian.Uint32(body[2:6]))
	dataStart := 6
	if len(body) < dataStart+respCount {
		return getFileTableResponse{}, fmt.Errorf("platform: GetFileTable response truncated data (want %d, have %d)", respCount, len(body)-dataStart)
	}
	resp.data = append([]byte{}, body[dataStart:dataStart+respCount]...)
	trailer := body[dataStart+respCount:]
	if resp.transferFlag.IsTerminal() && !resp.transferFlag.IsSinglePart() && len(trailer) >= 4 {
		resp.checksum = binary.LittleEndian.Uint32(trailer[:4])
	}
	return resp, nil
}

func encodeReadFileRequest(fileHandle, offset, length uint32) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], fileHandle)
	binary.LittleEndian.PutUint32(buf[4:8], offset)
	binary.LittleEndian.PutUint32(buf[8:12], length)
	return buf
}

func decodeReadFileResponse(data []byte) ([]byte, error) {
	const minLen = 1 + 4
	if len(data) < wire.HeaderSize+minLen {
		return nil, fmt.Errorf("platform: short ReadFile response")
	}
	body := data[wire.HeaderSize:]
	if cc := body[0]; cc != ccSuccess {
		return nil, fmt.Errorf("platform: ReadFile failed with cc=%#x", cc)
	}
	actualLength := int(binary.LittleEndian.Uint32(body[1:5]))
	if len(body) < 5+actualLength {
		return nil, fmt.Errorf("platform: ReadFile response truncated data (want %d, have %d)", actualLength, len(body)-5)
	}
	return append([]byte{}, body[5:5+actualLength]...), nil
}
