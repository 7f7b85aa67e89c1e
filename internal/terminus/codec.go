package terminus

import (
	"fmt"

	"github.com/openbmc/pldm-sub002/internal/wire"
)

// parseCompletionCode extracts the single completion-code byte that
// follows the header on every Base command response.
func parseCompletionCode(data []byte) (uint8, error) {
	if len(data) < wire.HeaderSize+1 {
		return 0, fmt.Errorf("terminus: short response (%d bytes)", len(data))
	}
	return data[wire.HeaderSize], nil
}

// parseGetTIDResponse extracts the TID byte from a GetTID response.
func parseGetTIDResponse(data []byte) (uint8, error) {
	if len(data) < wire.HeaderSize+2 {
		return 0, fmt.Errorf("terminus: short GetTID response (%d bytes)", len(data))
	}
	if cc := data[wire.HeaderSize]; cc != CCSuccess {
		return 0, fmt.Errorf("terminus: GetTID failed with cc=%#x", cc)
	}
	return data[wire.HeaderSize+1], nil
}

// parseGetPLDMTypesResponse extracts the 8-byte supported-types bitmap.
func parseGetPLDMTypesResponse(data []byte) ([8]byte, error) {
	var bitmap [8]byte
	if len(data) < wire.HeaderSize+1+8 {
		return bitmap, fmt.Errorf("terminus: short GetPLDMTypes response (%d bytes)", len(data))
	}
	if cc := data[wire.HeaderSize]; cc != CCSuccess {
		return bitmap, fmt.Errorf("terminus: GetPLDMTypes failed with cc=%#x", cc)
	}
	copy(bitmap[:], data[wire.HeaderSize+1:wire.HeaderSize+9])
	return bitmap, nil
}

// parseGetPLDMCommandsResponse extracts the 32-byte supported-commands
// bitmap for a single PLDM type/version.
func parseGetPLDMCommandsResponse(data []byte) ([32]byte, error) {
	var bitmap [32]byte
	if len(data) < wire.HeaderSize+1+32 {
		return bitmap, fmt.Errorf("terminus: short GetPLDMCommands response (%d bytes)", len(data))
	}
	if cc := data[wire.HeaderSize]; cc != CCSuccess {
		return bitmap, fmt.Errorf("terminus: GetPLDMCommands failed with cc=%#x", cc)
	}
	copy(bitmap[:], data[wire.HeaderSize+1:wire.HeaderSize+33])
	return bitmap, nil
}
