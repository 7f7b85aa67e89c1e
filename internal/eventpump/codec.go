package eventpump

import (
	"encoding/binary"
	"fmt"

	"github.com/openbmc/pldm-sub002/internal/wire"
)

// encodeRequest builds a PollForPlatformEventMessage request body. Only
// the fields the multipart state machine depends on are modeled
// explicitly, the rest of the command's wire format is left opaque:
// format version is fixed, operation flag selects first/next/ack-only,
// dataTransferHandle/eventIdToAck drive pagination and acknowledgement.
func encodeRequest(op wire.OperationFlag, dataTransferHandle uint32, eventIDToAck uint32) []byte {
	buf := make([]byte, 1+1+4+4)
	buf[0] = 0x01 // format version
	buf[1] = byte(op)
	binary.LittleEndian.PutUint32(buf[2:6], dataTransferHandle)
	binary.LittleEndian.PutUint32(buf[6:10], eventIDToAck)
	return buf
}

// pollResponse is the subset of a PollForPlatformEventMessage response
// the pump's state machine acts on.
type pollResponse struct {
	completionCode     uint8
	transferFlag       wire.TransferFlag
	eventClass         uint8
	nextTransferHandle uint32
	checksum           uint32
	payload            []byte
}

const minPollResponseLen = 1 + 1 + 1 + 4 + 4

// decodeResponse parses a PollForPlatformEventMessage response: completion
// code, transfer flag, event class, next transfer handle, trailing
// checksum, and whatever payload bytes sit between event class and
// checksum.
func decodeResponse(data []byte) (pollResponse, error) {
	if len(data) < wire.HeaderSize+minPollResponseLen {
		return pollResponse{}, fmt.Errorf("eventpump: short poll response (%d bytes)", len(data))
	}
	body := data[wire.HeaderSize:]
	resp := pollResponse{
		completionCode: body[0],
		transferFlag:   wire.TransferFlag(body[1]),
		eventClass:     body[2],
	}
	if resp.transferFlag == wire.TransferFlagAckCompletion {
		return resp, nil
	}
	if len(body) < 3+4+4 {
		return pollResponse{}, fmt.Errorf("eventpump: short poll response body (%d bytes)", len(body))
	}
	resp.nextTransferHandle = binary.LittleEndian.Uint32(body[3:7])
	payload := body[7 : len(body)-4]
	resp.payload = append([]byte{}, payload...)
	resp.checksum = binary.LittleEndian.Uint32(body[len(body)-4:])
	return resp, nil
}
