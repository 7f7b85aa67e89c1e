package rde

import (
	"encoding/binary"
	"fmt"

	"github.com/openbmc/pldm-sub002/internal/wire"
)

// RDEType is the PLDM type code for Redfish Device Enablement.
const RDEType uint8 = 6

// RDE command codes (the command surface: "RDE: NegotiateRedfishParameters,
// NegotiateMediumParameters, GetSchemaDictionary, GetSchemaURI,
// GetResourceETag, RDEMultipartReceive, RDEMultipartSend, RDEOperationInit,
// RDEOperationComplete, RDEOperationStatus, RDEOperationEnumerate").
const (
	CmdNegotiateRedfishParameters uint8 = 0x01
	CmdNegotiateMediumParameters  uint8 = 0x02
	CmdGetSchemaDictionary        uint8 = 0x03
	CmdGetSchemaURI               uint8 = 0x04
	CmdGetResourceETag            uint8 = 0x05
	CmdRDEMultipartReceive        uint8 = 0x06
	CmdRDEMultipartSend           uint8 = 0x07
	CmdRDEOperationInit           uint8 = 0x08
	CmdRDEOperationComplete       uint8 = 0x09
	CmdRDEOperationStatus         uint8 = 0x0a
	CmdRDEOperationEnumerate      uint8 = 0x0b
)

const ccSuccess uint8 = 0x00

func completionCode(body []byte) (uint8, []byte, error) {
	if len(body) < 1 {
		return 0, nil, fmt.Errorf("rde: empty response body")
	}
	return body[0], body[1:], nil
}

func encodeNegotiateRedfishParametersRequest(mcConcurrency uint8, mcFeatureBits uint32) []byte {
	buf := make([]byte, 1+4)
	buf[0] = mcConcurrency
	binary.LittleEndian.PutUint32(buf[1:5], mcFeatureBits)
	return buf
}

type negotiateRedfishParametersResponse struct {
	deviceConcurrency  uint8
	deviceCapabilities CapabilityFlags
	deviceFeatureBits  uint32
	configSignature    uint32
	providerName       string
}

func decodeNegotiateRedfishParametersResponse(data []byte) (negotiateRedfishParametersResponse, error) {
	cc, body, err := completionCode(data)
	if err != nil {
		return negotiateRedfishParametersResponse{}, err
	}
	if cc != ccSuccess {
		return negotiateRedfishParametersResponse{}, fmt.Errorf("rde: NegotiateRedfishParameters failed with cc=%#x", cc)
	}
	const minLen = 1 + 1 + 4 + 4
	if len(body) < minLen {
		return negotiateRedfishParametersResponse{}, fmt.Errorf("rde: short NegotiateRedfishParameters response")
	}
	resp := negotiateRedfishParametersResponse{
		deviceConcurrency:  body[0],
		deviceCapabilities: CapabilityFlags(body[1]),
		deviceFeatureBits:  binary.LittleEndian.Uint32(body[2:6]),
		configSignature:    binary.LittleEndian.Uint32(body[6:10]),
	}
	if len(body) > minLen {
		resp.providerName = string(trimTrailingNUL(body[minLen:]))
	}
	return resp, nil
}

func trimTrailingNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

func encodeNegotiateMediumParametersRequest(mcMaxChunkSize uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, mcMaxChunkSize)
	return buf
}

func decodeNegotiateMediumParametersResponse(data []byte) (uint32, error) {
	cc, body, err := completionCode(data)
	if err != nil {
		return 0, err
	}
	if cc != ccSuccess {
		return 0, fmt.Errorf("rde: NegotiateMediumParameters failed with cc=%#x", cc)
	}
	if len(body) < 4 {
		return 0, fmt.Errorf("rde: short NegotiateMediumParameters response")
	}
	return binary.LittleEndian.Uint32(body[0:4]), nil
}

func encodeGetSchemaDictionaryRequest(resourceID uint32, class SchemaClass) []byte {
	buf := make([]byte, 4+1)
	binary.LittleEndian.PutUint32(buf[0:4], resourceID)
	buf[4] = byte(class)
	return buf
}

// decodeGetSchemaDictionaryResponse returns the transfer handle a
// subsequent multipart receive should target.
func decodeGetSchemaDictionaryResponse(data []byte) (uint32, error) {
	cc, body, err := completionCode(data)
	if err != nil {
		return 0, err
	}
	if cc != ccSuccess {
		return 0, fmt.Errorf("rde: GetSchemaDictionary failed with cc=%#x", cc)
	}
	if len(body) < 5 {
		return 0, fmt.Errorf("rde: short GetSchemaDictionary response")
	}
	// byte 0 is dictionaryFormat, not consulted here; transfer handle follows.
	return binary.LittleEndian.Uint32(body[1:5]), nil
}

// multipartReceiveRequest/Response implement the RDEMultipartReceive leg of
// the shared multipart state machine (the multipart receive state machine), reusing
// internal/multipart.Reassembler for accumulation.

func encodeMultipartReceiveRequest(op wire.OperationFlag, transferHandle uint32) []byte {
	buf := make([]byte, 1+4)
	buf[0] = byte(op)
	binary.LittleEndian.PutUint32(buf[1:5], transferHandle)
	return buf
}

type multipartReceiveResponse struct {
	transferFlag wire.TransferFlag
	nextHandle   uint32
	data         []byte
	checksum     uint32
}

func decodeMultipartReceiveResponse(data []byte) (multipartReceiveResponse, error) {
	cc, body, err := completionCode(data)
	if err != nil {
		return multipartReceiveResponse{}, err
	}
	if cc != ccSuccess {
		return multipartReceiveResponse{}, fmt.Errorf("rde: RDEMultipartReceive failed with cc=%#x", cc)
	}
	const minLen = 1 + 4 + 4
	if len(body) < minLen {
		return multipartReceiveResponse{}, fmt.Errorf("rde: short RDEMultipartReceive response")
	}
	resp := multipartReceiveResponse{
		transferFlag: wire.TransferFlag(body[0]),
		nextHandle:   binary.LittleEndian.Uint32(body[1:5]),
	}
	length := binary.LittleEndian.Uint32(body[5:9])
	dataStart := 9
	if uint32(len(body)-dataStart) < length {
		return multipartReceiveResponse{}, fmt.Errorf("rde: RDEMultipartReceive truncated data (want %d, have %d)", length, len(body)-dataStart)
	}
	resp.data = append([]byte{}, body[dataStart:dataStart+int(length)]...)
	trailer := body[dataStart+int(length):]
	if resp.transferFlag.IsTerminal() && !resp.transferFlag.IsSinglePart() && len(trailer) >= 4 {
		resp.checksum = binary.LittleEndian.Uint32(trailer[:4])
	}
	return resp, nil
}

func encodeMultipartSendRequest(transferHandle uint32, flag wire.TransferFlag, chunk []byte, checksum uint32) []byte {
	buf := make([]byte, 0, 4+1+4+len(chunk)+4)
	handleBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(handleBuf, transferHandle)
	buf = append(buf, handleBuf...)
	buf = append(buf, byte(flag))
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(chunk)))
	buf = append(buf, lenBuf...)
	buf = append(buf, chunk...)
	if flag.IsTerminal() && !flag.IsSinglePart() {
		crcBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(crcBuf, checksum)
		buf = append(buf, crcBuf...)
	}
	return buf
}

// decodeMultipartSendResponse returns the handle the sender should use for
// the next chunk (the device may rewrite it between chunks).
func decodeMultipartSendResponse(data []byte) (uint32, error) {
	cc, body, err := completionCode(data)
	if err != nil {
		return 0, err
	}
	if cc != ccSuccess {
		return 0, fmt.Errorf("rde: RDEMultipartSend failed with cc=%#x", cc)
	}
	if len(body) < 4 {
		return 0, fmt.Errorf("rde: short RDEMultipartSend response")
	}
	return binary.LittleEndian.Uint32(body[0:4]), nil
}

func encodeOperationInitRequest(resourceID uint32, op OperationType, containsPayload bool, payload []byte) []byte {
	buf := make([]byte, 0, 4+1+1+2+len(payload))
	idBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(idBuf, resourceID)
	buf = append(buf, idBuf...)
	buf = append(buf, byte(op))
	flags := uint8(0)
	if containsPayload {
		flags |= 1
	}
	buf = append(buf, flags)
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(len(payload)))
	buf = append(buf, lenBuf...)
	buf = append(buf, payload...)
	return buf
}

type operationInitResponse struct {
	resultTransferHandle uint32
	inlinePayload        []byte
}

func decodeOperationInitResponse(data []byte) (operationInitResponse, error) {
	cc, body, err := completionCode(data)
	if err != nil {
		return operationInitResponse{}, err
	}
	if cc != ccSuccess {
		return operationInitResponse{}, fmt.Errorf("rde: RDEOperationInit failed with cc=%#x", cc)
	}
	if len(body) < 4 {
		return operationInitResponse{}, fmt.Errorf("rde: short RDEOperationInit response")
	}
	resp := operationInitResponse{resultTransferHandle: binary.LittleEndian.Uint32(body[0:4])}
	if resp.resultTransferHandle == 0 && len(body) > 4 {
		resp.inlinePayload = append([]byte{}, body[4:]...)
	}
	return resp, nil
}

func encodeOperationCompleteRequest(resourceID uint32, opID uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], resourceID)
	binary.LittleEndian.PutUint32(buf[4:8], opID)
	return buf
}
