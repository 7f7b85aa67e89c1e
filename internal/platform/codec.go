package platform

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/openbmc/pldm-sub002/internal/sensor"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

func encodeEventMessageBufferSizeRequest(localSize uint32) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(localSize))
	return buf
}

func decodeEventMessageBufferSizeResponse(data []byte) (uint32, error) {
	if len(data) < wire.HeaderSize+3 {
		return 0, fmt.Errorf("platform: short EventMessageBufferSize response")
	}
	if cc := data[wire.HeaderSize]; cc != ccSuccess {
		return 0, fmt.Errorf("platform: EventMessageBufferSize failed with cc=%#x", cc)
	}
	return uint32(binary.LittleEndian.Uint16(data[wire.HeaderSize+1:])), nil
}

func decodeEventMessageSupportedResponse(data []byte) (uint8, []uint8, error) {
	if len(data) < wire.HeaderSize+3 {
		return 0, nil, fmt.Errorf("platform: short EventMessageSupported response")
	}
	if cc := data[wire.HeaderSize]; cc != ccSuccess {
		return 0, nil, fmt.Errorf("platform: EventMessageSupported failed with cc=%#x", cc)
	}
	bitmap := data[wire.HeaderSize+1]
	numClasses := int(data[wire.HeaderSize+2])
	classesStart := wire.HeaderSize + 3
	if len(data) < classesStart+numClasses {
		return 0, nil, fmt.Errorf("platform: short event class list")
	}
	classes := append([]byte{}, data[classesStart:classesStart+numClasses]...)
	return bitmap, classes, nil
}

func decodeRepositoryInfoResponse(data []byte) (RepositoryState, uint32, uint32, error) {
	// completion code, repository state, record count (u32), repository
	// size (u32), largest record size (u32) — trailing fields beyond what
	// the initializer consults are present on the wire but not parsed here.
	const minLen = 1 + 1 + 4 + 4 + 4
	if len(data) < wire.HeaderSize+minLen {
		return 0, 0, 0, fmt.Errorf("platform: short GetPDRRepositoryInfo response")
	}
	body := data[wire.HeaderSize:]
	if cc := body[0]; cc != ccSuccess {
		return 0, 0, 0, fmt.Errorf("platform: GetPDRRepositoryInfo failed with cc=%#x", cc)
	}
	state := RepositoryState(body[1])
	recordCount := binary.LittleEndian.Uint32(body[2:6])
	_ = binary.LittleEndian.Uint32(body[6:10]) // repository size, not consulted
	largestRecordSize := binary.LittleEndian.Uint32(body[10:14])
	return state, recordCount, largestRecordSize, nil
}

func encodeSetEventReceiverRequest(localEID uint8) []byte {
	return []byte{localEID, 0x00} // eventMessageGlobalEnable=Enabled, transport=MCTP implied
}

func encodeGetPDRRequest(recordHandle, dataTransferHandle uint32, op wire.OperationFlag, requestCount uint32) []byte {
	buf := make([]byte, 4+4+1+2+1)
	binary.LittleEndian.PutUint32(buf[0:4], recordHandle)
	binary.LittleEndian.PutUint32(buf[4:8], dataTransferHandle)
	buf[8] = byte(op)
	binary.LittleEndian.PutUint16(buf[9:11], uint16(requestCount))
	buf[11] = 0 // recordChangeNumber, always sent as 0 for every part
	return buf
}

type getPDRResponse struct {
	nextRecordHandle        uint32
	nextDataTransferHandle  uint32
	transferFlag            wire.TransferFlag
	data                    []byte
	checksum                uint32
}

func decodeGetPDRResponse(data []byte) (getPDRResponse, error) {
	const minLen = 1 + 4 + 4 + 1 + 2
	if len(data) < wire.HeaderSize+minLen {
		return getPDRResponse{}, fmt.Errorf("platform: short GetPDR response")
	}
	body := data[wire.HeaderSize:]
	if cc := body[0]; cc != ccSuccess {
		return getPDRResponse{}, fmt.Errorf("platform: GetPDR failed with cc=%#x", cc)
	}
	resp := getPDRResponse{
		nextRecordHandle:       binary.LittleEndian.Uint32(body[1:5]),
		nextDataTransferHandle: binary.LittleEndian.Uint32(body[5:9]),
		transferFlag:           wire.TransferFlag(body[9]),
	}
	respCount := int(binary.LittleEndian.Uint16(body[10:12]))
	dataStart := 12
	if len(body) < dataStart+respCount {
		return getPDRResponse{}, fmt.Errorf("platform: GetPDR response truncated data (want %d, have %d)", respCount, len(body)-dataStart)
	}
	resp.data = append([]byte{}, body[dataStart:dataStart+respCount]...)
	trailer := body[dataStart+respCount:]
	if resp.transferFlag.IsTerminal() && !resp.transferFlag.IsSinglePart() && len(trailer) >= 4 {
		resp.checksum = binary.LittleEndian.Uint32(trailer[:4])
	}
	return resp, nil
}

// pdrCommonHeader is the fixed-layout prefix every PDR record carries
// ahead of its type-specific body (libpldm's pldm_pdr_hdr).
type pdrCommonHeader struct {
	recordHandle uint32
	version      uint8
	pdrType      uint8
	changeNum    uint16
	length       uint16
}

const pdrCommonHeaderSize = 4 + 1 + 1 + 2 + 2

func decodePDRCommonHeader(data []byte) (pdrCommonHeader, []byte, error) {
	if len(data) < pdrCommonHeaderSize {
		return pdrCommonHeader{}, nil, fmt.Errorf("platform: short pdr header (%d bytes)", len(data))
	}
	hdr := pdrCommonHeader{
		recordHandle: binary.LittleEndian.Uint32(data[0:4]),
		version:      data[4],
		pdrType:      data[5],
		changeNum:    binary.LittleEndian.Uint16(data[6:8]),
		length:       binary.LittleEndian.Uint16(data[8:10]),
	}
	return hdr, data[pdrCommonHeaderSize:], nil
}

// parseNumericSensorPDR decodes the subset of a NumericSensor PDR body
// needed to materialize a sensor.NumericSensor: sensor id, base unit,
// unit modifier, resolution, offset, and the raw-reading data-size tag.
func parseNumericSensorPDR(tid uint8, body []byte) (*sensor.NumericSensor, error) {
	const minLen = 2 + 1 + 1 + 4 + 4 + 1
	if len(body) < minLen {
		return nil, fmt.Errorf("platform: short numeric sensor pdr body (%d bytes)", len(body))
	}
	return &sensor.NumericSensor{
		TID:          tid,
		SensorID:     binary.LittleEndian.Uint16(body[0:2]),
		BaseUnit:     body[2],
		UnitModifier: int8(body[3]),
		Resolution:   float64(int32(binary.LittleEndian.Uint32(body[4:8]))),
		Offset:       float64(int32(binary.LittleEndian.Uint32(body[8:12]))),
		DataSize:     sensor.DataSize(body[12]),
	}, nil
}

// parseNumericEffecterPDR decodes the analogous fields for an effecter.
func parseNumericEffecterPDR(tid uint8, body []byte) (*sensor.NumericEffecter, error) {
	const minLen = 2 + 1 + 1 + 4 + 4 + 1
	if len(body) < minLen {
		return nil, fmt.Errorf("platform: short numeric effecter pdr body (%d bytes)", len(body))
	}
	return &sensor.NumericEffecter{
		TID:          tid,
		EffecterID:   binary.LittleEndian.Uint16(body[0:2]),
		BaseUnit:     body[2],
		UnitModifier: int8(body[3]),
		Resolution:   float64(int32(binary.LittleEndian.Uint32(body[4:8]))),
		Offset:       float64(int32(binary.LittleEndian.Uint32(body[8:12]))),
		DataSize:     sensor.DataSize(body[12]),
	}, nil
}

// parseAuxiliaryNames decodes a SensorAuxiliaryNames/EffecterAuxiliaryNames
// PDR body: a 2-byte sensor/effecter id, a 1-byte name count, then that
// many (lang-tag, name) pairs, the lang tag null-terminated ASCII and the
// name null-terminated UTF-16BE.
func parseAuxiliaryNames(body []byte) (uint16, []string, error) {
	if len(body) < 2 {
		return 0, nil, fmt.Errorf("platform: short auxiliary names pdr body")
	}
	id := binary.LittleEndian.Uint16(body[0:2])
	if len(body) < 3 {
		return id, nil, nil
	}
	nameCount := int(body[2])
	offset := 3
	names := make([]string, 0, nameCount)
	for i := 0; i < nameCount && offset < len(body); i++ {
		// lang tag: null-terminated ASCII
		tagEnd := offset
		for tagEnd < len(body) && body[tagEnd] != 0 {
			tagEnd++
		}
		offset = tagEnd + 1
		if offset >= len(body) {
			break
		}
		name, consumed, err := decodeUTF16BEString(body[offset:])
		if err != nil {
			return id, names, err
		}
		names = append(names, name)
		offset += consumed
	}
	return id, names, nil
}

// decodeUTF16BEString reads a null-terminated (two zero bytes) UTF-16BE
// string from the front of data, returning the decoded UTF-8 string and
// the number of bytes consumed including the terminator.
func decodeUTF16BEString(data []byte) (string, int, error) {
	var units []uint16
	i := 0
	for i+1 < len(data) {
		u := uint16(data[i])<<8 | uint16(data[i+1])
		i += 2
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), i, nil
}
