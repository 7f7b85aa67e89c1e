package sensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeRaw reads one raw numeric field of the given size from the front
// of data, returning it widened to float64 and the number of bytes
// consumed. Signed encodings are sign-extended before conversion.
func DecodeRaw(size DataSize, data []byte) (float64, int, error) {
	switch size {
	case DataSizeUint8:
		if len(data) < 1 {
			return 0, 0, fmt.Errorf("sensor: short buffer for uint8 (%d bytes)", len(data))
		}
		return float64(data[0]), 1, nil
	case DataSizeSint8:
		if len(data) < 1 {
			return 0, 0, fmt.Errorf("sensor: short buffer for sint8 (%d bytes)", len(data))
		}
		return float64(int8(data[0])), 1, nil
	case DataSizeUint16:
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("sensor: short buffer for uint16 (%d bytes)", len(data))
		}
		return float64(binary.LittleEndian.Uint16(data)), 2, nil
	case DataSizeSint16:
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("sensor: short buffer for sint16 (%d bytes)", len(data))
		}
		return float64(int16(binary.LittleEndian.Uint16(data))), 2, nil
	case DataSizeUint32:
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("sensor: short buffer for uint32 (%d bytes)", len(data))
		}
		return float64(binary.LittleEndian.Uint32(data)), 4, nil
	case DataSizeSint32:
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("sensor: short buffer for sint32 (%d bytes)", len(data))
		}
		return float64(int32(binary.LittleEndian.Uint32(data))), 4, nil
	case DataSizeReal32:
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("sensor: short buffer for real32 (%d bytes)", len(data))
		}
		bits := binary.LittleEndian.Uint32(data)
		return float64(math.Float32frombits(bits)), 4, nil
	default:
		return 0, 0, fmt.Errorf("sensor: unknown data size tag %d", size)
	}
}
