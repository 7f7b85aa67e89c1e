// Package wire implements the PLDM message header codec (DSP0240) and the
// multipart transfer-flag/operation-flag enumerations shared by GetPDR,
// PollForPlatformEventMessage, and the RDE multipart commands.
//
// Command payloads beyond the header are treated as opaque byte slices:
// this package only owns framing, not individual command bodies.
package wire

import "fmt"

// Header is the 3-byte pldm_msg_hdr: request bit, datagram bit, 5-bit
// instance id (byte 0); 6-bit PLDM type (byte 1); command code (byte 2).
type Header struct {
	RequestBit bool
	Datagram   bool
	InstanceID uint8 // 0..31
	Type       uint8 // 0..63
	Command    uint8
}

const HeaderSize = 3

// Encode serializes the header to its 3-byte wire form.
func (h Header) Encode() ([]byte, error) {
	if h.InstanceID > 0x1f {
		return nil, fmt.Errorf("wire: instance id %d exceeds 5 bits", h.InstanceID)
	}
	if h.Type > 0x3f {
		return nil, fmt.Errorf("wire: pldm type %d exceeds 6 bits", h.Type)
	}
	buf := make([]byte, HeaderSize)
	b0 := h.InstanceID & 0x1f
	if h.RequestBit {
		b0 |= 1 << 7
	}
	if h.Datagram {
		b0 |= 1 << 6
	}
	buf[0] = b0
	buf[1] = h.Type & 0x3f
	buf[2] = h.Command
	return buf, nil
}

// Decode parses a Header from its 3-byte wire form.
func Decode(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header (%d bytes)", len(data))
	}
	return Header{
		RequestBit: data[0]&(1<<7) != 0,
		Datagram:   data[0]&(1<<6) != 0,
		InstanceID: data[0] & 0x1f,
		Type:       data[1] & 0x3f,
		Command:    data[2],
	}, nil
}

// IsResponse reports whether the header describes a response message.
func (h Header) IsResponse() bool { return !h.RequestBit }

// Matches reports whether a response header correlates to this request
// header: same instance id, type, command, and the request bit is clear.
// This is the correlation invariant the requester runtime relies on.
func (req Header) Matches(resp Header) bool {
	return resp.IsResponse() &&
		req.InstanceID == resp.InstanceID &&
		req.Type == resp.Type &&
		req.Command == resp.Command
}

// MCTPMessageType is the MCTP transport-level message type tag for PLDM,
// prepended/stripped by the transport adapter when talking to mctp-mux.
const MCTPMessageType byte = 0x01
