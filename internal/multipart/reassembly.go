// Package multipart implements the chunked-transfer state machine shared
// by GetPDR pagination, PollForPlatformEventMessage event reassembly, and
// the RDE multipart receive/send commands: a transfer handle counter, a
// Start/Middle/End/StartAndEnd flag sequence, and a CRC32 integrity check
// over the reassembled payload.
//
// A fixed sequence of states advances as chunks arrive off the wire,
// guarded against transitions that skip a step: Start -> Middle* -> End,
// never accepting a transition the current state doesn't allow.
package multipart

import (
	"fmt"
	"hash/crc32"

	"github.com/openbmc/pldm-sub002/internal/wire"
)

// Reassembler accumulates chunks of a single multipart transfer and
// validates the CRC32 checksum once the terminal chunk arrives.
type Reassembler struct {
	buf     []byte
	started bool
	done    bool
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// ErrOutOfSequence is returned when a chunk's flag cannot legally follow
// the reassembler's current state (e.g. Middle before Start, or any chunk
// after a terminal one).
var ErrOutOfSequence = fmt.Errorf("multipart: chunk out of sequence")

// ErrChecksumMismatch is returned when a terminal chunk's CRC32 does not
// match the reassembled payload.
var ErrChecksumMismatch = fmt.Errorf("multipart: checksum mismatch")

// Accept feeds one chunk into the reassembler. data is the chunk's
// payload bytes (header and transfer-handle fields already stripped by
// the caller). crcField is only consulted when flag is a terminal flag;
// StartAndEnd transfers (single-part) skip CRC validation entirely since
// there is nothing to reassemble.
//
// Returns (complete, error): complete is true once the terminal chunk
// has been accepted and validated.
func (r *Reassembler) Accept(flag wire.TransferFlag, data []byte, crcField uint32) (bool, error) {
	if r.done {
		return false, ErrOutOfSequence
	}
	switch flag {
	case wire.TransferFlagStart:
		if r.started {
			return false, ErrOutOfSequence
		}
		r.started = true
		r.buf = append(r.buf, data...)
		return false, nil
	case wire.TransferFlagMiddle:
		if !r.started {
			return false, ErrOutOfSequence
		}
		r.buf = append(r.buf, data...)
		return false, nil
	case wire.TransferFlagEnd:
		if !r.started {
			return false, ErrOutOfSequence
		}
		r.buf = append(r.buf, data...)
		if crc32.ChecksumIEEE(r.buf) != crcField {
			return false, ErrChecksumMismatch
		}
		r.done = true
		return true, nil
	case wire.TransferFlagStartAndEnd:
		if r.started {
			return false, ErrOutOfSequence
		}
		r.buf = append(r.buf, data...)
		r.done = true
		return true, nil
	default:
		return false, fmt.Errorf("multipart: unexpected transfer flag %s", flag)
	}
}

// Bytes returns the reassembled payload. Only meaningful once Accept has
// returned complete=true.
func (r *Reassembler) Bytes() []byte { return r.buf }

// TrimSuffix drops the last n bytes appended to the buffer and clears the
// terminal state, letting a caller recover from a checksum-mismatched
// terminal chunk by resetting the accumulated buffer to its pre-chunk
// size and re-requesting the current part.
func (r *Reassembler) TrimSuffix(n int) {
	if n > len(r.buf) {
		n = len(r.buf)
	}
	r.buf = r.buf[:len(r.buf)-n]
	r.done = false
}

// Reset clears the reassembler for reuse on a new transfer handle.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.started = false
	r.done = false
}

// Chunker splits an outbound payload into chunks no larger than
// maxChunkSize, yielding the TransferFlag sequence a requester-side
// multipart send operation must emit.
type Chunker struct {
	data         []byte
	maxChunkSize int
	offset       int
}

// NewChunker returns a Chunker over data, bounded to maxChunkSize bytes
// per chunk (the negotiated mc_max_chunk_size).
func NewChunker(data []byte, maxChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = len(data)
		if maxChunkSize == 0 {
			maxChunkSize = 1
		}
	}
	return &Chunker{data: data, maxChunkSize: maxChunkSize}
}

// Next returns the next chunk's flag and payload, and whether any chunk
// was produced at all (false once the transfer is exhausted).
func (c *Chunker) Next() (wire.TransferFlag, []byte, bool) {
	if c.offset >= len(c.data) && c.offset != 0 {
		return 0, nil, false
	}
	if len(c.data) == 0 {
		if c.offset == 0 {
			c.offset = 1 // mark consumed so a second Next() call stops
			return wire.TransferFlagStartAndEnd, nil, true
		}
		return 0, nil, false
	}

	start := c.offset
	end := start + c.maxChunkSize
	if end > len(c.data) {
		end = len(c.data)
	}
	chunk := c.data[start:end]
	c.offset = end

	switch {
	case start == 0 && end == len(c.data):
		return wire.TransferFlagStartAndEnd, chunk, true
	case start == 0:
		return wire.TransferFlagStart, chunk, true
	case end == len(c.data):
		return wire.TransferFlagEnd, chunk, true
	default:
		return wire.TransferFlagMiddle, chunk, true
	}
}

// CRC32 computes the IEEE CRC32 of the full reassembled payload, used by
// a sender to populate the End/StartAndEnd chunk's checksum field.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
