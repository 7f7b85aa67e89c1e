// Package platform implements the platform initializer: event-buffer
// negotiation, PDR pagination and parsing, and numeric sensor/effecter
// materialization, run once per newly-discovered Platform-capable
// terminus.
//
// The initializer runs a fixed step sequence (negotiate event buffer ->
// query supported event messages -> fetch PDR repository info -> fetch
// and parse PDRs, materializing sensors/effecters -> set event receiver),
// logging and aborting the whole sequence on the first hard failure. PDR pagination/reassembly is built on
// internal/multipart, the same Start/Middle/End state machine GetPDR
// shares with the event pump and RDE multipart commands.
package platform

import (
	"context"
	"fmt"
	"math"

	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/openbmc/pldm-sub002/internal/logging"
	"github.com/openbmc/pldm-sub002/internal/multipart"
	"github.com/openbmc/pldm-sub002/internal/pldmerr"
	"github.com/openbmc/pldm-sub002/internal/sensor"
	"github.com/openbmc/pldm-sub002/internal/terminus"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

// PlatformType is the PLDM type code for Platform Monitoring and Control.
const PlatformType uint8 = 2

// Platform command codes (representative, not exhaustive).
const (
	CmdSetEventReceiver          uint8 = 0x04
	CmdEventMessageSupported     uint8 = 0x0c
	CmdEventMessageBufferSize    uint8 = 0x0d
	CmdGetPDRRepositoryInfo      uint8 = 0x50
	CmdGetPDR                    uint8 = 0x51
)

const ccSuccess uint8 = 0x00

// RepositoryState is GetPDRRepositoryInfo's repository-availability field.
type RepositoryState uint8

const (
	RepositoryStateAvailable RepositoryState = iota
	RepositoryStateUpdateInProgress
	RepositoryStateFailed
)

// PDRType tags a parsed PDR record's pdr_hdr.type field.
type PDRType uint8

const (
	PDRTypeNumericSensor            PDRType = 2
	PDRTypeNumericEffecter           PDRType = 9
	PDRTypeSensorAuxiliaryNames      PDRType = 15
	PDRTypeEffecterAuxiliaryNames    PDRType = 16
)

// ErrNotReady is wrapped by the error Init returns when the repository
// reports a non-Available state (errors.Is(err, ErrNotReady) holds); the
// initializer aborts and will retry on the next discovery pass.
var ErrNotReady = fmt.Errorf("platform: pdr repository not ready")

// Sender is the narrow requester surface the initializer depends on.
type Sender interface {
	SendAndRecv(ctx context.Context, tid uint8, typ, command uint8, body []byte) ([]byte, error)
}

// Initializer runs the platform-init sequence for newly-discovered
// termini.
type Initializer struct {
	sender          Sender
	logger          *logging.Logger
	localEID        uint8
	localBufferSize uint32
	requestCount    uint32
}

// Config configures an Initializer.
type Config struct {
	Logger          *logging.Logger
	LocalEID        uint8
	LocalBufferSize uint32 // this agent's event-message buffer size (mc side)
	PDRRequestCount uint32 // requestCnt passed to each GetPDR call
}

// New constructs an Initializer.
func New(sender Sender, cfg Config) *Initializer {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.LocalBufferSize == 0 {
		cfg.LocalBufferSize = constants.DefaultEventBufferSize
	}
	if cfg.PDRRequestCount == 0 {
		cfg.PDRRequestCount = constants.DefaultPDRRequestCount
	}
	return &Initializer{
		sender:          sender,
		logger:          cfg.Logger.WithField("component", "platform"),
		localEID:        cfg.LocalEID,
		localBufferSize: cfg.LocalBufferSize,
		requestCount:    cfg.PDRRequestCount,
	}
}

// Init runs the full initialization sequence against term, satisfying
// terminus.PlatformInitFunc.
func (in *Initializer) Init(ctx context.Context, term *terminus.Terminus) error {
	in.negotiateEventBufferSize(ctx, term)
	in.negotiateEventMessageSupported(ctx, term)

	repoState, recordCount, largestRecordSize, err := in.getRepositoryInfo(ctx, term.TID)
	if err != nil {
		in.logger.Debug("GetPDRRepositoryInfo failed, proceeding with unbounded pagination", "tid", term.TID, "error", err)
		recordCount, largestRecordSize = math.MaxUint32, math.MaxUint32
	} else if repoState != RepositoryStateAvailable {
		notReady := pldmerr.NewRequest("platform.Init", term.TID, 0xff, CmdGetPDRRepositoryInfo, pldmerr.CodeStateViolation, "pdr repository not available")
		notReady.Inner = ErrNotReady
		return notReady
	}
	_ = largestRecordSize // not used by pagination

	term.NumericSensors = make(map[uint16]*sensor.NumericSensor)
	term.NumericEffecters = make(map[uint16]*sensor.NumericEffecter)
	term.RawPDRs = make(map[uint32][]byte)

	if err := in.paginatePDRs(ctx, term, recordCount); err != nil {
		return err
	}

	in.setEventReceiver(ctx, term)
	return nil
}

func (in *Initializer) negotiateEventBufferSize(ctx context.Context, term *terminus.Terminus) {
	req := encodeEventMessageBufferSizeRequest(in.localBufferSize)
	resp, err := in.sender.SendAndRecv(ctx, term.TID, PlatformType, CmdEventMessageBufferSize, req)
	if err != nil {
		in.logger.Debug("EventMessageBufferSize failed, falling back to default", "tid", term.TID, "error", err)
		term.EventMessageBufferSize = 256
		return
	}
	deviceSize, err := decodeEventMessageBufferSizeResponse(resp)
	if err != nil {
		term.EventMessageBufferSize = 256
		return
	}
	term.EventMessageBufferSize = min32(in.localBufferSize, deviceSize)
}

func (in *Initializer) negotiateEventMessageSupported(ctx context.Context, term *terminus.Terminus) {
	resp, err := in.sender.SendAndRecv(ctx, term.TID, PlatformType, CmdEventMessageSupported, nil)
	if err != nil {
		term.SynchronyConfigSupported = 0
		return
	}
	bitmap, classes, err := decodeEventMessageSupportedResponse(resp)
	if err != nil {
		term.SynchronyConfigSupported = 0
		return
	}
	term.SynchronyConfigSupported = bitmap
	term.SupportedEventClasses = classes
}

func (in *Initializer) getRepositoryInfo(ctx context.Context, tid uint8) (RepositoryState, uint32, uint32, error) {
	resp, err := in.sender.SendAndRecv(ctx, tid, PlatformType, CmdGetPDRRepositoryInfo, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	return decodeRepositoryInfoResponse(resp)
}

func (in *Initializer) setEventReceiver(ctx context.Context, term *terminus.Terminus) {
	if term.SynchronyConfigSupported == 0 {
		return
	}
	req := encodeSetEventReceiverRequest(in.localEID)
	if _, err := in.sender.SendAndRecv(ctx, term.TID, PlatformType, CmdSetEventReceiver, req); err != nil {
		in.logger.Debug("SetEventReceiver failed", "tid", term.TID, "error", err)
	}
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// paginatePDRs walks the repository's record-handle chain, reassembling
// multi-part records via internal/multipart and parsing each complete
// record with parseRecord.
func (in *Initializer) paginatePDRs(ctx context.Context, term *terminus.Terminus, recordCount uint32) error {
	recordHandle := uint32(0)
	visited := make(map[uint32]bool)
	iterations := 0
	recordsSeen := uint32(0)

	for {
		if iterations >= constants.MaxPDRRecordIterations {
			return pldmerr.New("platform.paginatePDRs", pldmerr.CodeStateViolation, "exceeded max pdr iteration safety valve")
		}
		iterations++
		if recordsSeen >= recordCount {
			break
		}
		if recordHandle != 0 && visited[recordHandle] {
			return pldmerr.New("platform.paginatePDRs", pldmerr.CodeStateViolation, "record handle cycle detected")
		}
		visited[recordHandle] = true

		data, nextHandle, err := in.fetchRecord(ctx, term.TID, recordHandle)
		if err != nil {
			in.logger.Debug("GetPDR failed, stopping pagination", "tid", term.TID, "record_handle", recordHandle, "error", err)
			break
		}
		in.parseRecord(term, recordHandle, data)
		recordsSeen++

		if nextHandle == 0 {
			break // 0 signals end of repository
		}
		recordHandle = nextHandle
	}
	return nil
}

// fetchRecord performs one record's worth of GetPDR round trips,
// following multi-part continuations until End/StartAndEnd.
func (in *Initializer) fetchRecord(ctx context.Context, tid uint8, recordHandle uint32) ([]byte, uint32, error) {
	r := multipart.NewReassembler()
	op := wire.OperationFlagFirstPart
	dataTransferHandle := uint32(0)
	var nextRecordHandle uint32

	for {
		req := encodeGetPDRRequest(recordHandle, dataTransferHandle, op, in.requestCount)
		resp, err := in.sender.SendAndRecv(ctx, tid, PlatformType, CmdGetPDR, req)
		if err != nil {
			return nil, 0, err
		}
		parsed, err := decodeGetPDRResponse(resp)
		if err != nil {
			return nil, 0, err
		}
		nextRecordHandle = parsed.nextRecordHandle
		complete, err := r.Accept(parsed.transferFlag, parsed.data, parsed.checksum)
		if err != nil {
			return nil, 0, err
		}
		if complete {
			return r.Bytes(), nextRecordHandle, nil
		}
		dataTransferHandle = parsed.nextDataTransferHandle
		op = wire.OperationFlagNextPart
	}
}

// parseRecord dispatches a complete PDR record's bytes by its header type.
func (in *Initializer) parseRecord(term *terminus.Terminus, recordHandle uint32, data []byte) {
	hdr, body, err := decodePDRCommonHeader(data)
	if err != nil {
		in.logger.Debug("undecodable pdr header", "record_handle", recordHandle, "error", err)
		return
	}
	switch PDRType(hdr.pdrType) {
	case PDRTypeNumericSensor:
		s, err := parseNumericSensorPDR(term.TID, body)
		if err != nil {
			in.logger.Debug("undecodable numeric sensor pdr", "record_handle", recordHandle, "error", err)
			return
		}
		term.NumericSensors[s.SensorID] = s
	case PDRTypeNumericEffecter:
		e, err := parseNumericEffecterPDR(term.TID, body)
		if err != nil {
			in.logger.Debug("undecodable numeric effecter pdr", "record_handle", recordHandle, "error", err)
			return
		}
		term.NumericEffecters[e.EffecterID] = e
	case PDRTypeSensorAuxiliaryNames:
		id, names, err := parseAuxiliaryNames(body)
		if err != nil {
			in.logger.Debug("undecodable sensor auxiliary names pdr", "record_handle", recordHandle, "error", err)
			return
		}
		if s, ok := term.NumericSensors[id]; ok && len(names) > 0 {
			s.Name = names[0]
		}
	case PDRTypeEffecterAuxiliaryNames:
		id, names, err := parseAuxiliaryNames(body)
		if err != nil {
			in.logger.Debug("undecodable effecter auxiliary names pdr", "record_handle", recordHandle, "error", err)
			return
		}
		if e, ok := term.NumericEffecters[id]; ok && len(names) > 0 {
			e.Name = names[0]
		}
	default:
		term.RawPDRs[recordHandle] = data
	}
}
