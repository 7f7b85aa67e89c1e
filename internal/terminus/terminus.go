// Package terminus implements the terminus manager: per-TID discovery
// (GetTID/SetTID/GetPLDMTypes/GetPLDMCommands) and the terminus registry
// the rest of the core reads to decide which commands a given device
// actually supports.
//
// Discovery runs a fixed sequence of request/response round trips
// (GetTID -> SetTID -> GetPLDMTypes -> GetPLDMCommands*) that populates a
// Terminus struct, logging each step and bailing out on the first
// rejected response.
package terminus

import (
	"context"
	"fmt"
	"sync"

	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/openbmc/pldm-sub002/internal/logging"
	"github.com/openbmc/pldm-sub002/internal/pldmerr"
	"github.com/openbmc/pldm-sub002/internal/sensor"
)

// BaseType is the PLDM type code for Base commands.
const BaseType uint8 = 0

// PlatformType is the PLDM type code for Platform Monitoring and Control,
// re-declared here (matching internal/eventpump's constant) so this
// package has no import-cycle dependency on internal/eventpump.
const PlatformType uint8 = 2

// Base command codes.
const (
	CmdSetTID          uint8 = 0x01
	CmdGetTID          uint8 = 0x02
	CmdGetPLDMVersion  uint8 = 0x03
	CmdGetPLDMTypes    uint8 = 0x04
	CmdGetPLDMCommands uint8 = 0x05
)

// Completion codes relevant to discovery's accept/reject rules.
const (
	CCSuccess           uint8 = 0x00
	CCUnsupportedCmd    uint8 = 0x05
)

// Terminus is one discovered PLDM endpoint.
type Terminus struct {
	mu sync.RWMutex

	TID  uint8
	EID  uint8

	SupportedTypes    [8]byte             // bitmap, bit i => PLDM type i supported
	SupportedCommands map[uint8][32]byte  // PLDM type -> 32-byte command bitmap

	// Populated by the platform initializer once PDR pagination and
	// parsing complete; nil until then.
	NumericSensors   map[uint16]*sensor.NumericSensor
	NumericEffecters map[uint16]*sensor.NumericEffecter
	RawPDRs          map[uint32][]byte // record handle -> raw bytes, for PDR types not materialized above

	EventMessageBufferSize   uint32
	SynchronyConfigSupported uint8 // bitmap
	SupportedEventClasses    []uint8

	Initialized bool // monotonic: false -> true only after full platform init
}

// SupportsType reports whether typ's bit is set in the types bitmap.
func (t *Terminus) SupportsType(typ uint8) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.SupportedTypes[typ/8]&(1<<(typ%8)) != 0
}

// SupportsCommand reports whether cmd's bit is set for typ's command bitmap.
func (t *Terminus) SupportsCommand(typ, cmd uint8) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bitmap, ok := t.SupportedCommands[typ]
	if !ok {
		return false
	}
	return bitmap[cmd/8]&(1<<(cmd%8)) != 0
}

func (t *Terminus) markInitialized() {
	t.mu.Lock()
	t.Initialized = true
	t.mu.Unlock()
}

// Sender is the narrow requester surface the manager depends on.
type Sender interface {
	SendAndRecv(ctx context.Context, tid uint8, typ, command uint8, body []byte) ([]byte, error)
}

// EIDMapper is the narrow transport surface the manager depends on for
// EID<->TID bookkeeping.
type EIDMapper interface {
	MapTID(eid uint8) (uint8, error)
}

// PlatformInitFunc hands a newly-discovered, Platform-capable terminus off
// to the platform initializer (internal/platform); kept as an injected
// function rather than a direct import to avoid a terminus<->platform
// import cycle, since the platform initializer itself needs the Terminus
// type to attach sensors/effecters to.
type PlatformInitFunc func(ctx context.Context, term *Terminus) error

// Manager discovers and tracks termini.
type Manager struct {
	sender  Sender
	mapper  EIDMapper
	logger  *logging.Logger
	onPlat  PlatformInitFunc

	mu    sync.RWMutex
	byTID map[uint8]*Terminus
}

// Config configures a Manager.
type Config struct {
	Logger            *logging.Logger
	OnPlatformSupport PlatformInitFunc
}

// NewManager constructs a Manager over sender/mapper.
func NewManager(sender Sender, mapper EIDMapper, cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Manager{
		sender: sender,
		mapper: mapper,
		logger: cfg.Logger.WithField("component", "terminus"),
		onPlat: cfg.OnPlatformSupport,
		byTID:  make(map[uint8]*Terminus),
	}
}

// Get returns the terminus for tid, if discovered.
func (m *Manager) Get(tid uint8) (*Terminus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byTID[tid]
	return t, ok
}

// Discover runs the discovery sequence for every EID in eids, skipping
// any device that refuses to publish a valid TID.
func (m *Manager) Discover(ctx context.Context, eids []uint8) error {
	for _, eid := range eids {
		if err := m.discoverOne(ctx, eid); err != nil {
			m.logger.Warn("discovery failed for eid", "eid", eid, "error", err)
		}
	}
	return nil
}

func (m *Manager) discoverOne(ctx context.Context, eid uint8) error {
	tid, err := m.mapper.MapTID(eid)
	if err != nil {
		return pldmerr.Wrap("terminus.Discover", pldmerr.CodeTransportFailure, err)
	}

	resp, err := m.sender.SendAndRecv(ctx, tid, BaseType, CmdGetTID, nil)
	if err != nil {
		return pldmerr.Wrap("terminus.GetTID", pldmerr.CodeTimeout, err)
	}
	gotTID, err := parseGetTIDResponse(resp)
	if err != nil {
		return err
	}
	if gotTID == constants.TIDUnset || gotTID == constants.TIDReserved {
		m.logger.Debug("device declined to publish a valid tid", "eid", eid)
		return nil
	}

	term := &Terminus{TID: tid, EID: eid, SupportedCommands: make(map[uint8][32]byte)}

	setResp, err := m.sender.SendAndRecv(ctx, tid, BaseType, CmdSetTID, []byte{tid})
	if err != nil {
		return pldmerr.Wrap("terminus.SetTID", pldmerr.CodeTimeout, err)
	}
	if cc, err := parseCompletionCode(setResp); err != nil {
		return err
	} else if cc != CCSuccess && cc != CCUnsupportedCmd {
		return pldmerr.NewRequest("terminus.SetTID", tid, 0xff, CmdSetTID, pldmerr.CodeCompletionCodeError, fmt.Sprintf("rejected with cc=%#x", cc))
	}

	typesResp, err := m.sender.SendAndRecv(ctx, tid, BaseType, CmdGetPLDMTypes, nil)
	if err != nil {
		return pldmerr.Wrap("terminus.GetPLDMTypes", pldmerr.CodeTimeout, err)
	}
	types, err := parseGetPLDMTypesResponse(typesResp)
	if err != nil {
		return err
	}
	term.SupportedTypes = types

	for typ := uint8(0); typ < 64; typ++ {
		if term.SupportedTypes[typ/8]&(1<<(typ%8)) == 0 {
			continue
		}
		cmdResp, err := m.sender.SendAndRecv(ctx, tid, BaseType, CmdGetPLDMCommands, []byte{typ, 0, 0, 0})
		if err != nil {
			m.logger.Debug("GetPLDMCommands failed", "tid", tid, "type", typ, "error", err)
			continue
		}
		bitmap, err := parseGetPLDMCommandsResponse(cmdResp)
		if err != nil {
			m.logger.Debug("GetPLDMCommands undecodable", "tid", tid, "type", typ, "error", err)
			continue
		}
		term.SupportedCommands[typ] = bitmap
	}

	m.mu.Lock()
	m.byTID[tid] = term
	m.mu.Unlock()

	if term.SupportsType(PlatformType) && m.onPlat != nil {
		if err := m.onPlat(ctx, term); err != nil {
			m.logger.Warn("platform init failed", "tid", tid, "error", err)
			return err
		}
	}
	term.markInitialized()
	return nil
}
