// Package rde implements the Redfish Device Enablement session engine:
// per-device discovery (negotiation, dictionary retrieval) and the
// operation workflow (Init -> Send/Receive* -> Complete), built on
// internal/multipart for the chunked transfers both phases share.
package rde

import (
	"sync"

	"github.com/openbmc/pldm-sub002/internal/logging"
)

// DeviceState is a device's overall RDE lifecycle state.
type DeviceState int

const (
	DeviceStateNotReady DeviceState = iota
	DeviceStateDiscovering
	DeviceStateOperational
	DeviceStateBusy
	DeviceStateUnreachable
	DeviceStateDisabled
)

func (s DeviceState) String() string {
	switch s {
	case DeviceStateNotReady:
		return "NotReady"
	case DeviceStateDiscovering:
		return "Discovering"
	case DeviceStateOperational:
		return "Operational"
	case DeviceStateBusy:
		return "Busy"
	case DeviceStateUnreachable:
		return "Unreachable"
	case DeviceStateDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// OpState tracks discovery/operation workflow progress.
type OpState int

const (
	OpStateIdle OpState = iota
	OpStateDiscoveryStarted
	OpStateDiscoveryRunning
	OpStateDiscoveryCompleted
	OpStateWaitingForResponse
	OpStateOperationQueued
	OpStateOperationExecuting
	OpStateOperationCompleted
	OpStateOperationFailed
	OpStateCancelled
	OpStateTimedOut
)

func (s OpState) String() string {
	switch s {
	case OpStateIdle:
		return "Idle"
	case OpStateDiscoveryStarted:
		return "DiscoveryStarted"
	case OpStateDiscoveryRunning:
		return "DiscoveryRunning"
	case OpStateDiscoveryCompleted:
		return "DiscoveryCompleted"
	case OpStateWaitingForResponse:
		return "WaitingForResponse"
	case OpStateOperationQueued:
		return "OperationQueued"
	case OpStateOperationExecuting:
		return "OperationExecuting"
	case OpStateOperationCompleted:
		return "OperationCompleted"
	case OpStateOperationFailed:
		return "OperationFailed"
	case OpStateCancelled:
		return "Cancelled"
	case OpStateTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s ends a workflow (no further transitions
// expected without starting a new operation).
func (s OpState) IsTerminal() bool {
	switch s {
	case OpStateDiscoveryCompleted, OpStateOperationCompleted, OpStateOperationFailed, OpStateCancelled, OpStateTimedOut:
		return true
	default:
		return false
	}
}

// CapabilityFlags mirrors the device-reported RDE capability bitmap.
type CapabilityFlags uint8

const (
	CapabilityNone               CapabilityFlags = 0
	CapabilityAtomicResourceRead CapabilityFlags = 1 << 0
	CapabilityExpandSupport      CapabilityFlags = 1 << 1
	CapabilityBejV1_1Support     CapabilityFlags = 1 << 2
)

func (f CapabilityFlags) Has(flag CapabilityFlags) bool { return f&flag != 0 }

// Session owns one device's RDE state: its negotiated parameters, its
// resource registry, and its current device/op state.
type Session struct {
	mu sync.RWMutex

	TID  uint8
	EID  uint8
	UUID string

	DeviceState DeviceState
	OpState     OpState

	MCConcurrency      uint8
	MCFeatureBits      uint32
	Capabilities       CapabilityFlags
	DeviceConfigSig    uint32
	ProviderName       string
	DeviceMaxChunkSize uint32

	Registry *ResourceRegistry

	logger *logging.Logger
}

// NewSession constructs a fresh Session in NotReady/Idle state.
func NewSession(tid, eid uint8, uuid string, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Default()
	}
	return &Session{
		TID:         tid,
		EID:         eid,
		UUID:        uuid,
		DeviceState: DeviceStateNotReady,
		OpState:     OpStateIdle,
		Registry:    NewResourceRegistry(),
		logger:      logger.WithField("component", "rde").WithField("uuid", uuid),
	}
}

// SetDeviceState transitions the session's device-level state.
func (s *Session) SetDeviceState(state DeviceState) {
	s.mu.Lock()
	s.DeviceState = state
	s.mu.Unlock()
}

// SetOpState transitions the session's workflow state.
func (s *Session) SetOpState(state OpState) {
	s.mu.Lock()
	s.OpState = state
	s.mu.Unlock()
}

// GetOpState reads the session's current workflow state.
func (s *Session) GetOpState() OpState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.OpState
}

// GetDeviceState reads the session's current device-level state.
func (s *Session) GetDeviceState() DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DeviceState
}

// OperationTask tracks one in-flight StartRedfishOperation workflow.
// Exactly one active task exists per operation-id; reaching a terminal
// OpState releases whatever instance IDs it held (handled by the
// requester runtime's own scoped handles, not by this struct).
type OperationTask struct {
	OpID          uint32
	OperationType OperationType
	URI           string
	ResourceID    string
	ResourceIDNum uint32
	PayloadFormat PayloadFormat
	SessionID     uint32
	TID           uint8
	DBusPath      string

	mu    sync.RWMutex
	state OpState
}

// OperationType is the Redfish-level verb a StartRedfishOperation names.
type OperationType int

const (
	OperationRead OperationType = iota
	OperationUpdate
	OperationCreate
	OperationDelete
	OperationReplace
	OperationAction
	OperationHead
)

// PayloadFormat distinguishes a client-supplied JSON payload from one
// already BEJ-encoded.
type PayloadFormat int

const (
	PayloadFormatJSON PayloadFormat = iota
	PayloadFormatBEJ
)

// NewOperationTask constructs a task in OperationQueued state.
func NewOperationTask(opID uint32, opType OperationType, uri, resourceID string, resourceIDNum uint32, format PayloadFormat, sessionID uint32, tid uint8, dbusPath string) *OperationTask {
	return &OperationTask{
		OpID:          opID,
		OperationType: opType,
		URI:           uri,
		ResourceID:    resourceID,
		ResourceIDNum: resourceIDNum,
		PayloadFormat: format,
		SessionID:     sessionID,
		TID:           tid,
		DBusPath:      dbusPath,
		state:         OpStateOperationQueued,
	}
}

// State reads the task's current OpState.
func (t *OperationTask) State() OpState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SetState transitions the task's OpState.
func (t *OperationTask) SetState(s OpState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Cancel flips the task's own state to Cancelled. It does not by itself
// touch the device: callers wanting the device-side resources an
// in-flight operation holds released should call Engine.CancelOperation,
// which issues RDEOperationComplete before marking the task cancelled.
func (t *OperationTask) Cancel() {
	t.SetState(OpStateCancelled)
}
