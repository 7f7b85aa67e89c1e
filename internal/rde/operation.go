package rde

import (
	"context"
	"fmt"
	"sync"

	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/openbmc/pldm-sub002/internal/metrics"
	"github.com/openbmc/pldm-sub002/internal/multipart"
	"github.com/openbmc/pldm-sub002/internal/pldmerr"
)

// BEJCodec is the narrow translation surface the operation workflow
// depends on; internal/bej implements it against a resource's schema
// dictionary plus the shared annotation dictionary (the operation workflow).
type BEJCodec interface {
	EncodeJSONToBEJ(schemaDict, annotationDict []byte, payload string) ([]byte, error)
	DecodeBEJToJSON(schemaDict, annotationDict []byte, payload []byte) (string, error)
}

// DictionaryLoader loads previously-persisted dictionary bytes back into
// memory for BEJ translation during an operation.
type DictionaryLoader interface {
	LoadDictionary(uuid string, resourceID uint32) ([]byte, error)
	LoadAnnotationDictionary(uuid string) ([]byte, error)
}

// Sink is the narrow D-Bus surface the operation workflow emits
// TaskUpdated through and pushes resource property changes over (the
// command surface); internal/dbussink implements it.
type Sink interface {
	UpdateProperty(path, iface, prop string, value any) error
	EmitSignal(path, iface, name string, args map[string]any) error
}

const (
	taskIface      = "xyz.openbmc_project.RDE.OperationTask"
	taskPathPrefix = "/xyz/openbmc_project/rde/task"
)

// StartRedfishOperationRequest carries the parameters the operation workflow
// StartRedfishOperation names.
type StartRedfishOperationRequest struct {
	OpID      uint32
	Type      OperationType
	URI       string
	Payload   string
	Format    PayloadFormat
	Encoding  string
	SessionID uint32
}

// Engine owns the per-device RDE sessions and drives both the discovery
// and operation workflows against them.
type Engine struct {
	sender  Sender
	store   DictionaryStore
	loader  DictionaryLoader
	codec   BEJCodec
	sink    Sink
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[uint8]*Session // by tid
	tasks    map[uint32]*OperationTask
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Store   DictionaryStore
	Loader  DictionaryLoader
	Codec   BEJCodec
	Sink    Sink
	Metrics *metrics.Metrics
}

// NewEngine constructs an Engine.
func NewEngine(sender Sender, cfg EngineConfig) *Engine {
	return &Engine{
		sender:   sender,
		store:    cfg.Store,
		loader:   cfg.Loader,
		codec:    cfg.Codec,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		sessions: make(map[uint8]*Session),
		tasks:    make(map[uint32]*OperationTask),
	}
}

// Metrics returns the counters this engine was constructed with, or nil
// if none were configured; rde.Discover takes the same pointer so
// discovery-phase multipart activity lands in the same counters as
// operation-phase activity.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Session returns the session tracked for tid, if any.
func (e *Engine) Session(tid uint8) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[tid]
	return s, ok
}

// RegisterSession adopts sess as the engine's tracked session for its TID,
// called once DiscoveryComplete has handed a fresh Session to the engine.
func (e *Engine) RegisterSession(sess *Session) {
	e.mu.Lock()
	e.sessions[sess.TID] = sess
	e.mu.Unlock()
}

// OperationStatus reports an in-flight or completed task's state, the
// read-only query original_source/rde/operation_session.cpp exposes as
// RDEOperationStatus (not present in the distilled command list).
func (e *Engine) OperationStatus(opID uint32) (OpState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tasks[opID]
	if !ok {
		return 0, false
	}
	return t.State(), true
}

// EnumerateOperations lists every tracked operation id and its current
// state (RDEOperationEnumerate,  §4.7 supplement).
func (e *Engine) EnumerateOperations() map[uint32]OpState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[uint32]OpState, len(e.tasks))
	for id, t := range e.tasks {
		out[id] = t.State()
	}
	return out
}

// StartRedfishOperation runs the Init -> (Send/Receive*) -> Complete
// workflow against sess for req (the operation workflow).
func (e *Engine) StartRedfishOperation(ctx context.Context, sess *Session, req StartRedfishOperationRequest) error {
	resourceID, ok := sess.Registry.ResourceIDFromURI(req.URI)
	if !ok {
		return pldmerr.New("rde.StartRedfishOperation", pldmerr.CodeStateViolation, fmt.Sprintf("no resource registered for uri %s", req.URI))
	}

	task := NewOperationTask(req.OpID, req.Type, req.URI, fmt.Sprintf("%d", resourceID), resourceID, req.Format, req.SessionID, sess.TID, e.taskPath(req.OpID))
	e.mu.Lock()
	e.tasks[req.OpID] = task
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordRDEOperationStarted()
	}

	task.SetState(OpStateOperationExecuting)
	sess.SetOpState(OpStateOperationExecuting)
	sess.SetDeviceState(DeviceStateBusy)
	defer sess.SetDeviceState(DeviceStateOperational)

	payload, multipartOut, err := e.buildInitPayload(sess, resourceID, req)
	if err != nil {
		return e.fail(task, sess, err)
	}

	initResp, err := e.sendInit(ctx, sess, payload)
	if err != nil {
		return e.fail(task, sess, err)
	}

	var resultJSON string
	if initResp.resultTransferHandle == 0 {
		resultJSON, err = e.decodeResult(sess, resourceID, initResp.inlinePayload)
		if err != nil {
			return e.fail(task, sess, err)
		}
	} else {
		task.SetState(OpStateWaitingForResponse)
		data, err := multipartReceive(ctx, e.sender, sess.TID, initResp.resultTransferHandle, e.metrics)
		if err != nil {
			return e.fail(task, sess, err)
		}
		resultJSON, err = e.decodeResult(sess, resourceID, data)
		if err != nil {
			return e.fail(task, sess, err)
		}
	}

	if multipartOut != nil {
		if err := e.multipartSend(ctx, sess.TID, sess.DeviceMaxChunkSize, multipartOut); err != nil {
			return e.fail(task, sess, err)
		}
	}

	if task.State() == OpStateCancelled {
		// CancelOperation already issued RDEOperationComplete and moved
		// the task to its terminal state; don't send a second one or
		// clobber Cancelled with Completed.
		return nil
	}

	if _, err := e.sender.SendAndRecv(ctx, sess.TID, RDEType, CmdRDEOperationComplete, encodeOperationCompleteRequest(resourceID, req.OpID)); err != nil {
		sess.logger.Warn("RDEOperationComplete failed", "op_id", req.OpID, "error", err)
	}

	task.SetState(OpStateOperationCompleted)
	sess.SetOpState(OpStateIdle)
	if e.metrics != nil {
		e.metrics.RecordRDEOperationCompleted()
	}
	e.updateResourceProperty(task, req, resultJSON)
	e.emitTaskUpdated(task, resultJSON, OpStateOperationCompleted)
	return nil
}

// CancelOperation aborts an in-flight operation from outside its own
// StartRedfishOperation goroutine: it issues RDEOperationComplete against
// the device so whatever resources RDEOperationInit reserved are released,
// then marks the task Cancelled. Calling it after the operation already
// reached a terminal state is a no-op.
func (e *Engine) CancelOperation(ctx context.Context, opID uint32) error {
	e.mu.RLock()
	task, ok := e.tasks[opID]
	e.mu.RUnlock()
	if !ok {
		return pldmerr.New("rde.CancelOperation", pldmerr.CodeStateViolation, fmt.Sprintf("no operation tracked for op id %d", opID))
	}
	if task.State().IsTerminal() {
		return nil
	}

	if _, err := e.sender.SendAndRecv(ctx, task.TID, RDEType, CmdRDEOperationComplete, encodeOperationCompleteRequest(task.ResourceIDNum, opID)); err != nil {
		return pldmerr.Wrap("rde.RDEOperationComplete", pldmerr.CodeTransportFailure, err)
	}

	task.Cancel()
	if sess, ok := e.Session(task.TID); ok {
		sess.SetOpState(OpStateCancelled)
	}
	if e.metrics != nil {
		e.metrics.RecordRDEOperationFailed()
	}
	e.emitTaskUpdated(task, "{}", OpStateCancelled)
	return nil
}

// updateResourceProperty pushes a PropertiesChanged-style update for
// write operations (Update/Create/Delete/Replace/Action leave the
// resource's own properties changed; Read and Head don't).
func (e *Engine) updateResourceProperty(task *OperationTask, req StartRedfishOperationRequest, resultJSON string) {
	if e.sink == nil || req.Type == OperationRead || req.Type == OperationHead {
		return
	}
	if err := e.sink.UpdateProperty(task.DBusPath, taskIface, "Payload", resultJSON); err != nil {
		// best-effort: a failed property push must not mask the
		// operation's own outcome.
		_ = err
	}
}

func (e *Engine) taskPath(opID uint32) string {
	return fmt.Sprintf("%s/%d", taskPathPrefix, opID)
}

func (e *Engine) fail(task *OperationTask, sess *Session, cause error) error {
	task.SetState(OpStateOperationFailed)
	sess.SetOpState(OpStateOperationFailed)
	if e.metrics != nil {
		e.metrics.RecordRDEOperationFailed()
	}
	e.emitTaskUpdated(task, "{}", OpStateOperationFailed)
	return cause
}

func (e *Engine) emitTaskUpdated(task *OperationTask, payload string, returnCode OpState) {
	if e.sink == nil {
		return
	}
	args := map[string]any{"payload": payload, "return_code": uint16(returnCode)}
	if err := e.sink.EmitSignal(task.DBusPath, taskIface, "TaskUpdated", args); err != nil {
		// best-effort: a failed signal emission must not mask the
		// operation's own outcome.
		_ = err
	}
}

func (e *Engine) buildInitPayload(sess *Session, resourceID uint32, req StartRedfishOperationRequest) (payload []byte, multipartOut []byte, err error) {
	if req.Type == OperationRead || req.Payload == "" {
		return nil, nil, nil
	}

	bej := []byte(req.Payload)
	if req.Format == PayloadFormatJSON && e.codec != nil {
		schemaDict, annotationDict, lerr := e.loadDictionaries(sess.UUID, resourceID)
		if lerr != nil {
			return nil, nil, lerr
		}
		bej, err = e.codec.EncodeJSONToBEJ(schemaDict, annotationDict, req.Payload)
		if err != nil {
			return nil, nil, fmt.Errorf("rde: encoding payload to bej: %w", err)
		}
	}

	inlineMax := int(sess.DeviceMaxChunkSize) - constants.RDEOperationInitOverhead
	if inlineMax < 0 {
		inlineMax = 0
	}
	if len(bej) <= inlineMax {
		return encodeOperationInitRequest(resourceID, req.Type, true, bej), nil, nil
	}
	return encodeOperationInitRequest(resourceID, req.Type, true, nil), bej, nil
}

func (e *Engine) sendInit(ctx context.Context, sess *Session, payload []byte) (operationInitResponse, error) {
	resp, err := e.sender.SendAndRecv(ctx, sess.TID, RDEType, CmdRDEOperationInit, payload)
	if err != nil {
		return operationInitResponse{}, pldmerr.Wrap("rde.RDEOperationInit", pldmerr.CodeTransportFailure, err)
	}
	return decodeOperationInitResponse(resp)
}

func (e *Engine) decodeResult(sess *Session, resourceID uint32, bej []byte) (string, error) {
	if e.codec == nil {
		return string(bej), nil
	}
	schemaDict, annotationDict, err := e.loadDictionaries(sess.UUID, resourceID)
	if err != nil {
		return "", err
	}
	return e.codec.DecodeBEJToJSON(schemaDict, annotationDict, bej)
}

func (e *Engine) loadDictionaries(uuid string, resourceID uint32) (schemaDict, annotationDict []byte, err error) {
	if e.loader == nil {
		return nil, nil, fmt.Errorf("rde: no dictionary loader configured")
	}
	schemaDict, err = e.loader.LoadDictionary(uuid, resourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("rde: loading schema dictionary: %w", err)
	}
	annotationDict, err = e.loader.LoadAnnotationDictionary(uuid)
	if err != nil {
		return nil, nil, fmt.Errorf("rde: loading annotation dictionary: %w", err)
	}
	return schemaDict, annotationDict, nil
}

// multipartSend drives the shared chunked-send state machine (the design
// §4.7.4): slice payload into chunks bounded by the negotiated
// device_max_chunk_size (falling back to the local default if the device
// never reported one), sending Start/Middle/End/StartAndEnd in order and
// advancing the transfer handle the device returns each round trip.
func (e *Engine) multipartSend(ctx context.Context, tid uint8, deviceMaxChunkSize uint32, payload []byte) error {
	chunkSize := int(deviceMaxChunkSize)
	if chunkSize <= 0 {
		chunkSize = constants.DefaultMCMaxChunkSize
	}
	chunker := multipart.NewChunker(payload, chunkSize)
	handle := uint32(0)
	checksum := multipart.CRC32(payload)

	for {
		flag, chunk, ok := chunker.Next()
		if !ok {
			return nil
		}
		req := encodeMultipartSendRequest(handle, flag, chunk, checksum)
		resp, err := e.sender.SendAndRecv(ctx, tid, RDEType, CmdRDEMultipartSend, req)
		if err != nil {
			return pldmerr.Wrap("rde.RDEMultipartSend", pldmerr.CodeTransportFailure, err)
		}
		if e.metrics != nil {
			e.metrics.RecordMultipartChunkSent()
		}
		nextHandle, err := decodeMultipartSendResponse(resp)
		if err != nil {
			return pldmerr.Wrap("rde.RDEMultipartSend", pldmerr.CodeDecodeError, err)
		}
		handle = nextHandle
	}
}
