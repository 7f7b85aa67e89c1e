// Package eventpump implements the critical-event FIFO and the
// PollForPlatformEventMessage multipart state machine that drains it:
// Idle -> Polling -> AwaitingResponse -> Reassembling -> Idle, with CRC32
// validation on the terminal chunk and a single in-flight poll at a time.
//
// A single goroutine, woken only by a ticker, drives one blocking round
// trip at a time rather than fanning out. An external push (a D-Bus
// PldmMessagePollEvent signal) reaches the pump through Enqueue, which
// adds to the FIFO without waking the goroutine; the event is polled on
// a later tick.
package eventpump

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/openbmc/pldm-sub002/internal/logging"
	"github.com/openbmc/pldm-sub002/internal/metrics"
	"github.com/openbmc/pldm-sub002/internal/multipart"
	"github.com/openbmc/pldm-sub002/internal/pldmerr"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

// PlatformType is the PLDM type code for Platform Monitoring and Control
// commands, which PollForPlatformEventMessage belongs to.
const PlatformType uint8 = 2

// PollForPlatformEventMessageCommand is the PLDM command code.
const PollForPlatformEventMessageCommand uint8 = 0x0a

// State is the pump's current phase.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateAwaitingResponse
	StateReassembling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePolling:
		return "Polling"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateReassembling:
		return "Reassembling"
	default:
		return "Unknown"
	}
}

// ErrQueueOverflow is returned by Enqueue when the critical-event FIFO is
// at capacity; existing entries are left untouched.
var ErrQueueOverflow = fmt.Errorf("eventpump: critical event queue overflow")

// eventKey dedups (tid, event_id) pairs in the FIFO.
type eventKey struct {
	tid     uint8
	eventID uint32
}

// Sender is the subset of requester.Runner the pump needs; kept narrow so
// tests can supply a fake without depending on internal/mctp.
type Sender interface {
	SendAndRecv(ctx context.Context, tid uint8, typ, command uint8, body []byte) ([]byte, error)
}

// Handler processes a fully reassembled event payload.
type Handler func(tid uint8, eventClass uint8, payload []byte)

// Pump drains the critical-event queue against a Sender, one poll
// sequence at a time.
type Pump struct {
	sender  Sender
	logger  *logging.Logger
	metrics *metrics.Metrics
	cap     int

	mu       sync.Mutex
	queue    []eventKey
	queued   map[eventKey]bool
	state    State
	handlers map[uint8]Handler

	pollInterval time.Duration
}

// Config configures a Pump.
type Config struct {
	Capacity     int
	PollInterval time.Duration
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
}

// New constructs a Pump over sender.
func New(sender Sender, cfg Config) *Pump {
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.DefaultCritEventQueueCap
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Pump{
		sender:       sender,
		logger:       cfg.Logger.WithField("component", "eventpump"),
		metrics:      cfg.Metrics,
		cap:          cfg.Capacity,
		queued:       make(map[eventKey]bool),
		handlers:     make(map[uint8]Handler),
		pollInterval: cfg.PollInterval,
	}
}

// RegisterHandler associates eventClass with a Handler invoked once its
// payload has been fully reassembled and checksum-validated.
func (p *Pump) RegisterHandler(eventClass uint8, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventClass] = h
}

// Enqueue adds (tid, eventID) to the critical-event FIFO, deduplicating
// against entries already queued.
func (p *Pump) Enqueue(tid uint8, eventID uint32) error {
	key := eventKey{tid: tid, eventID: eventID}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queued[key] {
		return nil
	}
	if len(p.queue) >= p.cap {
		return ErrQueueOverflow
	}
	p.queue = append(p.queue, key)
	p.queued[key] = true
	return nil
}

// State reports the pump's current phase.
func (p *Pump) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pump) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pump) popHead() (eventKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return eventKey{}, false
	}
	key := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.queued, key)
	return key, true
}

// Run drives the pump until ctx is cancelled: on each tick, if idle and
// the queue is non-empty, it pops the head and runs one full poll
// sequence to completion (or timeout) before ticking again.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.State() != StateIdle {
				continue
			}
			key, ok := p.popHead()
			if !ok {
				continue
			}
			p.setState(StatePolling)
			p.pollSequence(ctx, key.tid, key.eventID)
			p.setState(StateIdle)
		}
	}
}

// pollSequence drives a single PollForPlatformEventMessage multipart
// round trip from GetFirstPart through dispatch-and-acknowledge.
func (p *Pump) pollSequence(ctx context.Context, tid uint8, eventID uint32) {
	r := multipart.NewReassembler()
	op := wire.OperationFlagGetFirstPart
	transferHandle := eventID
	eventClass := uint8(0)

	p.setState(StateAwaitingResponse)
	for {
		reqBody := encodeRequest(op, transferHandle, eventID)
		respBody, err := p.sender.SendAndRecv(ctx, tid, PlatformType, PollForPlatformEventMessageCommand, reqBody)
		if err != nil {
			p.logger.Debug("poll sequence aborted", "tid", tid, "event_id", eventID, "error", err)
			return
		}
		resp, err := decodeResponse(respBody)
		if err != nil {
			p.logger.Debug("dropping undecodable poll response", "error", err)
			return
		}
		if resp.transferFlag == wire.TransferFlagAckCompletion {
			return // terminus acknowledged, nothing further to do
		}
		if p.metrics != nil {
			p.metrics.RecordMultipartChunkReceived()
		}
		eventClass = resp.eventClass
		p.setState(StateReassembling)
		complete, err := r.Accept(resp.transferFlag, resp.payload, resp.checksum)
		if err != nil {
			p.logger.Debug("discarding event payload", "tid", tid, "event_id", eventID, "error", pldmerr.Wrap("eventpump.pollSequence", pldmerr.CodeChecksumMismatch, err))
			return
		}
		if complete {
			p.dispatch(tid, eventClass, r.Bytes())
			p.acknowledge(ctx, tid, eventID)
			return
		}
		transferHandle = resp.nextTransferHandle
		op = wire.OperationFlagGetNextPart
		p.setState(StateAwaitingResponse)
	}
}

func (p *Pump) acknowledge(ctx context.Context, tid uint8, eventID uint32) {
	reqBody := encodeRequest(wire.OperationFlagAcknowledgementOnly, 0, eventID)
	if _, err := p.sender.SendAndRecv(ctx, tid, PlatformType, PollForPlatformEventMessageCommand, reqBody); err != nil {
		p.logger.Debug("acknowledgement failed", "tid", tid, "event_id", eventID, "error", err)
	}
}

func (p *Pump) dispatch(tid uint8, eventClass uint8, payload []byte) {
	p.mu.Lock()
	h, ok := p.handlers[eventClass]
	p.mu.Unlock()
	if !ok {
		p.logger.Debug("no handler registered for event class", "tid", tid, "event_class", eventClass)
		return
	}
	h(tid, eventClass, payload)
}
