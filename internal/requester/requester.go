// Package requester implements the async request/response engine that
// sits on top of internal/mctp: it allocates an instance id, sends a
// request, and correlates the matching response (or times out and
// retries) without blocking the caller's goroutine on the wire.
//
// One outstanding operation is tracked per correlation key
// (tid, instance_id, type, command), registered before the request is
// sent and matched against whatever internal/mctp's Recv loop hands
// back.
package requester

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/openbmc/pldm-sub002/internal/instanceid"
	"github.com/openbmc/pldm-sub002/internal/logging"
	"github.com/openbmc/pldm-sub002/internal/mctp"
	"github.com/openbmc/pldm-sub002/internal/metrics"
	"github.com/openbmc/pldm-sub002/internal/pldmerr"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

// pendingRequest is an outstanding request awaiting its response.
type pendingRequest struct {
	header wire.Header
	respCh chan []byte
}

// Runner owns the instance-id pools, the outstanding-request table, and
// the single goroutine draining a Transport's inbound messages.
type Runner struct {
	transport mctp.Transport
	ids       *instanceid.Registry
	logger    *logging.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	pending map[pendingKey]*pendingRequest

	retries         int
	responseTimeout time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

type pendingKey struct {
	tid        uint8
	instanceID uint8
	typ        uint8
	command    uint8
}

// Config configures a Runner's retry policy.
type Config struct {
	Retries         int
	ResponseTimeout time.Duration
	Logger          *logging.Logger
	Metrics         *metrics.Metrics
}

// DefaultConfig returns the documented retry/timeout policy.
func DefaultConfig() Config {
	return Config{
		Retries:         constants.DefaultRetries,
		ResponseTimeout: constants.DefaultResponseTimeout,
		Logger:          logging.Default(),
	}
}

// NewRunner starts a Runner pumping transport's inbound messages into the
// correlation table. Call Close to stop the pump.
func NewRunner(transport mctp.Transport, cfg Config) *Runner {
	if cfg.Retries <= 0 {
		cfg.Retries = constants.DefaultRetries
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = constants.DefaultResponseTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		transport:       transport,
		ids:             instanceid.NewRegistry(),
		logger:          cfg.Logger.WithField("component", "requester"),
		metrics:         cfg.Metrics,
		pending:         make(map[pendingKey]*pendingRequest),
		retries:         cfg.Retries,
		responseTimeout: cfg.ResponseTimeout,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	go r.pump(ctx)
	return r
}

// pump is the single reader goroutine draining transport.Recv and routing
// each inbound frame to its correlated pendingRequest, or dropping it as
// stale if no registration matches: unmatched responses are silently
// discarded, not errors.
func (r *Runner) pump(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		tid, data, err := r.transport.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			r.logger.Debug("recv error", "error", err)
			continue
		}
		hdr, err := wire.Decode(data)
		if err != nil {
			r.logger.Debug("dropping undecodable frame", "error", err)
			continue
		}
		if !hdr.IsResponse() {
			continue // requests inbound from a terminus are not this runner's concern
		}
		key := pendingKey{tid: tid, instanceID: hdr.InstanceID, typ: hdr.Type, command: hdr.Command}
		r.mu.Lock()
		pr, ok := r.pending[key]
		if ok {
			delete(r.pending, key)
		}
		r.mu.Unlock()
		if !ok {
			r.logger.Debug("dropping unmatched response", "tid", tid, "instance_id", hdr.InstanceID)
			continue
		}
		select {
		case pr.respCh <- data:
		default:
		}
	}
}

// Close stops the background pump. Outstanding SendAndRecv calls will
// observe ctx cancellation or their own timeout, whichever comes first.
func (r *Runner) Close() {
	r.cancel()
	<-r.done
}

// SendAndRecv sends reqBody (with a fresh header prepended) to tid and
// blocks until the matching response arrives, ctx is cancelled, or the
// retry budget (N_retries+1 attempts, each waited responseTimeout) is
// exhausted.
func (r *Runner) SendAndRecv(ctx context.Context, tid uint8, typ, command uint8, body []byte) ([]byte, error) {
	start := time.Now()
	handle, err := r.ids.Acquire(tid)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordNoFreeInstanceIDs()
		}
		return nil, pldmerr.NewRequest("requester.SendAndRecv", tid, 0xff, command, pldmerr.CodeNoFreeInstanceIDs, err.Error())
	}
	defer handle.Release()

	hdr := wire.Header{RequestBit: true, InstanceID: handle.ID(), Type: typ, Command: command}
	hdrBytes, err := hdr.Encode()
	if err != nil {
		return nil, pldmerr.NewRequest("requester.SendAndRecv", tid, handle.ID(), command, pldmerr.CodeEncodeError, err.Error())
	}
	frame := append(append([]byte{}, hdrBytes...), body...)

	key := pendingKey{tid: tid, instanceID: handle.ID(), typ: typ, command: command}
	respCh := make(chan []byte, 1)
	r.mu.Lock()
	r.pending[key] = &pendingRequest{header: hdr, respCh: respCh}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}()

	attempts := r.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := r.transport.Send(tid, frame); err != nil {
			if r.metrics != nil {
				r.metrics.RecordTransportError()
				r.metrics.RecordRequest(uint64(time.Since(start)), err)
			}
			return nil, pldmerr.NewRequest("requester.SendAndRecv", tid, handle.ID(), command, pldmerr.CodeTransportFailure, err.Error())
		}
		timer := time.NewTimer(r.responseTimeout)
		select {
		case data := <-respCh:
			timer.Stop()
			if r.metrics != nil {
				r.metrics.RecordRequest(uint64(time.Since(start)), nil)
			}
			return data, nil
		case <-timer.C:
			r.logger.Debug("response timeout, retrying", "tid", tid, "attempt", attempt+1)
			if r.metrics != nil {
				r.metrics.RecordTimeout()
			}
			continue
		case <-ctx.Done():
			timer.Stop()
			if r.metrics != nil {
				r.metrics.RecordRequest(uint64(time.Since(start)), ctx.Err())
			}
			return nil, pldmerr.NewRequest("requester.SendAndRecv", tid, handle.ID(), command, pldmerr.CodeTimeout, ctx.Err().Error())
		}
	}
	if r.metrics != nil {
		r.metrics.RecordRequest(uint64(time.Since(start)), fmt.Errorf("exhausted retry budget"))
	}
	return nil, pldmerr.NewRequest("requester.SendAndRecv", tid, handle.ID(), command, pldmerr.CodeTimeout, "exhausted retry budget")
}
