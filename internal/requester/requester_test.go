package requester

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/mctp"
	"github.com/openbmc/pldm-sub002/internal/metrics"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

// fakeTransport is an in-memory mctp.Transport double: Send optionally
// enqueues a canned response (or drops the frame to simulate loss),
// and Recv blocks on a channel instead of a real socket.
type fakeTransport struct {
	tid     uint8
	inbound chan []byte
	onSend  func(frame []byte) // may push a response onto inbound
}

func newFakeTransport(tid uint8) *fakeTransport {
	return &fakeTransport{tid: tid, inbound: make(chan []byte, 8)}
}

func (f *fakeTransport) Send(tid uint8, payload []byte) error {
	if f.onSend != nil {
		f.onSend(append([]byte{}, payload...))
	}
	return nil
}
func (f *fakeTransport) Recv() (uint8, []byte, error) {
	data := <-f.inbound
	return f.tid, data, nil
}
func (f *fakeTransport) EventFD() int                   { return -1 }
func (f *fakeTransport) MapTID(eid uint8) (uint8, error) { return eid, nil }
func (f *fakeTransport) UnmapTID(tid uint8)              {}
func (f *fakeTransport) ToEID(tid uint8) (uint8, error)  { return tid, nil }
func (f *fakeTransport) ToTID(eid uint8) (uint8, error)  { return eid, nil }

// Close unblocks a goroutine parked in Recv, mirroring a real socket
// backend where closing the fd makes a concurrent Read return an error.
func (f *fakeTransport) Close() error {
	close(f.inbound)
	return nil
}

var _ mctp.Transport = (*fakeTransport)(nil)

func echoResponse(reqFrame []byte) []byte {
	hdr, _ := wire.Decode(reqFrame)
	hdr.RequestBit = false
	respHdr, _ := hdr.Encode()
	return append(respHdr, 0x00) // completion code success
}

func TestSendAndRecvHappyPath(t *testing.T) {
	ft := newFakeTransport(5)
	ft.onSend = func(frame []byte) {
		ft.inbound <- echoResponse(frame)
	}
	r := NewRunner(ft, Config{Retries: 2, ResponseTimeout: 200 * time.Millisecond})
	defer r.Close()
	defer ft.Close()

	resp, err := r.SendAndRecv(context.Background(), 5, 0, 4, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, resp[3:])
}

func TestSendAndRecvRetriesOnTimeoutThenSucceeds(t *testing.T) {
	ft := newFakeTransport(5)
	attempt := 0
	ft.onSend = func(frame []byte) {
		attempt++
		if attempt < 2 {
			return // drop first attempt, force a retry
		}
		ft.inbound <- echoResponse(frame)
	}
	r := NewRunner(ft, Config{Retries: 2, ResponseTimeout: 50 * time.Millisecond})
	defer r.Close()
	defer ft.Close()

	resp, err := r.SendAndRecv(context.Background(), 5, 0, 4, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 2, attempt)
}

func TestSendAndRecvExhaustsRetryBudget(t *testing.T) {
	ft := newFakeTransport(5) // never responds
	r := NewRunner(ft, Config{Retries: 1, ResponseTimeout: 20 * time.Millisecond})
	defer r.Close()
	defer ft.Close()

	_, err := r.SendAndRecv(context.Background(), 5, 0, 4, nil)
	require.Error(t, err)
}

func TestStaleResponseIsDropped(t *testing.T) {
	ft := newFakeTransport(5)
	r := NewRunner(ft, Config{Retries: 1, ResponseTimeout: 100 * time.Millisecond})
	defer r.Close()
	defer ft.Close()

	// A response for an instance id nobody registered should be silently
	// discarded, not delivered to a waiter or panic the pump.
	stale := wire.Header{RequestBit: false, InstanceID: 17, Type: 0, Command: 4}
	staleBytes, _ := stale.Encode()
	ft.inbound <- append(staleBytes, 0x00)

	ft.onSend = func(frame []byte) { ft.inbound <- echoResponse(frame) }
	resp, err := r.SendAndRecv(context.Background(), 5, 0, 4, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestSendAndRecvRecordsRequestMetrics(t *testing.T) {
	ft := newFakeTransport(5)
	ft.onSend = func(frame []byte) { ft.inbound <- echoResponse(frame) }
	m := metrics.New()
	r := NewRunner(ft, Config{Retries: 2, ResponseTimeout: 200 * time.Millisecond, Metrics: m})
	defer r.Close()
	defer ft.Close()

	_, err := r.SendAndRecv(context.Background(), 5, 0, 4, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), m.RequestsSent.Load())
	require.Equal(t, uint64(1), m.ResponsesReceived.Load())
}

func TestSendAndRecvRecordsTimeoutMetrics(t *testing.T) {
	ft := newFakeTransport(5) // never responds
	m := metrics.New()
	r := NewRunner(ft, Config{Retries: 1, ResponseTimeout: 20 * time.Millisecond, Metrics: m})
	defer r.Close()
	defer ft.Close()

	_, err := r.SendAndRecv(context.Background(), 5, 0, 4, nil)
	require.Error(t, err)
	require.Equal(t, uint64(2), m.Timeouts.Load())
}
