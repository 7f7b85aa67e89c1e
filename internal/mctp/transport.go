// Package mctp provides the thin transport adapter over MCTP: a Send/Recv
// pair, an event descriptor for integration with a host event loop, and the
// EID<->TID identity map that lets mctp-demux-daemon's broadcast responses
// be routed to the right listener.
//
// A small interface (Send, Recv, EventFD, the EID<->TID lookups, Close)
// stands between the core and a raw socket handle, with two concrete
// backends selected at construction time.
package mctp

import (
	"fmt"
	"sync"

	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/openbmc/pldm-sub002/internal/logging"
)

// TID is a PLDM terminus id; EID is an MCTP endpoint id. Both are aliases
// of uint8, so the compiler does not tell them apart; the names only label
// which id a parameter holds.
type TID = uint8
type EID = uint8

// ErrNotFound is returned by EID<->TID lookups that miss.
var ErrNotFound = fmt.Errorf("mctp: not found")

// Transport is the boundary the rest of the core depends on. Backend is an AF_MCTP
// or mctp-demux socket; initialization installs the identity EID==TID map
// over the valid EID range.
type Transport interface {
	// Send transmits bytes to the given terminus.
	Send(tid TID, payload []byte) error
	// Recv returns the next inbound message, non-blocking; callers should
	// drive this from the fd returned by EventFD.
	Recv() (TID, []byte, error)
	// EventFD integrates with the host event loop (epoll/select-able fd).
	EventFD() int
	// MapTID installs an EID->TID mapping, returning the TID.
	MapTID(eid EID) (TID, error)
	// UnmapTID removes a TID mapping.
	UnmapTID(tid TID)
	// ToEID/ToTID are inverse lookups.
	ToEID(tid TID) (EID, error)
	ToTID(eid EID) (TID, error)
	// Close releases the backend's resources.
	Close() error
}

// Backend selects which socket family backs a Transport.
type Backend int

const (
	BackendMCTPDemux Backend = iota
	BackendAFMCTP
)

// identityMap is the EID<->TID table shared by both backends: the
// OpenBMC ecosystem convention is EID==TID, pre-populated over the valid
// EID range so a demux daemon's broadcast responses are routable.
type identityMap struct {
	mu      sync.RWMutex
	eidToTID map[EID]TID
	tidToEID map[TID]EID
}

func newIdentityMap() *identityMap {
	m := &identityMap{
		eidToTID: make(map[EID]TID),
		tidToEID: make(map[TID]EID),
	}
	for eid := constants.MinValidEID; eid <= constants.MaxValidEID; eid++ {
		m.eidToTID[eid] = eid
		m.tidToEID[eid] = eid
	}
	return m
}

func (m *identityMap) mapTID(eid EID) (TID, error) {
	if eid < constants.MinValidEID || eid > constants.MaxValidEID {
		return 0, fmt.Errorf("mctp: eid %d out of valid range [%d,%d]", eid, constants.MinValidEID, constants.MaxValidEID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tid := eid
	m.eidToTID[eid] = tid
	m.tidToEID[tid] = eid
	return tid, nil
}

func (m *identityMap) unmapTID(tid TID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if eid, ok := m.tidToEID[tid]; ok {
		delete(m.tidToEID, tid)
		delete(m.eidToTID, eid)
	}
}

func (m *identityMap) toEID(tid TID) (EID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eid, ok := m.tidToEID[tid]
	if !ok {
		return 0, ErrNotFound
	}
	return eid, nil
}

func (m *identityMap) toTID(eid EID) (TID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tid, ok := m.eidToTID[eid]
	if !ok {
		return 0, ErrNotFound
	}
	return tid, nil
}

// New constructs a Transport over the requested backend. On backend init
// failure the caller should treat the adapter as fatal: an agent cannot
// discover or talk to any terminus without it.
func New(backend Backend, socketPath string) (Transport, error) {
	logger := logging.Default().WithField("component", "mctp")
	switch backend {
	case BackendMCTPDemux:
		return newDemuxTransport(socketPath, logger)
	case BackendAFMCTP:
		return newAFMCTPTransport(logger)
	default:
		return nil, fmt.Errorf("mctp: unknown backend %d", backend)
	}
}
