package mctp

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/openbmc/pldm-sub002/internal/logging"
)

// demuxTransport talks to mctp-demux-daemon over its unix-domain socket.
// The daemon prefixes every frame with the MCTP message type byte and
// delivers broadcast traffic to every listener, hence the identity
// EID==TID convention: the daemon has no notion of PLDM terminus ids, so
// this layer is what makes one up.
type demuxTransport struct {
	fd     int
	mu     sync.Mutex
	ids    *identityMap
	logger *logging.Logger
}

func newDemuxTransport(socketPath string, logger *logging.Logger) (Transport, error) {
	if socketPath == "" {
		socketPath = "\x00mctp-demux"
	}
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, fmt.Errorf("mctp: socket: %w", err)
	}
	sa := &unix.SockaddrUnix{Name: socketPath}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mctp: connect %q: %w", socketPath, err)
	}
	// Register this fd as a PLDM (type 1) listener per the demux wire
	// protocol: a single type-tag byte announces interest.
	if _, err := unix.Write(fd, []byte{MCTPMessageTypeByte}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mctp: register type: %w", err)
	}
	t := &demuxTransport{
		fd:     fd,
		ids:    newIdentityMap(),
		logger: logger.WithField("backend", "demux"),
	}
	t.logger.Debug("demux transport connected", "socket", socketPath)
	return t, nil
}

// MCTPMessageTypeByte is the MCTP message type for PLDM (the same value as
// wire.MCTPMessageType): it registers the demux fd, tags each outbound
// demux frame, and is the AF_MCTP socket address's message type.
const MCTPMessageTypeByte = 0x01

func (t *demuxTransport) Send(tid TID, payload []byte) error {
	eid, err := t.ids.toEID(tid)
	if err != nil {
		return fmt.Errorf("mctp: send: unmapped tid %d", tid)
	}
	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, eid, MCTPMessageTypeByte)
	frame = append(frame, payload...)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = unix.Write(t.fd, frame)
	if err != nil {
		return fmt.Errorf("mctp: write: %w", err)
	}
	return nil
}

func (t *demuxTransport) Recv() (TID, []byte, error) {
	buf := make([]byte, 4096)
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		return 0, nil, fmt.Errorf("mctp: read: %w", err)
	}
	if n < 2 {
		return 0, nil, fmt.Errorf("mctp: short frame (%d bytes)", n)
	}
	eid := buf[0]
	tid, err := t.ids.toTID(eid)
	if err != nil {
		// Unmapped sender: fall back to the identity convention rather
		// than dropping the frame, mirroring GetTID's default before an
		// explicit SetTID has run.
		tid = eid
	}
	return tid, buf[2:n], nil
}

func (t *demuxTransport) EventFD() int { return t.fd }

func (t *demuxTransport) MapTID(eid EID) (TID, error) { return t.ids.mapTID(eid) }
func (t *demuxTransport) UnmapTID(tid TID)            { t.ids.unmapTID(tid) }
func (t *demuxTransport) ToEID(tid TID) (EID, error)  { return t.ids.toEID(tid) }
func (t *demuxTransport) ToTID(eid EID) (TID, error)  { return t.ids.toTID(eid) }

func (t *demuxTransport) Close() error {
	return unix.Close(t.fd)
}
