package mctp

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/openbmc/pldm-sub002/internal/logging"
)

// afMCTPAddressFamily is AF_MCTP (Linux 5.15+, net/mctp.h). Not exposed by
// golang.org/x/sys/unix as of this module's dependency pin, so it is
// defined locally; the kernel ABI is stable across releases.
const afMCTPAddressFamily = 45

// sockaddrMCTP mirrors struct sockaddr_mctp: network id, endpoint address,
// message type, and the two smctp_tag bits (tag/owner).
type sockaddrMCTP struct {
	Family  uint16
	Network int32
	Addr    uint8 // endpoint id
	Type    uint8
	Tag     uint8
	_       [3]byte // pad to the kernel's struct layout
}

// afMCTPTransport speaks directly to the kernel AF_MCTP socket family
// instead of going through mctp-demux-daemon. Preferred when the host
// kernel is new enough (net/mctp.h present) since it avoids the demux
// daemon's own EID bookkeeping and lets this layer own tag allocation
// directly, but the wire-level framing PLDM sees is identical either way.
type afMCTPTransport struct {
	fd     int
	mu     sync.Mutex
	ids    *identityMap
	logger *logging.Logger
}

func newAFMCTPTransport(logger *logging.Logger) (Transport, error) {
	fd, err := unix.Socket(afMCTPAddressFamily, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("mctp: af_mctp socket: %w", err)
	}
	sa := sockaddrMCTP{
		Family: afMCTPAddressFamily,
		Type:   MCTPMessageTypeByte,
	}
	if err := bindMCTP(fd, &sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mctp: af_mctp bind: %w", err)
	}
	t := &afMCTPTransport{
		fd:     fd,
		ids:    newIdentityMap(),
		logger: logger.WithField("backend", "af_mctp"),
	}
	t.logger.Debug("af_mctp transport bound")
	return t, nil
}

// bindMCTP issues the raw bind(2) with a sockaddr_mctp; golang.org/x/sys/unix
// has no typed wrapper for AF_MCTP so this goes through unix.Syscall directly.
func bindMCTP(fd int, sa *sockaddrMCTP) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(sa)), unsafe.Sizeof(*sa))
	if errno != 0 {
		return errno
	}
	return nil
}

func (t *afMCTPTransport) Send(tid TID, payload []byte) error {
	eid, err := t.ids.toEID(tid)
	if err != nil {
		return fmt.Errorf("mctp: send: unmapped tid %d", tid)
	}
	sa := sockaddrMCTP{
		Family: afMCTPAddressFamily,
		Addr:   eid,
		Type:   MCTPMessageTypeByte,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _, errno := unix.Syscall6(unix.SYS_SENDTO, uintptr(t.fd),
		uintptr(unsafe.Pointer(&payload[0])), uintptr(len(payload)), 0,
		uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa))
	if errno != 0 {
		return fmt.Errorf("mctp: sendto: %w", errno)
	}
	return nil
}

func (t *afMCTPTransport) Recv() (TID, []byte, error) {
	buf := make([]byte, 4096)
	var sa sockaddrMCTP
	salen := unsafe.Sizeof(sa)
	n, _, errno := unix.Syscall6(unix.SYS_RECVFROM, uintptr(t.fd),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), 0,
		uintptr(unsafe.Pointer(&sa)), uintptr(unsafe.Pointer(&salen)))
	if errno != 0 {
		return 0, nil, fmt.Errorf("mctp: recvfrom: %w", errno)
	}
	tid, err := t.ids.toTID(sa.Addr)
	if err != nil {
		tid = sa.Addr
	}
	return tid, buf[:n], nil
}

func (t *afMCTPTransport) EventFD() int { return t.fd }

func (t *afMCTPTransport) MapTID(eid EID) (TID, error) { return t.ids.mapTID(eid) }
func (t *afMCTPTransport) UnmapTID(tid TID)            { t.ids.unmapTID(tid) }
func (t *afMCTPTransport) ToEID(tid TID) (EID, error)  { return t.ids.toEID(tid) }
func (t *afMCTPTransport) ToTID(eid EID) (TID, error)  { return t.ids.toTID(eid) }

func (t *afMCTPTransport) Close() error {
	return unix.Close(t.fd)
}
