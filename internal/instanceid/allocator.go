// Package instanceid implements the per-terminus 5-bit instance-id
// allocator the requester runtime uses to tag in-flight requests.
//
// Each instance id is a single free/in-use bit in a fixed-size bitmask,
// guarded by a mutex.
package instanceid

import (
	"fmt"
	"sync"

	"github.com/openbmc/pldm-sub002/internal/constants"
)

// ErrExhausted is returned when a terminus has no free instance ids left.
var ErrExhausted = fmt.Errorf("instanceid: no free instance ids")

// Pool allocates and releases instance ids (0..31) for a single terminus.
// Safe for concurrent use.
type Pool struct {
	mu   sync.Mutex
	used uint32 // bit i set => instance id i is allocated
}

// NewPool returns an empty (all-free) pool.
func NewPool() *Pool {
	return &Pool{}
}

// Alloc reserves the lowest-numbered free instance id.
func (p *Pool) Alloc() (uint8, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := uint8(0); id <= constants.MaxInstanceID; id++ {
		bit := uint32(1) << id
		if p.used&bit == 0 {
			p.used |= bit
			return id, nil
		}
	}
	return 0, ErrExhausted
}

// Free releases a previously allocated instance id. Freeing an id that
// was not outstanding is a no-op: callers may double-free during error
// unwinding and that must not panic or corrupt pool state.
func (p *Pool) Free(id uint8) {
	if id > constants.MaxInstanceID {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used &^= uint32(1) << id
}

// InUse reports the number of currently allocated instance ids, for
// metrics/diagnostics.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id := uint8(0); id <= constants.MaxInstanceID; id++ {
		if p.used&(uint32(1)<<id) != 0 {
			n++
		}
	}
	return n
}

// Handle is a scoped, RAII-style instance-id lease: defer h.Release() to
// guarantee the id returns to its pool even if the caller returns early
// on an error path.
type Handle struct {
	pool *Pool
	id   uint8
	done bool
}

// ID returns the leased instance id.
func (h *Handle) ID() uint8 { return h.id }

// Release returns the instance id to its pool. Safe to call more than
// once; only the first call has an effect.
func (h *Handle) Release() {
	if h.done {
		return
	}
	h.done = true
	h.pool.Free(h.id)
}

// Acquire leases an instance id from the pool, returning a Handle whose
// Release must be deferred by the caller.
func (p *Pool) Acquire() (*Handle, error) {
	id, err := p.Alloc()
	if err != nil {
		return nil, err
	}
	return &Handle{pool: p, id: id}, nil
}

// Registry owns one Pool per terminus id, created lazily on first use.
type Registry struct {
	mu    sync.Mutex
	pools map[uint8]*Pool
}

// NewRegistry returns an empty per-TID pool registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[uint8]*Pool)}
}

// Pool returns the instance-id pool for tid, creating it if necessary.
func (r *Registry) Pool(tid uint8) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[tid]
	if !ok {
		p = NewPool()
		r.pools[tid] = p
	}
	return p
}

// Acquire is a convenience wrapper around Pool(tid).Acquire().
func (r *Registry) Acquire(tid uint8) (*Handle, error) {
	return r.Pool(tid).Acquire()
}

// Drop removes a terminus's pool entirely, e.g. on terminus removal;
// any instance ids it had leased are no longer tracked.
func (r *Registry) Drop(tid uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pools, tid)
}
