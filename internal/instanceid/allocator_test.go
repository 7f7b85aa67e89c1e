package instanceid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/constants"
)

func TestPoolAllocIsLowestFree(t *testing.T) {
	p := NewPool()
	id, err := p.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint8(0), id)

	id2, err := p.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint8(1), id2)

	p.Free(id)
	id3, err := p.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint8(0), id3)
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool()
	for i := 0; i <= int(constants.MaxInstanceID); i++ {
		_, err := p.Alloc()
		require.NoError(t, err)
	}
	_, err := p.Alloc()
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, constants.InstanceIDCount, p.InUse())
}

func TestHandleReleaseIsIdempotent(t *testing.T) {
	p := NewPool()
	h, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 1, p.InUse())

	h.Release()
	h.Release() // must not double-free or panic
	require.Equal(t, 0, p.InUse())
}

func TestRegistryPerTIDIsolation(t *testing.T) {
	r := NewRegistry()
	h1, err := r.Acquire(5)
	require.NoError(t, err)
	h2, err := r.Acquire(6)
	require.NoError(t, err)

	require.Equal(t, uint8(0), h1.ID())
	require.Equal(t, uint8(0), h2.ID()) // independent pools, both start at 0

	r.Drop(5)
	h3, err := r.Acquire(5)
	require.NoError(t, err)
	require.Equal(t, uint8(0), h3.ID())
}
