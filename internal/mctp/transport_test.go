package mctp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/constants"
)

func TestIdentityMapPrePopulatesRange(t *testing.T) {
	m := newIdentityMap()
	tid, err := m.toTID(constants.MinValidEID)
	require.NoError(t, err)
	require.Equal(t, constants.MinValidEID, tid)

	eid, err := m.toEID(constants.MaxValidEID)
	require.NoError(t, err)
	require.Equal(t, constants.MaxValidEID, eid)
}

func TestIdentityMapRejectsOutOfRangeEID(t *testing.T) {
	m := newIdentityMap()
	_, err := m.mapTID(1)
	require.Error(t, err)
	_, err = m.mapTID(255)
	require.Error(t, err)
}

func TestIdentityMapMapUnmapRoundTrip(t *testing.T) {
	m := newIdentityMap()
	tid, err := m.mapTID(42)
	require.NoError(t, err)
	require.Equal(t, uint8(42), tid)

	m.unmapTID(tid)
	_, err = m.toEID(tid)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Backend(99), "")
	require.Error(t, err)
}
