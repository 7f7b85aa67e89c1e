package rde

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSessionStartsNotReadyIdle(t *testing.T) {
	s := NewSession(9, 10, "uuid-1", nil)
	require.Equal(t, DeviceStateNotReady, s.GetDeviceState())
	require.Equal(t, OpStateIdle, s.GetOpState())
	require.NotNil(t, s.Registry)
}

func TestSessionStateTransitionsAreVisibleAcrossGoroutines(t *testing.T) {
	s := NewSession(9, 10, "uuid-1", nil)
	done := make(chan struct{})
	go func() {
		s.SetDeviceState(DeviceStateOperational)
		s.SetOpState(OpStateDiscoveryCompleted)
		close(done)
	}()
	<-done
	require.Equal(t, DeviceStateOperational, s.GetDeviceState())
	require.Equal(t, OpStateDiscoveryCompleted, s.GetOpState())
}

func TestOpStateIsTerminal(t *testing.T) {
	require.True(t, OpStateOperationCompleted.IsTerminal())
	require.True(t, OpStateOperationFailed.IsTerminal())
	require.True(t, OpStateCancelled.IsTerminal())
	require.False(t, OpStateOperationExecuting.IsTerminal())
	require.False(t, OpStateIdle.IsTerminal())
}

func TestCapabilityFlagsHas(t *testing.T) {
	caps := CapabilityAtomicResourceRead | CapabilityBejV1_1Support
	require.True(t, caps.Has(CapabilityAtomicResourceRead))
	require.True(t, caps.Has(CapabilityBejV1_1Support))
	require.False(t, caps.Has(CapabilityExpandSupport))
}

func TestOperationTaskCancelReachesTerminalState(t *testing.T) {
	task := NewOperationTask(1, OperationUpdate, "/redfish/v1/Chassis/1", "1", 1, PayloadFormatJSON, 7, 9, "/xyz/openbmc_project/rde/task/1")
	require.Equal(t, OpStateOperationQueued, task.State())

	task.Cancel()
	require.Equal(t, OpStateCancelled, task.State())
	require.True(t, task.State().IsTerminal())
}
