package rde

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/wire"
)

type propUpdate struct {
	path, iface, prop string
	value             any
}

type fakeSink struct {
	emitted []map[string]any
	paths   []string
	updated []propUpdate
}

func (f *fakeSink) EmitSignal(path, _, _ string, args map[string]any) error {
	f.paths = append(f.paths, path)
	f.emitted = append(f.emitted, args)
	return nil
}

func (f *fakeSink) UpdateProperty(path, iface, prop string, value any) error {
	f.updated = append(f.updated, propUpdate{path, iface, prop, value})
	return nil
}

type fakeCodec struct {
	encoded []byte
	decoded string
}

func (c *fakeCodec) EncodeJSONToBEJ(_, _ []byte, _ string) ([]byte, error) {
	return c.encoded, nil
}

func (c *fakeCodec) DecodeBEJToJSON(_, _ []byte, _ []byte) (string, error) {
	return c.decoded, nil
}

type fakeLoader struct{}

func (fakeLoader) LoadDictionary(_ string, _ uint32) ([]byte, error) { return []byte("schema"), nil }
func (fakeLoader) LoadAnnotationDictionary(_ string) ([]byte, error) {
	return []byte("annotation"), nil
}

func buildOperationInitResponse(handle uint32, inlinePayload []byte) []byte {
	body := []byte{ccSuccess}
	buf4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf4, handle)
	body = append(body, buf4...)
	body = append(body, inlinePayload...)
	return body
}

func newTestSessionWithResource(t *testing.T, resourceID uint32, uri string) *Session {
	t.Helper()
	sess := NewSession(9, 10, "uuid-1", nil)
	require.NoError(t, sess.Registry.Register(&ResourceInfo{ResourceID: resourceID, URI: uri, SchemaClass: SchemaClassMajor}))
	return sess
}

func TestStartRedfishOperationReadInlineEmitsTaskUpdated(t *testing.T) {
	sender := newScriptedSender()
	sender.byCommand[CmdRDEOperationInit] = [][]byte{buildOperationInitResponse(0, []byte(`{"Id":"1","Name":"Chassis 1"}`))}
	sender.byCommand[CmdRDEOperationComplete] = [][]byte{{ccSuccess}}

	sink := &fakeSink{}
	engine := NewEngine(sender, EngineConfig{Sink: sink})
	sess := newTestSessionWithResource(t, 1, "/redfish/v1/Chassis/1")

	err := engine.StartRedfishOperation(context.Background(), sess, StartRedfishOperationRequest{
		OpID: 42,
		Type: OperationRead,
		URI:  "/redfish/v1/Chassis/1",
	})
	require.NoError(t, err)

	require.Len(t, sink.emitted, 1)
	require.Equal(t, `{"Id":"1","Name":"Chassis 1"}`, sink.emitted[0]["payload"])
	require.Equal(t, uint16(OpStateOperationCompleted), sink.emitted[0]["return_code"])

	state, ok := engine.OperationStatus(42)
	require.True(t, ok)
	require.Equal(t, OpStateOperationCompleted, state)
	require.Equal(t, DeviceStateOperational, sess.GetDeviceState())
}

func TestStartRedfishOperationUpdateStagesMultipartSend(t *testing.T) {
	sender := newScriptedSender()
	sender.byCommand[CmdRDEOperationInit] = [][]byte{buildOperationInitResponse(0, nil)}
	sender.byCommand[CmdRDEOperationComplete] = [][]byte{{ccSuccess}}
	sender.byCommand[CmdRDEMultipartSend] = [][]byte{
		{ccSuccess, 0, 0, 0, 1},
		{ccSuccess, 0, 0, 0, 0},
	}

	codec := &fakeCodec{encoded: []byte("twenty byte payload!"), decoded: "{}"}
	sink := &fakeSink{}
	engine := NewEngine(sender, EngineConfig{Codec: codec, Loader: fakeLoader{}, Sink: sink})
	sess := newTestSessionWithResource(t, 1, "/redfish/v1/Chassis/1")
	sess.DeviceMaxChunkSize = 16

	err := engine.StartRedfishOperation(context.Background(), sess, StartRedfishOperationRequest{
		OpID:    7,
		Type:    OperationUpdate,
		URI:     "/redfish/v1/Chassis/1",
		Payload: `{"IndicatorLED":"On"}`,
		Format:  PayloadFormatJSON,
	})
	require.NoError(t, err)
	require.Len(t, sender.sent[CmdRDEMultipartSend], 2)
	require.Len(t, sink.emitted, 1)
	require.Equal(t, uint16(OpStateOperationCompleted), sink.emitted[0]["return_code"])
	require.Len(t, sink.updated, 1)
	require.Equal(t, "Payload", sink.updated[0].prop)
}

func TestStartRedfishOperationReadDoesNotPushPropertyUpdate(t *testing.T) {
	sender := newScriptedSender()
	sender.byCommand[CmdRDEOperationInit] = [][]byte{buildOperationInitResponse(0, []byte(`{"Id":"1"}`))}
	sender.byCommand[CmdRDEOperationComplete] = [][]byte{{ccSuccess}}

	sink := &fakeSink{}
	engine := NewEngine(sender, EngineConfig{Sink: sink})
	sess := newTestSessionWithResource(t, 1, "/redfish/v1/Chassis/1")

	err := engine.StartRedfishOperation(context.Background(), sess, StartRedfishOperationRequest{
		OpID: 1,
		Type: OperationRead,
		URI:  "/redfish/v1/Chassis/1",
	})
	require.NoError(t, err)
	require.Empty(t, sink.updated)
}

func TestCancelOperationIssuesRDEOperationCompleteAndStopsStartFromResending(t *testing.T) {
	sender := newScriptedSender()
	sender.byCommand[CmdRDEOperationComplete] = [][]byte{{ccSuccess}}

	sink := &fakeSink{}
	engine := NewEngine(sender, EngineConfig{Sink: sink})
	sess := newTestSessionWithResource(t, 1, "/redfish/v1/Chassis/1")
	engine.RegisterSession(sess)

	resourceID, ok := sess.Registry.ResourceIDFromURI("/redfish/v1/Chassis/1")
	require.True(t, ok)
	task := NewOperationTask(3, OperationUpdate, "/redfish/v1/Chassis/1", "1", resourceID, PayloadFormatJSON, 0, sess.TID, engine.taskPath(3))
	engine.mu.Lock()
	engine.tasks[3] = task
	engine.mu.Unlock()

	err := engine.CancelOperation(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, sender.sent[CmdRDEOperationComplete], 1)
	require.Equal(t, OpStateCancelled, task.State())
	require.Len(t, sink.emitted, 1)

	require.NoError(t, engine.CancelOperation(context.Background(), 3))
	require.Len(t, sender.sent[CmdRDEOperationComplete], 1)
}

func TestCancelOperationUnknownOpIDFails(t *testing.T) {
	engine := NewEngine(newScriptedSender(), EngineConfig{})
	require.Error(t, engine.CancelOperation(context.Background(), 999))
}

func TestEngineRegisterAndLookupSession(t *testing.T) {
	engine := NewEngine(newScriptedSender(), EngineConfig{})
	sess := NewSession(9, 10, "uuid-1", nil)

	_, ok := engine.Session(9)
	require.False(t, ok)

	engine.RegisterSession(sess)
	got, ok := engine.Session(9)
	require.True(t, ok)
	require.Same(t, sess, got)
}

func TestStartRedfishOperationUnresolvedURIFails(t *testing.T) {
	sender := newScriptedSender()
	engine := NewEngine(sender, EngineConfig{})
	sess := NewSession(9, 10, "uuid-1", nil)

	err := engine.StartRedfishOperation(context.Background(), sess, StartRedfishOperationRequest{
		OpID: 1,
		Type: OperationRead,
		URI:  "/redfish/v1/Nonexistent",
	})
	require.Error(t, err)
}

func TestStartRedfishOperationWaitsOnMultipartReceiveWhenHandleNonzero(t *testing.T) {
	sender := newScriptedSender()
	sender.byCommand[CmdRDEOperationInit] = [][]byte{buildOperationInitResponse(5, nil)}
	sender.byCommand[CmdRDEMultipartReceive] = [][]byte{
		buildMultipartReceiveResponse(wire.TransferFlagStartAndEnd, 0, []byte(`{"Id":"1"}`), 0),
		{ccSuccess},
	}
	sender.byCommand[CmdRDEOperationComplete] = [][]byte{{ccSuccess}}

	sink := &fakeSink{}
	engine := NewEngine(sender, EngineConfig{Sink: sink})
	sess := newTestSessionWithResource(t, 1, "/redfish/v1/Chassis/1")

	err := engine.StartRedfishOperation(context.Background(), sess, StartRedfishOperationRequest{
		OpID: 99,
		Type: OperationRead,
		URI:  "/redfish/v1/Chassis/1",
	})
	require.NoError(t, err)
	require.Equal(t, `{"Id":"1"}`, sink.emitted[0]["payload"])
}
