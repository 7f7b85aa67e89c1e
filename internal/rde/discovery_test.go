package rde

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/metrics"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

type scriptedSender struct {
	byCommand map[uint8][][]byte
	calls     map[uint8]int
	sent      map[uint8][][]byte
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{byCommand: make(map[uint8][][]byte), calls: make(map[uint8]int), sent: make(map[uint8][][]byte)}
}

func (s *scriptedSender) SendAndRecv(_ context.Context, _ uint8, _, command uint8, body []byte) ([]byte, error) {
	s.sent[command] = append(s.sent[command], body)
	seq := s.byCommand[command]
	idx := s.calls[command]
	s.calls[command]++
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}

type fakeStore struct {
	dictionaries map[uint32][]byte
	annotation   []byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{dictionaries: make(map[uint32][]byte)}
}

func (f *fakeStore) SaveDictionary(_ string, resourceID uint32, data []byte) error {
	f.dictionaries[resourceID] = append([]byte{}, data...)
	return nil
}

func (f *fakeStore) SaveAnnotationDictionary(_ string, data []byte) error {
	f.annotation = append([]byte{}, data...)
	return nil
}

func buildRedfishParamsResponse(concurrency uint8, caps CapabilityFlags) []byte {
	body := []byte{ccSuccess, concurrency, byte(caps)}
	buf4 := make([]byte, 4)
	body = append(body, buf4...) // feature bits
	body = append(body, buf4...) // config signature
	return body
}

func buildMediumParamsResponse(deviceMaxChunk uint32) []byte {
	body := []byte{ccSuccess}
	buf4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf4, deviceMaxChunk)
	return append(body, buf4...)
}

func buildGetSchemaDictionaryResponse(handle uint32) []byte {
	body := []byte{ccSuccess, 0x00} // format byte, arbitrary
	buf4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf4, handle)
	return append(body, buf4...)
}

func buildMultipartReceiveResponse(flag wire.TransferFlag, nextHandle uint32, data []byte, checksum uint32) []byte {
	body := []byte{ccSuccess, byte(flag)}
	buf4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf4, nextHandle)
	body = append(body, buf4...)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))
	body = append(body, lenBuf...)
	body = append(body, data...)
	if flag.IsTerminal() && !flag.IsSinglePart() {
		crcBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(crcBuf, checksum)
		body = append(body, crcBuf...)
	}
	return body
}

func TestMultipartReceiveTwoPartReassemblesAndAcks(t *testing.T) {
	full := []byte("hello schema dictionary bytes")
	sender := newScriptedSender()
	sender.byCommand[CmdRDEMultipartReceive] = [][]byte{
		buildMultipartReceiveResponse(wire.TransferFlagStart, 5, full[:10], 0),
		buildMultipartReceiveResponse(wire.TransferFlagEnd, 0, full[10:], crc32.ChecksumIEEE(full)),
		{ccSuccess}, // ack round trip
	}

	data, err := multipartReceive(context.Background(), sender, 9, 1, nil)
	require.NoError(t, err)
	require.Equal(t, full, data)
	require.Len(t, sender.sent[CmdRDEMultipartReceive], 3)
}

func TestMultipartReceiveSinglePartSkipsChecksum(t *testing.T) {
	full := []byte("small dict")
	sender := newScriptedSender()
	sender.byCommand[CmdRDEMultipartReceive] = [][]byte{
		buildMultipartReceiveResponse(wire.TransferFlagStartAndEnd, 0, full, 0),
		{ccSuccess},
	}

	data, err := multipartReceive(context.Background(), sender, 9, 1, nil)
	require.NoError(t, err)
	require.Equal(t, full, data)
}

func TestMultipartReceiveRetriesOnChecksumMismatchThenSucceeds(t *testing.T) {
	full := []byte("retry me please")
	sender := newScriptedSender()
	sender.byCommand[CmdRDEMultipartReceive] = [][]byte{
		buildMultipartReceiveResponse(wire.TransferFlagStart, 5, full[:8], 0),
		buildMultipartReceiveResponse(wire.TransferFlagEnd, 0, full[8:], 0xdeadbeef), // bad checksum
		buildMultipartReceiveResponse(wire.TransferFlagEnd, 0, full[8:], crc32.ChecksumIEEE(full)),
		{ccSuccess},
	}

	data, err := multipartReceive(context.Background(), sender, 9, 1, nil)
	require.NoError(t, err)
	require.Equal(t, full, data)
}

func TestDiscoverHappyPathNegotiatesAndFetchesDictionary(t *testing.T) {
	dictBytes := []byte("schema dict bytes")
	sender := newScriptedSender()
	sender.byCommand[CmdNegotiateRedfishParameters] = [][]byte{buildRedfishParamsResponse(1, CapabilityAtomicResourceRead)}
	sender.byCommand[CmdNegotiateMediumParameters] = [][]byte{buildMediumParamsResponse(1024)}
	sender.byCommand[CmdGetSchemaDictionary] = [][]byte{buildGetSchemaDictionaryResponse(7)}
	sender.byCommand[CmdRDEMultipartReceive] = [][]byte{
		buildMultipartReceiveResponse(wire.TransferFlagStartAndEnd, 0, dictBytes, 0),
		{ccSuccess},
	}

	sess := NewSession(9, 10, "uuid-1", nil)
	store := newFakeStore()

	pdrs := []ResourcePDREntry{{ResourceID: 1, SchemaClass: SchemaClassMajor, SchemaName: "Chassis"}}

	m := metrics.New()
	err := Discover(context.Background(), sender, store, sess, pdrs, m)
	require.NoError(t, err)
	require.Equal(t, DeviceStateOperational, sess.GetDeviceState())
	require.Equal(t, OpStateDiscoveryCompleted, sess.GetOpState())
	require.Equal(t, uint8(1), sess.MCConcurrency)
	require.Equal(t, uint32(1024), sess.DeviceMaxChunkSize)
	require.Equal(t, dictBytes, store.dictionaries[1])
	require.Equal(t, uint64(1), m.MultipartChunksReceived.Load())
}

func TestRegisterResourcePDRsOutOfOrderContainmentResolves(t *testing.T) {
	reg := NewResourceRegistry()
	pdrs := []ResourcePDREntry{
		{ResourceID: 2, SchemaClass: SchemaClassCollection, ContainingID: 1, ContainingName: "redfish"},
		{ResourceID: 1, SchemaClass: SchemaClassMajor},
	}
	err := registerResourcePDRs(reg, pdrs)
	require.NoError(t, err)
	r, ok := reg.GetByResourceID(2)
	require.True(t, ok)
	require.Equal(t, "/redfish", r.URI)
}
