package rde

import (
	"context"
	"fmt"
	"os"

	"github.com/openbmc/pldm-sub002/internal/constants"
	"github.com/openbmc/pldm-sub002/internal/metrics"
	"github.com/openbmc/pldm-sub002/internal/multipart"
	"github.com/openbmc/pldm-sub002/internal/pldmerr"
	"github.com/openbmc/pldm-sub002/internal/wire"
)

// Sender is the narrow requester surface the engine depends on.
type Sender interface {
	SendAndRecv(ctx context.Context, tid uint8, typ, command uint8, body []byte) ([]byte, error)
}

// DictionaryStore is the narrow persistence surface discovery writes
// retrieved schema dictionaries through; internal/dictionary implements it
// against backend/filestore's on-disk layout (the dictionary store layout).
type DictionaryStore interface {
	SaveDictionary(uuid string, resourceID uint32, data []byte) error
	SaveAnnotationDictionary(uuid string, data []byte) error
}

// ResourcePDREntry is the subset of a parsed Redfish Resource PDR
// discovery needs to seed the resource registry; platform PDR parsing
// upstream of this package (internal/platform) hands these in as part of
// the DiscoveryComplete handoff (the command surface: "DiscoveryComplete(tid,
// pdr_payloads)").
type ResourcePDREntry struct {
	ResourceID     uint32
	SchemaClass    SchemaClass
	SchemaName     string
	SchemaVersion  string
	ContainingID   uint32
	ContainingName string
	Operations     []OperationType
}

// AnnotationDictionaryPath is the fixed path discovery loads the shared
// annotation dictionary from at session construction (device discovery).
const AnnotationDictionaryPath = "/usr/share/pldm/rde/annotation.bin"

// Discover runs the full discovery sequence against sess (device discovery):
// parse resource PDRs into the registry, negotiate Redfish and medium
// parameters, fetch each Major-class resource's schema dictionary, load the
// shared annotation dictionary, then mark the session Operational.
func Discover(ctx context.Context, sender Sender, store DictionaryStore, sess *Session, pdrs []ResourcePDREntry, m *metrics.Metrics) error {
	sess.SetOpState(OpStateDiscoveryStarted)
	sess.SetDeviceState(DeviceStateDiscovering)

	if err := registerResourcePDRs(sess.Registry, pdrs); err != nil {
		sess.SetDeviceState(DeviceStateUnreachable)
		return pldmerr.Wrap("rde.Discover", pldmerr.CodeStateViolation, err)
	}

	sess.SetOpState(OpStateDiscoveryRunning)

	if err := negotiateRedfishParameters(ctx, sender, sess); err != nil {
		sess.SetDeviceState(DeviceStateUnreachable)
		sess.SetOpState(OpStateOperationFailed)
		return err
	}
	if err := negotiateMediumParameters(ctx, sender, sess); err != nil {
		sess.SetDeviceState(DeviceStateUnreachable)
		sess.SetOpState(OpStateOperationFailed)
		return err
	}

	for _, r := range sess.Registry.GetBySchemaClass(SchemaClassMajor) {
		if err := fetchAndPersistDictionary(ctx, sender, store, sess, r.ResourceID, m); err != nil {
			sess.SetDeviceState(DeviceStateUnreachable)
			sess.SetOpState(OpStateOperationFailed)
			return err
		}
	}

	if err := loadAnnotationDictionary(store, sess.UUID); err != nil {
		// Missing annotation dictionary degrades BEJ translation but does
		// not itself make the device unreachable; log and continue.
		sess.logger.Warn("annotation dictionary load failed", "error", err)
	}

	sess.SetOpState(OpStateDiscoveryCompleted)
	sess.SetDeviceState(DeviceStateOperational)
	return nil
}

func registerResourcePDRs(reg *ResourceRegistry, pdrs []ResourcePDREntry) error {
	// Containment parents must already be registered before a child
	// references them (buildURILocked walks ContainingID chains), so
	// resources without a parent are registered first.
	remaining := make([]ResourcePDREntry, len(pdrs))
	copy(remaining, pdrs)

	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0]
		for _, p := range remaining {
			if p.ContainingID != 0 {
				if _, ok := reg.GetByResourceID(p.ContainingID); !ok {
					next = append(next, p)
					continue
				}
			}
			if err := reg.Register(&ResourceInfo{
				ResourceID:     p.ResourceID,
				SchemaClass:    p.SchemaClass,
				SchemaName:     p.SchemaName,
				SchemaVersion:  p.SchemaVersion,
				ContainingID:   p.ContainingID,
				ContainingName: p.ContainingName,
				Operations:     p.Operations,
			}); err != nil {
				return err
			}
			progressed = true
		}
		if !progressed && len(next) > 0 {
			return fmt.Errorf("rde: unresolved containment parent among %d remaining resource pdrs", len(next))
		}
		remaining = next
	}
	return nil
}

func negotiateRedfishParameters(ctx context.Context, sender Sender, sess *Session) error {
	req := encodeNegotiateRedfishParametersRequest(constants.DefaultMCConcurrency, 0)
	resp, err := sender.SendAndRecv(ctx, sess.TID, RDEType, CmdNegotiateRedfishParameters, req)
	if err != nil {
		return pldmerr.Wrap("rde.NegotiateRedfishParameters", pldmerr.CodeTransportFailure, err)
	}
	parsed, err := decodeNegotiateRedfishParametersResponse(resp)
	if err != nil {
		return pldmerr.Wrap("rde.NegotiateRedfishParameters", pldmerr.CodeDecodeError, err)
	}
	sess.mu.Lock()
	sess.MCConcurrency = parsed.deviceConcurrency
	sess.Capabilities = parsed.deviceCapabilities
	sess.MCFeatureBits = parsed.deviceFeatureBits
	sess.DeviceConfigSig = parsed.configSignature
	sess.ProviderName = parsed.providerName
	sess.mu.Unlock()
	return nil
}

func negotiateMediumParameters(ctx context.Context, sender Sender, sess *Session) error {
	req := encodeNegotiateMediumParametersRequest(constants.DefaultMCMaxChunkSize)
	resp, err := sender.SendAndRecv(ctx, sess.TID, RDEType, CmdNegotiateMediumParameters, req)
	if err != nil {
		return pldmerr.Wrap("rde.NegotiateMediumParameters", pldmerr.CodeTransportFailure, err)
	}
	deviceMaxChunk, err := decodeNegotiateMediumParametersResponse(resp)
	if err != nil {
		return pldmerr.Wrap("rde.NegotiateMediumParameters", pldmerr.CodeDecodeError, err)
	}
	sess.mu.Lock()
	sess.DeviceMaxChunkSize = deviceMaxChunk
	sess.mu.Unlock()
	return nil
}

func fetchAndPersistDictionary(ctx context.Context, sender Sender, store DictionaryStore, sess *Session, resourceID uint32, m *metrics.Metrics) error {
	req := encodeGetSchemaDictionaryRequest(resourceID, SchemaClassMajor)
	resp, err := sender.SendAndRecv(ctx, sess.TID, RDEType, CmdGetSchemaDictionary, req)
	if err != nil {
		return pldmerr.Wrap("rde.GetSchemaDictionary", pldmerr.CodeTransportFailure, err)
	}
	handle, err := decodeGetSchemaDictionaryResponse(resp)
	if err != nil {
		return pldmerr.Wrap("rde.GetSchemaDictionary", pldmerr.CodeDecodeError, err)
	}

	data, err := multipartReceive(ctx, sender, sess.TID, handle, m)
	if err != nil {
		return pldmerr.Wrap("rde.GetSchemaDictionary", pldmerr.CodeChecksumMismatch, err)
	}
	if store != nil {
		if err := store.SaveDictionary(sess.UUID, resourceID, data); err != nil {
			return pldmerr.Wrap("rde.GetSchemaDictionary", pldmerr.CodeStateViolation, err)
		}
	}
	return nil
}

// loadAnnotationDictionary reads the shared annotation dictionary from its
// fixed path and persists it alongside the device's own dictionaries
// (device discovery).
func loadAnnotationDictionary(store DictionaryStore, uuid string) error {
	data, err := os.ReadFile(AnnotationDictionaryPath)
	if err != nil {
		return fmt.Errorf("rde: reading annotation dictionary: %w", err)
	}
	if store == nil {
		return nil
	}
	return store.SaveAnnotationDictionary(uuid, data)
}

// multipartReceive drives the shared chunked-receive state machine
// (the multipart receive state machine) against transferHandle: Start/Middle append and
// advance, End validates CRC32 (StartAndEnd carries none) and, on mismatch,
// rolls back and reissues the current part up to
// constants.MaxMultipartChunkRetry times, and a final AcknowledgementOnly
// round trip completes the transfer.
func multipartReceive(ctx context.Context, sender Sender, tid uint8, transferHandle uint32, m *metrics.Metrics) ([]byte, error) {
	r := multipart.NewReassembler()
	op := wire.OperationFlagGetFirstPart
	handle := transferHandle
	retries := 0

	for {
		req := encodeMultipartReceiveRequest(op, handle)
		resp, err := sender.SendAndRecv(ctx, tid, RDEType, CmdRDEMultipartReceive, req)
		if err != nil {
			return nil, err
		}
		parsed, err := decodeMultipartReceiveResponse(resp)
		if err != nil {
			return nil, err
		}
		if m != nil {
			m.RecordMultipartChunkReceived()
		}

		complete, acceptErr := r.Accept(parsed.transferFlag, parsed.data, parsed.checksum)
		if acceptErr != nil {
			if acceptErr == multipart.ErrChecksumMismatch {
				retries++
				if m != nil {
					m.RecordMultipartChecksumRetry()
				}
				if retries > constants.MaxMultipartChunkRetry {
					return nil, fmt.Errorf("rde: multipart receive exhausted retry budget on checksum mismatch")
				}
				r.TrimSuffix(len(parsed.data))
				op = wire.OperationFlagGetCurrentPart
				continue
			}
			return nil, acceptErr
		}
		if complete {
			if _, err := sender.SendAndRecv(ctx, tid, RDEType, CmdRDEMultipartReceive, encodeMultipartReceiveRequest(wire.OperationFlagAcknowledgementOnly, parsed.nextHandle)); err != nil {
				return nil, err
			}
			return r.Bytes(), nil
		}
		handle = parsed.nextHandle
		op = wire.OperationFlagGetNextPart
		retries = 0
	}
}
