// Package constants holds pldmd's documented default tunables: EID/TID
// ranges, instance-ID width, retry/timeout policy, and PDR/RDE transfer
// sizing.
package constants

import "time"

// MCTP endpoint ID range. EIDs 0..7 and 255 are reserved (DSP0236 8.2).
const (
	MinValidEID uint8 = 8
	MaxValidEID uint8 = 254 // inclusive; 255 is the broadcast EID
)

// PLDM terminus ID range. 0 and 255 are reserved (DSP0240 8.1.1).
const (
	MinValidTID uint8 = 1
	MaxValidTID uint8 = 254

	// TIDUnset is returned by GetTID when the device has not yet been
	// assigned a terminus ID.
	TIDUnset uint8 = 0
	// TIDReserved is the broadcast/reserved terminus ID.
	TIDReserved uint8 = 0xff

	// TIDPoolSize is the size of the TID space, values 0..254 (255 is the
	// reserved broadcast TID). The transport's mapTID assigns TID == EID and
	// does not draw from a pool of this size.
	TIDPoolSize = 255
)

// Instance IDs are 5 bits wide: 0..31.
const (
	MinInstanceID uint8 = 0
	MaxInstanceID uint8 = 31
	// InstanceIDUnallocated is the "not allocated" sentinel.
	InstanceIDUnallocated uint8 = 0xff
	InstanceIDCount              = int(MaxInstanceID) + 1
)

// Requester runtime retry/timeout policy.
const (
	DefaultResponseTimeout = 1 * time.Second
	DefaultRetries         = 2
)

// Event-message pump defaults.
const (
	DefaultEventBufferSize   = 256
	DefaultPollInterval      = 1 * time.Second
	DefaultCritEventQueueCap = 64
)

// PDR pagination defaults.
const (
	DefaultPDRRequestCount  = 1024
	MaxPDRRecordIterations  = 1 << 20 // cycle-detection safety valve
)

// RDE multipart defaults.
const (
	DefaultMCConcurrency    = 1
	DefaultMCMaxChunkSize   = 4096
	MaxMultipartChunkRetry  = 3
	RDEOperationInitOverhead = 32 // header + operation-locator budget subtracted from mc_max_chunk_size for inline fit
)

// DictRoot is the default on-disk root for dictionary/registry persistence.
const DictRoot = "/var/lib/pldm/dict"
