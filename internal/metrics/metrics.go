// Package metrics tracks per-process PLDM traffic and RDE workflow
// counters and exposes them as Prometheus metrics.
package metrics

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets are the request/response round-trip latency histogram
// boundaries, in nanoseconds, logarithmically spaced from 100us to 10s.
var LatencyBuckets = []uint64{
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 6

// Metrics tracks requester traffic, multipart transfer outcomes, and RDE
// operation lifecycle counts. All fields are safe for concurrent use.
type Metrics struct {
	RequestsSent      atomic.Uint64
	ResponsesReceived atomic.Uint64
	Timeouts          atomic.Uint64
	TransportErrors   atomic.Uint64
	NoFreeInstanceIDs atomic.Uint64

	MultipartChunksSent      atomic.Uint64
	MultipartChunksReceived  atomic.Uint64
	MultipartChecksumRetries atomic.Uint64

	RDEOperationsStarted   atomic.Uint64
	RDEOperationsCompleted atomic.Uint64
	RDEOperationsFailed    atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// New constructs a Metrics instance stamped with the current time.
func New() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRequest records one outbound request/response round trip.
func (m *Metrics) RecordRequest(latencyNs uint64, err error) {
	m.RequestsSent.Add(1)
	if err == nil {
		m.ResponsesReceived.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordTimeout records a request that never received a response within
// its deadline.
func (m *Metrics) RecordTimeout() {
	m.Timeouts.Add(1)
}

// RecordTransportError records a send/receive failure below the PLDM
// protocol layer (socket errors, short reads).
func (m *Metrics) RecordTransportError() {
	m.TransportErrors.Add(1)
}

// RecordNoFreeInstanceIDs records an allocation attempt that found every
// instance ID for a terminus already in flight.
func (m *Metrics) RecordNoFreeInstanceIDs() {
	m.NoFreeInstanceIDs.Add(1)
}

// RecordMultipartChunkSent records one outbound multipart chunk.
func (m *Metrics) RecordMultipartChunkSent() {
	m.MultipartChunksSent.Add(1)
}

// RecordMultipartChunkReceived records one inbound multipart chunk.
func (m *Metrics) RecordMultipartChunkReceived() {
	m.MultipartChunksReceived.Add(1)
}

// RecordMultipartChecksumRetry records a checksum-mismatch recovery
// retry during multipart reassembly.
func (m *Metrics) RecordMultipartChecksumRetry() {
	m.MultipartChecksumRetries.Add(1)
}

// RecordRDEOperationStarted records a StartRedfishOperation call.
func (m *Metrics) RecordRDEOperationStarted() {
	m.RDEOperationsStarted.Add(1)
}

// RecordRDEOperationCompleted records an operation reaching
// OperationCompleted.
func (m *Metrics) RecordRDEOperationCompleted() {
	m.RDEOperationsCompleted.Add(1)
}

// RecordRDEOperationFailed records an operation reaching OperationFailed,
// Cancelled, or TimedOut.
func (m *Metrics) RecordRDEOperationFailed() {
	m.RDEOperationsFailed.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bound := range LatencyBuckets {
		if latencyNs <= bound {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// AverageLatencyNs returns the mean recorded round-trip latency, or 0 if
// nothing has been recorded yet.
func (m *Metrics) AverageLatencyNs() float64 {
	count := m.OpCount.Load()
	if count == 0 {
		return 0
	}
	return float64(m.TotalLatencyNs.Load()) / float64(count)
}
