package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a Metrics instance's counters to Prometheus, the way
// a metrics exporter wires an in-process stats struct into a scrape
// endpoint: one *prometheus.Desc per tracked series, built once and
// filled from the live atomics on every Collect call.
type Collector struct {
	m *Metrics

	requestsSent      *prometheus.Desc
	responsesReceived *prometheus.Desc
	timeouts          *prometheus.Desc
	transportErrors   *prometheus.Desc
	noFreeInstanceIDs *prometheus.Desc

	multipartChunksSent      *prometheus.Desc
	multipartChunksReceived  *prometheus.Desc
	multipartChecksumRetries *prometheus.Desc

	rdeOperationsStarted   *prometheus.Desc
	rdeOperationsCompleted *prometheus.Desc
	rdeOperationsFailed    *prometheus.Desc

	averageLatencySeconds *prometheus.Desc
}

// NewCollector builds a Collector over m. Register it with a
// prometheus.Registry to expose m's counters on a scrape endpoint.
func NewCollector(m *Metrics) *Collector {
	const ns = "pldm"
	return &Collector{
		m:                        m,
		requestsSent:             prometheus.NewDesc(ns+"_requests_sent_total", "Total PLDM requests sent.", nil, nil),
		responsesReceived:        prometheus.NewDesc(ns+"_responses_received_total", "Total PLDM responses received.", nil, nil),
		timeouts:                 prometheus.NewDesc(ns+"_timeouts_total", "Total requests that timed out awaiting a response.", nil, nil),
		transportErrors:          prometheus.NewDesc(ns+"_transport_errors_total", "Total transport-level send/receive failures.", nil, nil),
		noFreeInstanceIDs:        prometheus.NewDesc(ns+"_no_free_instance_ids_total", "Total allocation attempts that found no free instance ID.", nil, nil),
		multipartChunksSent:      prometheus.NewDesc(ns+"_multipart_chunks_sent_total", "Total outbound multipart chunks sent.", nil, nil),
		multipartChunksReceived:  prometheus.NewDesc(ns+"_multipart_chunks_received_total", "Total inbound multipart chunks received.", nil, nil),
		multipartChecksumRetries: prometheus.NewDesc(ns+"_multipart_checksum_retries_total", "Total checksum-mismatch recovery retries.", nil, nil),
		rdeOperationsStarted:     prometheus.NewDesc(ns+"_rde_operations_started_total", "Total StartRedfishOperation calls.", nil, nil),
		rdeOperationsCompleted:   prometheus.NewDesc(ns+"_rde_operations_completed_total", "Total RDE operations reaching OperationCompleted.", nil, nil),
		rdeOperationsFailed:      prometheus.NewDesc(ns+"_rde_operations_failed_total", "Total RDE operations reaching a failure terminal state.", nil, nil),
		averageLatencySeconds:    prometheus.NewDesc(ns+"_average_request_latency_seconds", "Mean request/response round-trip latency.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsSent
	ch <- c.responsesReceived
	ch <- c.timeouts
	ch <- c.transportErrors
	ch <- c.noFreeInstanceIDs
	ch <- c.multipartChunksSent
	ch <- c.multipartChunksReceived
	ch <- c.multipartChecksumRetries
	ch <- c.rdeOperationsStarted
	ch <- c.rdeOperationsCompleted
	ch <- c.rdeOperationsFailed
	ch <- c.averageLatencySeconds
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.requestsSent, prometheus.CounterValue, float64(c.m.RequestsSent.Load()))
	ch <- prometheus.MustNewConstMetric(c.responsesReceived, prometheus.CounterValue, float64(c.m.ResponsesReceived.Load()))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(c.m.Timeouts.Load()))
	ch <- prometheus.MustNewConstMetric(c.transportErrors, prometheus.CounterValue, float64(c.m.TransportErrors.Load()))
	ch <- prometheus.MustNewConstMetric(c.noFreeInstanceIDs, prometheus.CounterValue, float64(c.m.NoFreeInstanceIDs.Load()))
	ch <- prometheus.MustNewConstMetric(c.multipartChunksSent, prometheus.CounterValue, float64(c.m.MultipartChunksSent.Load()))
	ch <- prometheus.MustNewConstMetric(c.multipartChunksReceived, prometheus.CounterValue, float64(c.m.MultipartChunksReceived.Load()))
	ch <- prometheus.MustNewConstMetric(c.multipartChecksumRetries, prometheus.CounterValue, float64(c.m.MultipartChecksumRetries.Load()))
	ch <- prometheus.MustNewConstMetric(c.rdeOperationsStarted, prometheus.CounterValue, float64(c.m.RDEOperationsStarted.Load()))
	ch <- prometheus.MustNewConstMetric(c.rdeOperationsCompleted, prometheus.CounterValue, float64(c.m.RDEOperationsCompleted.Load()))
	ch <- prometheus.MustNewConstMetric(c.rdeOperationsFailed, prometheus.CounterValue, float64(c.m.RDEOperationsFailed.Load()))
	ch <- prometheus.MustNewConstMetric(c.averageLatencySeconds, prometheus.GaugeValue, c.m.AverageLatencyNs()/1e9)
}
