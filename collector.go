package logsink

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a writer's counters as Prometheus metrics. Register it
// with a prometheus.Registerer and scrape as usual:
//
//	prometheus.MustRegister(logsink.NewCollector(writer))
//
// Every scrape reads a fresh Metrics snapshot, so the collector itself holds
// no mutable state.
type Collector struct {
	writer *AsyncWriter

	enqueued    *prometheus.Desc
	processed   *prometheus.Desc
	dropped     *prometheus.Desc
	writeErrors *prometheus.Desc
	rotations   *prometheus.Desc
	queueDepth  *prometheus.Desc
}

// NewCollector creates a collector over the given writer.
func NewCollector(writer *AsyncWriter) *Collector {
	return &Collector{
		writer: writer,
		enqueued: prometheus.NewDesc(
			"logsink_enqueued_total",
			"Log entries accepted into the queue.",
			nil, nil,
		),
		processed: prometheus.NewDesc(
			"logsink_processed_total",
			"Log entries successfully written to a sink.",
			nil, nil,
		),
		dropped: prometheus.NewDesc(
			"logsink_dropped_total",
			"Log entries lost to overflow or post-shutdown submission.",
			nil, nil,
		),
		writeErrors: prometheus.NewDesc(
			"logsink_write_errors_total",
			"Log entries lost to sink open or write failures.",
			nil, nil,
		),
		rotations: prometheus.NewDesc(
			"logsink_rotations_total",
			"Sink rotations performed after start-up.",
			nil, nil,
		),
		queueDepth: prometheus.NewDesc(
			"logsink_queue_depth",
			"Log entries currently buffered.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.enqueued
	ch <- c.processed
	ch <- c.dropped
	ch <- c.writeErrors
	ch <- c.rotations
	ch <- c.queueDepth
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.writer.Metrics()

	ch <- prometheus.MustNewConstMetric(c.enqueued, prometheus.CounterValue, float64(m.Enqueued))
	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(m.Processed))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(m.Dropped))
	ch <- prometheus.MustNewConstMetric(c.writeErrors, prometheus.CounterValue, float64(m.WriteErrors))
	ch <- prometheus.MustNewConstMetric(c.rotations, prometheus.CounterValue, float64(m.Rotations))
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(m.QueueDepth))
}

var _ prometheus.Collector = (*Collector)(nil)
