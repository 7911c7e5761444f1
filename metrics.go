// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package agentbus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hayabusa-cloud/agentbus/ring"
)

// Collector adapts a Bus's Stats snapshot to the prometheus.Collector
// interface. It holds no state of its own; every Collect call re-reads the
// Bus's atomic counters, so registering it is cheap and safe to do once at
// startup.
type Collector struct {
	bus *Bus

	messages   *prometheus.Desc
	bytes      *prometheus.Desc
	drops      *prometheus.Desc
	oversize   *prometheus.Desc
	corrupted  *prometheus.Desc
	processed  *prometheus.Desc
	stolen     *prometheus.Desc
	failed     *prometheus.Desc
	queueLen   *prometheus.Desc
	callback   *prometheus.Desc
}

// ExportPrometheus registers a Collector for b against reg. Additive: the
// Bus runs identically whether or not this is ever called.
func ExportPrometheus(reg *prometheus.Registry, b *Bus) error {
	return reg.Register(NewCollector(b))
}

// NewCollector builds a Collector for b. Register it with a
// prometheus.Registerer to export agentbus metrics.
func NewCollector(b *Bus) *Collector {
	return &Collector{
		bus: b,
		messages: prometheus.NewDesc("agentbus_ring_messages_total",
			"Messages accepted per priority class.", []string{"priority"}, nil),
		bytes: prometheus.NewDesc("agentbus_ring_bytes_total",
			"Record bytes (header and payload) accepted per priority class.", []string{"priority"}, nil),
		drops: prometheus.NewDesc("agentbus_ring_drops_total",
			"Messages rejected for lack of room, per priority class.", []string{"priority"}, nil),
		oversize: prometheus.NewDesc("agentbus_ring_oversize_drops_total",
			"Messages rejected for exceeding class capacity, per priority class.", []string{"priority"}, nil),
		corrupted: prometheus.NewDesc("agentbus_ring_corruption_total",
			"Frames discarded for inconsistent length prefixes, per priority class.", []string{"priority"}, nil),
		processed: prometheus.NewDesc("agentbus_worker_processed_total",
			"Jobs processed per worker.", []string{"worker", "core_type"}, nil),
		stolen: prometheus.NewDesc("agentbus_worker_stolen_total",
			"Jobs this worker obtained by stealing from a sibling.", []string{"worker", "core_type"}, nil),
		failed: prometheus.NewDesc("agentbus_worker_failed_total",
			"Jobs whose Process callback returned an error or panicked, per worker.", []string{"worker", "core_type"}, nil),
		queueLen: prometheus.NewDesc("agentbus_worker_queue_length",
			"Approximate current length of a worker's local deque.", []string{"worker", "core_type"}, nil),
		callback: prometheus.NewDesc("agentbus_callback_errors_total",
			"Process callback errors across the whole bus.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messages
	ch <- c.bytes
	ch <- c.drops
	ch <- c.oversize
	ch <- c.corrupted
	ch <- c.processed
	ch <- c.stolen
	ch <- c.failed
	ch <- c.queueLen
	ch <- c.callback
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.bus.Stats()

	for priority := 0; priority < ring.NumPriorities; priority++ {
		label := strconv.Itoa(priority)
		ch <- prometheus.MustNewConstMetric(c.messages, prometheus.CounterValue, float64(stats.Ring.Messages[priority]), label)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(stats.Ring.Bytes[priority]), label)
		ch <- prometheus.MustNewConstMetric(c.drops, prometheus.CounterValue, float64(stats.Ring.Drops[priority]), label)
		ch <- prometheus.MustNewConstMetric(c.oversize, prometheus.CounterValue, float64(stats.Ring.OversizeDrops[priority]), label)
		ch <- prometheus.MustNewConstMetric(c.corrupted, prometheus.CounterValue, float64(stats.Ring.CorruptionCount[priority]), label)
	}

	for _, w := range stats.Pool {
		id := strconv.Itoa(w.ID)
		core := w.CoreType.String()
		ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(w.Processed), id, core)
		ch <- prometheus.MustNewConstMetric(c.stolen, prometheus.CounterValue, float64(w.Stolen), id, core)
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(w.Failed), id, core)
		ch <- prometheus.MustNewConstMetric(c.queueLen, prometheus.GaugeValue, float64(w.QueueLen), id, core)
	}

	ch <- prometheus.MustNewConstMetric(c.callback, prometheus.CounterValue, float64(stats.Callback))
}
