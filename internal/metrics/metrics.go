// Package metrics exposes the bridge's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/muurk/lightwave/internal/protocol"
)

const namespace = "lightwave"

// Delivery records delivery queue activity. It satisfies delivery.Metrics.
type Delivery struct {
	sent       *prometheus.CounterVec
	retried    *prometheus.CounterVec
	finished   *prometheus.CounterVec
	ackLatency *prometheus.HistogramVec
	depth      *prometheus.GaugeVec
}

// NewDelivery creates the delivery collectors and registers them with reg.
func NewDelivery(reg prometheus.Registerer) *Delivery {
	m := &Delivery{
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_sent_total",
				Help:      "Command transmissions, including retries.",
			},
			[]string{"queue", "type"},
		),
		retried: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_retries_total",
				Help:      "Commands resent after a missing or retryable acknowledgment.",
			},
			[]string{"queue", "type"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_finished_total",
				Help:      "Commands that reached a terminal outcome.",
			},
			[]string{"queue", "type", "outcome"},
		),
		ackLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ack_latency_seconds",
				Help:      "Time from first transmission to terminal outcome.",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"queue"},
		),
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Commands waiting to be sent.",
			},
			[]string{"queue"},
		),
	}
	reg.MustRegister(m.sent)
	reg.MustRegister(m.retried)
	reg.MustRegister(m.finished)
	reg.MustRegister(m.ackLatency)
	reg.MustRegister(m.depth)
	return m
}

func (m *Delivery) Sent(queue string, t protocol.MessageType) {
	m.sent.WithLabelValues(queue, t.String()).Inc()
}

func (m *Delivery) Retried(queue string, t protocol.MessageType) {
	m.retried.WithLabelValues(queue, t.String()).Inc()
}

func (m *Delivery) Finished(queue string, t protocol.MessageType, outcome string, latency time.Duration) {
	m.finished.WithLabelValues(queue, t.String(), outcome).Inc()
	m.ackLatency.WithLabelValues(queue).Observe(latency.Seconds())
}

func (m *Delivery) Depth(queue string, n int) {
	m.depth.WithLabelValues(queue).Set(float64(n))
}

// NewRegistry returns a registry preloaded with the Go runtime and build
// info collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
