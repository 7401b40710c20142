package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/state"
)

// Features mirrors the last numeric value of every device channel as a
// gauge. It is a hub.Listener meant to be installed as an observer.
type Features struct {
	value   *prometheus.GaugeVec
	updates *prometheus.CounterVec
}

// NewFeatures creates the feature collectors and registers them with reg.
func NewFeatures(reg prometheus.Registerer) *Features {
	f := &Features{
		value: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feature_value",
				Help:      "Last reported value of a device channel.",
			},
			[]string{"hub", "source", "kind"},
		),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "State updates received from the hubs.",
			},
			[]string{"hub", "kind"},
		),
	}
	reg.MustRegister(f.value)
	reg.MustRegister(f.updates)
	return f
}

// OnUpdate implements hub.Listener. States without a numeric form (colors,
// unset values) are counted but not gauged.
func (f *Features) OnUpdate(u hub.Update) {
	kind := u.Kind.String()
	if u.Kind == state.KindUnknown {
		kind = "unknown"
	}
	f.updates.WithLabelValues(u.Hub, kind).Inc()

	if v, ok := state.Float(u.State); ok {
		f.value.WithLabelValues(u.Hub, u.Source, kind).Set(v)
	}
}
