// Package promsink implements [profiler.Sink] on top of a Prometheus
// counter vector and gauge vector. It exercises an externally supplied profiler
// net without pulling profiler transport into the core itself.
package promsink

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moiri/streamix-go/profiler"
)

// Sink turns profiler events into Prometheus metrics, labeled by the
// run-scoped correlation id assigned at boot (runtime.Runtime.RunID).
type Sink struct {
	runID string

	events   *prometheus.CounterVec
	fifoSize *prometheus.GaugeVec
}

// New creates a Sink and registers its metrics with reg. Passing a nil
// registry falls back to prometheus.DefaultRegisterer.
func New(runID string, reg prometheus.Registerer) *Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &Sink{
		runID: runID,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamix",
			Name:      "profiler_events_total",
			Help:      "Total profiler events emitted by the dataflow runtime, by kind.",
		}, []string{"run_id", "kind", "net", "channel"}),
		fifoSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "streamix",
			Name:      "channel_fifo_count",
			Help:      "FIFO occupancy observed at the most recent read or write event.",
		}, []string{"run_id", "channel"}),
	}
	reg.MustRegister(s.events, s.fifoSize)
	return s
}

// Emit implements [profiler.Sink].
func (s *Sink) Emit(e profiler.Event) {
	s.events.WithLabelValues(s.runID, e.Kind.String(), e.NetName, e.ChannelName).Inc()
	switch e.Kind {
	case profiler.ChanRead, profiler.ChanWrite, profiler.ChanOverwrite, profiler.ChanDuplicate:
		s.fifoSize.WithLabelValues(s.runID, e.ChannelName).Set(float64(e.Count))
	}
}
