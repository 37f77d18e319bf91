// Package metrics exposes prometheus counters for the settlement engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Settlements counts settlement units by outcome and operation.
type Settlements struct {
	Committed *prometheus.CounterVec
	Aborted   *prometheus.CounterVec
}

// New registers the settlement counters with reg.
func New(reg prometheus.Registerer) *Settlements {
	s := &Settlements{
		Committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "settlements_committed_total",
			Help:      "Settlement units committed, by operation.",
		}, []string{"op"}),
		Aborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "settlements_aborted_total",
			Help:      "Settlement units aborted with all effects discarded, by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(s.Committed, s.Aborted)
	return s
}
