// Copyright 2025 Certen Protocol
//
// Prometheus instrumentation for the TPA engine: one counter per error
// taxonomy entry plus a histogram of hash-chain walk depths, so operators
// can see replay pressure and window sizing without instrumenting call
// sites by hand. Collectors are registered once at construction and
// handed back as a struct of ready-to-use instruments.

package tpametrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hip-tpa/tpacore/pkg/tpaerr"
)

// Metrics bundles the collectors the tracker and verifier update on every
// control message and every ESP packet.
type Metrics struct {
	ErrorsTotal       *prometheus.CounterVec
	ChainWalkDepth    prometheus.Histogram
	AnchorActivations prometheus.Counter
	CumulativeHits    prometheus.Counter
}

// New registers and returns a fresh Metrics bundle against reg. Passing a
// new prometheus.Registry per test keeps test runs from colliding on the
// default global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tpa",
			Name:      "errors_total",
			Help:      "TPA verification and tracking errors by taxonomy code.",
		}, []string{"code"}),
		ChainWalkDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tpa",
			Name:      "chain_walk_depth",
			Help:      "Number of hops walked by the hash-chain verifier per packet.",
			Buckets:   prometheus.LinearBuckets(1, 4, 16),
		}),
		AnchorActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpa",
			Name:      "anchor_activations_total",
			Help:      "Number of UPDATE Msg-2 activations that installed a next anchor.",
		}),
		CumulativeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpa",
			Name:      "cumulative_ring_hits_total",
			Help:      "Out-of-order packets accepted via the cumulative ring buffer.",
		}),
	}
	reg.MustRegister(m.ErrorsTotal, m.ChainWalkDepth, m.AnchorActivations, m.CumulativeHits)
	return m
}

// ObserveError bumps the error counter for err's taxonomy code, a no-op
// for nil or untyped errors.
func (m *Metrics) ObserveError(err error) {
	if err == nil {
		return
	}
	code := "Unknown"
	var tErr *tpaerr.Error
	if errors.As(err, &tErr) {
		code = tErr.Code.String()
	}
	m.ErrorsTotal.WithLabelValues(code).Inc()
}
