/*
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "auction"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of auctions registered.
	Registrations metrics.Counter
	// Number of auctions settled.
	Settlements metrics.Counter
	// Number of auctions cancelled.
	Cancellations metrics.Counter
	// Number of rejected operations, by error kind.
	Rejections metrics.Counter
	// Number of operations rolled back after a state change.
	Rollbacks metrics.Counter
	// Prices paid at settlement.
	SettlementPrice metrics.Histogram
}

// PrometheusMetrics returns Metrics built using the Prometheus client
// library. It registers with the default registry and must be called once
// per namespace.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Registrations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "registrations",
			Help:      "Number of auctions registered.",
		}, []string{}),
		Settlements: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "settlements",
			Help:      "Number of auctions settled.",
		}, []string{}),
		Cancellations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "cancellations",
			Help:      "Number of auctions cancelled.",
		}, []string{}),
		Rejections: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejections",
			Help:      "Number of rejected auction operations.",
		}, []string{"kind"}),
		Rollbacks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rollbacks",
			Help:      "Number of operations rolled back after advancing state.",
		}, []string{}),
		SettlementPrice: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "settlement_price",
			Help:      "Price paid at settlement.",
			Buckets:   stdprometheus.ExponentialBuckets(1, 4, 16),
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Registrations:   discard.NewCounter(),
		Settlements:     discard.NewCounter(),
		Cancellations:   discard.NewCounter(),
		Rejections:      discard.NewCounter(),
		Rollbacks:       discard.NewCounter(),
		SettlementPrice: discard.NewHistogram(),
	}
}
