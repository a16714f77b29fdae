package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "matchbook"

// Metrics holds the matching engine collectors.
type Metrics struct {
	// Order flow
	OrdersSubmitted *prometheus.CounterVec
	OrdersEnqueued  prometheus.Counter
	OrdersRejected  prometheus.Counter
	Cancels         *prometheus.CounterVec

	// Trades
	TradesTotal  prometheus.Counter
	TradedVolume *prometheus.CounterVec

	// Book shape
	PriceLevels *prometheus.GaugeVec

	MatchDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_submitted_total",
				Help:      "Total number of orders submitted for matching",
			},
			[]string{"side"},
		),
		OrdersEnqueued: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_enqueued_total",
				Help:      "Total number of orders rested without matching",
			},
		),
		OrdersRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_rejected_total",
				Help:      "Total number of orders rejected at the engine boundary",
			},
		),
		Cancels: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancels_total",
				Help:      "Total number of cancel requests by result",
			},
			[]string{"result"},
		),
		TradesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of trades executed",
			},
		),
		TradedVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "traded_quantity_total",
				Help:      "Total quantity traded",
			},
			[]string{"symbol"},
		),
		PriceLevels: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "price_levels",
				Help:      "Number of price levels resting in the book",
			},
			[]string{"symbol", "side"},
		),
		MatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_duration_seconds",
				Help:      "Time spent matching a single incoming order",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
	}
}

// Cancel results.
const (
	CancelOK       = "ok"
	CancelNotFound = "not_found"
	CancelError    = "error"
)
