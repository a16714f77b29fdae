package shard

import (
	"time"

	"matchbook/internal/common"
	"matchbook/internal/engine"
)

func (r *Router) observeMatch(eng *engine.Engine, blotter common.TradeBlotter, took time.Duration) {
	if r.metrics == nil {
		return
	}
	m := r.metrics
	m.OrdersSubmitted.WithLabelValues(blotter.Order.Side.String()).Inc()
	m.MatchDuration.Observe(took.Seconds())
	if n := len(blotter.Trades); n > 0 {
		m.TradesTotal.Add(float64(n))
		m.TradedVolume.WithLabelValues(blotter.Order.Symbol).Add(float64(blotter.FilledQuantity()))
	}
	r.observeDepth(eng, blotter.Order.Symbol)
}

func (r *Router) observeDepth(eng *engine.Engine, symbol string) {
	if r.metrics == nil {
		return
	}
	bids, asks := eng.Depth(symbol)
	r.metrics.PriceLevels.WithLabelValues(symbol, common.Bid.String()).Set(float64(bids))
	r.metrics.PriceLevels.WithLabelValues(symbol, common.Ask.String()).Set(float64(asks))
}

func (r *Router) observeReject() {
	if r.metrics != nil {
		r.metrics.OrdersRejected.Inc()
	}
}

func (r *Router) observeCancel(result string) {
	if r.metrics != nil {
		r.metrics.Cancels.WithLabelValues(result).Inc()
	}
}
