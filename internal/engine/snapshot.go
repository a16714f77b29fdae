package engine

import (
	"github.com/shopspring/decimal"
)

// DefaultSnapshotDepth is the number of levels per side a snapshot shows by default.
const DefaultSnapshotDepth = 5

var two = decimal.NewFromInt(2)

// SnapshotLevel is one aggregated price level: the total resting quantity at a price,
// without per-order detail.
type SnapshotLevel struct {
	Price    decimal.Decimal
	Quantity int64
}

// Snapshot is an L2 view of one symbol. It is a detached copy of the book.
type Snapshot struct {
	Symbol   string
	Bids     []SnapshotLevel // best (highest) first
	Asks     []SnapshotLevel // best (lowest) first
	Spread   decimal.NullDecimal
	Midpoint decimal.NullDecimal
	BidVWAP  decimal.NullDecimal
	AskVWAP  decimal.NullDecimal
}

func (s Snapshot) BestBid() (decimal.Decimal, bool) {
	if len(s.Bids) == 0 {
		return decimal.Decimal{}, false
	}
	return s.Bids[0].Price, true
}

func (s Snapshot) BestAsk() (decimal.Decimal, bool) {
	if len(s.Asks) == 0 {
		return decimal.Decimal{}, false
	}
	return s.Asks[0].Price, true
}

// Snapshot aggregates up to depth best levels per side of symbol. It reports false if
// the symbol has never been seen. A depth of zero or less gives empty sides.
func (engine *Engine) Snapshot(symbol string, depth int) (Snapshot, bool) {
	book, ok := engine.books[symbol]
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		Symbol: symbol,
		Bids:   aggregate(book.bids, depth),
		Asks:   aggregate(book.asks, depth),
	}
	bestBid, hasBid := snap.BestBid()
	bestAsk, hasAsk := snap.BestAsk()
	if hasBid && hasAsk {
		snap.Spread = decimal.NewNullDecimal(bestAsk.Sub(bestBid))
		snap.Midpoint = decimal.NewNullDecimal(bestAsk.Add(bestBid).Div(two))
	}
	snap.BidVWAP = vwap(snap.Bids)
	snap.AskVWAP = vwap(snap.Asks)
	return snap, true
}

func aggregate(side *OneSide, depth int) []SnapshotLevel {
	levels := make([]SnapshotLevel, 0, max(0, min(depth, side.Len())))
	if depth <= 0 {
		return levels
	}
	side.walk(func(level *PriceLevel) bool {
		levels = append(levels, SnapshotLevel{
			Price:    level.price,
			Quantity: level.Quantity(),
		})
		return len(levels) < depth
	})
	return levels
}

// vwap is Σ(price × quantity) / Σ(quantity), absent when there is no quantity.
func vwap(levels []SnapshotLevel) decimal.NullDecimal {
	notional := decimal.Zero
	quantity := decimal.Zero
	for _, level := range levels {
		q := decimal.NewFromInt(level.Quantity)
		notional = notional.Add(level.Price.Mul(q))
		quantity = quantity.Add(q)
	}
	if quantity.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(notional.Div(quantity))
}
