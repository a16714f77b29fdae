package common

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade accounts for the two orders which matched. FillPrice is always the standing
// (maker) order's price.
type Trade struct {
	IncomingOrderID uuid.UUID
	StandingOrderID uuid.UUID
	FillQuantity    int64
	FillPrice       decimal.Decimal
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Incoming:     %v
Standing:     %v
FillQuantity: %d
FillPrice:    %s`,
		t.IncomingOrderID,
		t.StandingOrderID,
		t.FillQuantity,
		t.FillPrice,
	)
}

// blotterPlaces is the reporting precision of the blotter aggregates. The trades keep
// their exact prices.
const blotterPlaces = 2

// TradeBlotter is the outcome of matching one incoming order: the order in its
// post-match state and the trades it produced, in execution order.
type TradeBlotter struct {
	Order        Order
	Trades       []Trade
	TotalCost    decimal.Decimal // Σ(price × quantity), 2 dp
	AveragePrice decimal.Decimal // mean fill price (not quantity weighted), 2 dp
}

func NewTradeBlotter(order Order, trades []Trade) TradeBlotter {
	blotter := TradeBlotter{
		Order:        order,
		Trades:       trades,
		TotalCost:    decimal.Zero,
		AveragePrice: decimal.Zero,
	}
	if len(trades) == 0 {
		return blotter
	}

	sumCost := decimal.Zero
	sumPrice := decimal.Zero
	for _, t := range trades {
		sumCost = sumCost.Add(t.FillPrice.Mul(decimal.NewFromInt(t.FillQuantity)))
		sumPrice = sumPrice.Add(t.FillPrice)
	}
	blotter.TotalCost = sumCost.Round(blotterPlaces)
	blotter.AveragePrice = sumPrice.Div(decimal.NewFromInt(int64(len(trades)))).Round(blotterPlaces)
	return blotter
}

// FilledQuantity is the quantity executed across all trades.
func (b TradeBlotter) FilledQuantity() int64 {
	var filled int64
	for _, t := range b.Trades {
		filled += t.FillQuantity
	}
	return filled
}

func (b TradeBlotter) String() string {
	return fmt.Sprintf("order=%s side=%s trades=%d filled=%d remaining=%d total_cost=%s average_price=%s",
		b.Order.ID, b.Order.Side, len(b.Trades), b.FilledQuantity(), b.Order.Quantity,
		b.TotalCost.StringFixed(blotterPlaces), b.AveragePrice.StringFixed(blotterPlaces))
}
