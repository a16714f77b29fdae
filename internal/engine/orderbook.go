package engine

import (
	"matchbook/internal/common"

	"github.com/rs/zerolog/log"
)

// OrderBook is the pair of sides for one traded symbol. Books are created on the first
// order for a symbol and are never removed; an empty book is a valid resting state.
type OrderBook struct {
	symbol string
	bids   *OneSide
	asks   *OneSide
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newOneSide(common.Bid),
		asks:   newOneSide(common.Ask),
	}
}

func (book *OrderBook) Symbol() string { return book.symbol }

// Side returns the levels for side.
func (book *OrderBook) Side(side common.Side) *OneSide {
	if side == common.Bid {
		return book.bids
	}
	return book.asks
}

// match consumes the opposite side from its best level outward while the incoming
// order crosses, in price-time priority. The incoming order's remaining quantity is
// decremented in place. Every standing order that is fully filled is handed to
// filled so the caller can drop it from its index.
//
// Levels beyond the best are strictly worse, so the first non-crossing level ends the
// sweep.
func (book *OrderBook) match(incoming *common.Order, filled func(standing *common.Order)) []common.Trade {
	var trades []common.Trade
	levels := book.Side(incoming.Side.Other())

	for incoming.Quantity > 0 {
		level, ok := levels.best()
		if !ok || !incoming.Side.PriceIsMatchable(incoming.Price, level.price) {
			break
		}

		for incoming.Quantity > 0 && level.orders.Len() > 0 {
			// Len was checked above, the queue cannot be empty here.
			standing, _ := level.orders.Peek()

			matchQty := min(incoming.Quantity, standing.Quantity)
			incoming.Quantity -= matchQty
			standing.Quantity -= matchQty

			trade := common.Trade{
				IncomingOrderID: incoming.ID,
				StandingOrderID: standing.ID,
				FillQuantity:    matchQty,
				FillPrice:       incoming.Side.FillPrice(incoming.Price, standing.Price),
			}
			trades = append(trades, trade)
			log.Debug().
				Str("symbol", book.symbol).
				Stringer("incoming", trade.IncomingOrderID).
				Stringer("standing", trade.StandingOrderID).
				Int64("quantity", matchQty).
				Stringer("price", trade.FillPrice).
				Msg("fill")

			if standing.Quantity == 0 {
				_, _ = level.orders.PopFront()
				filled(standing)
			}
		}

		// Full consumption case (i.e. empty level).
		if level.orders.Len() == 0 {
			log.Debug().
				Str("symbol", book.symbol).
				Stringer("side", level.side).
				Stringer("price", level.price).
				Msg("flushing price level")
			levels.popBest()
		}
	}
	return trades
}

// rest places the order on its own side.
func (book *OrderBook) rest(order *common.Order) {
	book.Side(order.Side).insert(order)
}
