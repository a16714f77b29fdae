package engine

import (
	"fmt"
	"sort"

	"matchbook/internal/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// location is where a resting order lives.
type location struct {
	symbol string
	side   common.Side
	price  decimal.Decimal
}

// Engine is the matching engine. It owns one OrderBook per symbol and an index from
// order id to the order's location, which is kept in step with the level storage.
//
// An Engine is not safe for concurrent use. Mutations must be serialised by the caller
// (see the shard package for per-symbol ownership).
type Engine struct {
	books map[string]*OrderBook
	index map[uuid.UUID]location
}

func New() *Engine {
	return &Engine{
		books: make(map[string]*OrderBook),
		index: make(map[uuid.UUID]location),
	}
}

// book returns the book for symbol, creating it if needed.
func (engine *Engine) book(symbol string) *OrderBook {
	book, ok := engine.books[symbol]
	if !ok {
		book = NewOrderBook(symbol)
		engine.books[symbol] = book
	}
	return book
}

// admit checks an order may enter the book. Nothing is mutated before this passes.
func (engine *Engine) admit(order common.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if _, ok := engine.index[order.ID]; ok {
		return fmt.Errorf("%w: order %s is already resting", common.ErrInvalidOrder, order.ID)
	}
	return nil
}

// Match runs the incoming order against the book for its symbol. Any unfilled
// remainder rests on the order's own side. The returned blotter carries the order in
// its post-match state and the trades it produced.
func (engine *Engine) Match(order common.Order) (common.TradeBlotter, error) {
	if err := engine.admit(order); err != nil {
		return common.TradeBlotter{}, err
	}
	log.Debug().
		Stringer("id", order.ID).
		Str("symbol", order.Symbol).
		Stringer("side", order.Side).
		Stringer("price", order.Price).
		Int64("quantity", order.Quantity).
		Msg("processing order")

	book := engine.book(order.Symbol)
	incoming := order
	trades := book.match(&incoming, func(standing *common.Order) {
		delete(engine.index, standing.ID)
	})

	if incoming.Quantity > 0 {
		resting := incoming
		book.rest(&resting)
		engine.index[resting.ID] = location{
			symbol: resting.Symbol,
			side:   resting.Side,
			price:  resting.Price,
		}
	}

	blotter := common.NewTradeBlotter(incoming, trades)
	log.Debug().Stringer("blotter", blotter).Msg("matched")
	return blotter, nil
}

// MatchAll matches orders strictly in the given order, so a remainder left by one order
// can be consumed by a later one. On error it returns the blotters of the orders that
// were matched before the failure.
func (engine *Engine) MatchAll(orders []common.Order) ([]common.TradeBlotter, error) {
	blotters := make([]common.TradeBlotter, 0, len(orders))
	for i, order := range orders {
		blotter, err := engine.Match(order)
		if err != nil {
			return blotters, fmt.Errorf("order %d of %d: %w", i, len(orders), err)
		}
		blotters = append(blotters, blotter)
	}
	return blotters, nil
}

// Enqueue rests the order on its own side without matching. It exists to seed a book
// from an already consistent state. No crossing check is made.
func (engine *Engine) Enqueue(order common.Order) error {
	if err := engine.admit(order); err != nil {
		return err
	}
	log.Debug().Stringer("id", order.ID).Str("symbol", order.Symbol).Msg("adding order to book")

	resting := order
	engine.book(order.Symbol).rest(&resting)
	engine.index[order.ID] = location{
		symbol: order.Symbol,
		side:   order.Side,
		price:  order.Price,
	}
	return nil
}

// Cancel removes a resting order. Unknown ids fail with an OrderNotFoundError. An index
// entry that does not resolve to a resting order is a broken invariant and fails with
// an InconsistentStateError rather than being ignored.
func (engine *Engine) Cancel(id uuid.UUID) error {
	loc, ok := engine.index[id]
	if !ok {
		log.Debug().Stringer("id", id).Msg("cancel for unknown order")
		return &common.OrderNotFoundError{ID: id}
	}
	delete(engine.index, id)

	book, ok := engine.books[loc.symbol]
	if !ok {
		return engine.inconsistent(loc, id, "symbol has no book")
	}
	if _, ok := book.Side(loc.side).remove(loc.price, id); !ok {
		return engine.inconsistent(loc, id, "price level or order missing")
	}
	log.Debug().Stringer("id", id).Str("symbol", loc.symbol).Msg("cancelled order")
	return nil
}

func (engine *Engine) inconsistent(loc location, id uuid.UUID, reason string) error {
	err := &common.InconsistentStateError{
		Symbol: loc.symbol,
		Side:   loc.side,
		Price:  loc.price,
		ID:     id,
		Reason: reason,
	}
	log.Error().Err(err).Msg("order index diverged from book")
	return err
}

// Order returns a copy of the resting order with the given id.
func (engine *Engine) Order(id uuid.UUID) (common.Order, bool) {
	loc, ok := engine.index[id]
	if !ok {
		return common.Order{}, false
	}
	book, ok := engine.books[loc.symbol]
	if !ok {
		return common.Order{}, false
	}
	level, ok := book.Side(loc.side).find(loc.price)
	if !ok {
		return common.Order{}, false
	}
	return level.orders.Get(id)
}

// Level returns a copy of the level at exactly price.
func (engine *Engine) Level(symbol string, side common.Side, price decimal.Decimal) (PriceLevel, bool) {
	book, ok := engine.books[symbol]
	if !ok {
		return PriceLevel{}, false
	}
	level, ok := book.Side(side).find(price)
	if !ok {
		return PriceLevel{}, false
	}
	return level.Clone(), true
}

// Levels returns copies of every level on one side of symbol, best price first.
func (engine *Engine) Levels(symbol string, side common.Side) []PriceLevel {
	book, ok := engine.books[symbol]
	if !ok {
		return nil
	}
	levels := make([]PriceLevel, 0, book.Side(side).Len())
	book.Side(side).walk(func(level *PriceLevel) bool {
		levels = append(levels, level.Clone())
		return true
	})
	return levels
}

// Symbols lists every symbol the engine has seen, sorted.
func (engine *Engine) Symbols() []string {
	symbols := make([]string, 0, len(engine.books))
	for symbol := range engine.books {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Len is the number of resting orders across all symbols.
func (engine *Engine) Len() int { return len(engine.index) }

// Depth returns the number of bid and ask price levels for symbol.
func (engine *Engine) Depth(symbol string) (bids, asks int) {
	book, ok := engine.books[symbol]
	if !ok {
		return 0, 0
	}
	return book.bids.Len(), book.asks.Len()
}

// CheckConsistency verifies that every indexed id resolves to exactly one resting order
// at its recorded location and that every resting order is indexed.
func (engine *Engine) CheckConsistency() error {
	seen := 0
	for _, book := range engine.books {
		for _, side := range []*OneSide{book.bids, book.asks} {
			var err error
			side.walk(func(level *PriceLevel) bool {
				if level.orders.Len() == 0 {
					err = engine.inconsistent(location{book.symbol, side.side, level.price}, uuid.Nil, "empty price level")
					return false
				}
				for _, order := range level.orders.orders {
					loc, ok := engine.index[order.ID]
					if !ok {
						err = engine.inconsistent(location{book.symbol, side.side, level.price}, order.ID, "resting order not indexed")
						return false
					}
					if loc.symbol != book.symbol || loc.side != side.side || !loc.price.Equal(level.price) {
						err = engine.inconsistent(loc, order.ID, "indexed at a different location")
						return false
					}
					seen++
				}
				return true
			})
			if err != nil {
				return err
			}
		}
	}
	if seen != len(engine.index) {
		return fmt.Errorf("%w: %d indexed orders but %d resting", common.ErrInconsistentState, len(engine.index), seen)
	}
	return nil
}
