package engine

import (
	"matchbook/internal/common"

	"github.com/shopspring/decimal"
)

// PriceLevel holds every order resting at one exact price on one side. A level with an
// empty queue never stays in a book.
type PriceLevel struct {
	side   common.Side
	price  decimal.Decimal
	orders OrderQueue
}

func newPriceLevel(side common.Side, price decimal.Decimal) *PriceLevel {
	return &PriceLevel{side: side, price: price}
}

func (level *PriceLevel) Side() common.Side      { return level.side }
func (level *PriceLevel) Price() decimal.Decimal { return level.price }

// Orders is the level's FIFO queue.
func (level *PriceLevel) Orders() *OrderQueue { return &level.orders }

// Quantity is the aggregate resting quantity at this price.
func (level *PriceLevel) Quantity() int64 { return level.orders.Quantity() }

// Clone returns a copy with its own queue and order values. Changes to the copy never
// reach the book.
func (level *PriceLevel) Clone() PriceLevel {
	return PriceLevel{
		side:   level.side,
		price:  level.price,
		orders: level.orders.clone(),
	}
}
