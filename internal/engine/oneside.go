package engine

import (
	"matchbook/internal/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

type PriceLevels = btree.BTreeG[*PriceLevel]

// OneSide is the set of price levels for one side of one symbol. Levels are kept
// ordered so that the best price is always the tree maximum:
//   - bids ascend by price, so the highest bid is the maximum.
//   - asks descend by price, so the lowest ask is the maximum.
type OneSide struct {
	side   common.Side
	levels *PriceLevels
}

func newOneSide(side common.Side) *OneSide {
	less := func(a, b *PriceLevel) bool {
		return a.price.LessThan(b.price)
	}
	if side == common.Ask {
		less = func(a, b *PriceLevel) bool {
			return a.price.GreaterThan(b.price)
		}
	}
	// Engines are single-writer, the tree does not need its own locking.
	return &OneSide{
		side:   side,
		levels: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
	}
}

func (s *OneSide) Side() common.Side { return s.side }

// Len is the number of price levels.
func (s *OneSide) Len() int { return s.levels.Len() }

func (s *OneSide) Empty() bool { return s.levels.Len() == 0 }

// find looks up the level at exactly price. The comparator only accounts for price, so
// a dummy level is used as the search key.
func (s *OneSide) find(price decimal.Decimal) (*PriceLevel, bool) {
	return s.levels.GetMut(&PriceLevel{price: price})
}

// best returns the level with the best price.
func (s *OneSide) best() (*PriceLevel, bool) {
	return s.levels.MaxMut()
}

// popBest drops the best level. It is only called once that level has drained.
func (s *OneSide) popBest() {
	s.levels.PopMax()
}

// insert appends the order to the back of the level at its price, creating the level
// when it does not exist yet.
func (s *OneSide) insert(order *common.Order) {
	level, ok := s.find(order.Price)
	if !ok {
		level = newPriceLevel(s.side, order.Price)
		s.levels.Set(level)
	}
	level.orders.Append(order)
}

// remove takes the order out of the level at price, dropping the level if it empties.
// It reports false if either the level or the order is missing.
func (s *OneSide) remove(price decimal.Decimal, id uuid.UUID) (*common.Order, bool) {
	level, ok := s.find(price)
	if !ok {
		return nil, false
	}
	order, err := level.orders.Remove(id)
	if err != nil {
		return nil, false
	}
	if level.orders.Len() == 0 {
		s.levels.Delete(level)
	}
	return order, true
}

// walk visits levels best first until fn returns false.
func (s *OneSide) walk(fn func(level *PriceLevel) bool) {
	s.levels.Reverse(fn)
}
