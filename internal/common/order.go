package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds the quantity of a single order. A price level would need more
// than 2^31 orders of this size before its total left the int64 range.
const MaxQuantity int64 = 1 << 32

type Order struct {
	ID               uuid.UUID       // Order tracked uuid
	Symbol           string          // Specific asset identifier
	Side             Side            // Order side
	Price            decimal.Decimal // Limiting price
	Quantity         int64           // Remaining quantity
	OriginalQuantity int64           // Total volume requested
}

// NewOrder builds a fresh order with a random id. The remaining and original
// quantities both start at quantity.
func NewOrder(side Side, symbol string, price decimal.Decimal, quantity int64) (Order, error) {
	order := Order{
		ID:               uuid.New(),
		Symbol:           symbol,
		Side:             side,
		Price:            price,
		Quantity:         quantity,
		OriginalQuantity: quantity,
	}
	if err := order.Validate(); err != nil {
		return Order{}, err
	}
	return order, nil
}

// ParseOrder is NewOrder with the price given as decimal text. The price never passes
// through a float64.
func ParseOrder(side Side, symbol, price string, quantity int64) (Order, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return Order{}, fmt.Errorf("%w: invalid price %q", ErrInvalidOrder, price)
	}
	return NewOrder(side, symbol, p, quantity)
}

// NewBid is ParseOrder for the bid side.
func NewBid(symbol, price string, quantity int64) (Order, error) {
	return ParseOrder(Bid, symbol, price, quantity)
}

func NewAsk(symbol, price string, quantity int64) (Order, error) {
	return ParseOrder(Ask, symbol, price, quantity)
}

// Validate checks the fields an order needs before it can reach a book.
func (order Order) Validate() error {
	switch {
	case order.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidOrder)
	case order.Symbol == "":
		return fmt.Errorf("%w: symbol cannot be empty", ErrInvalidOrder)
	case !order.Side.Valid():
		return fmt.Errorf("%w: unrecognized side %s", ErrInvalidOrder, order.Side)
	case order.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be greater than zero, got %d", ErrInvalidOrder, order.Quantity)
	case order.OriginalQuantity > MaxQuantity:
		return fmt.Errorf("%w: quantity %d exceeds the maximum of %d", ErrInvalidOrder, order.OriginalQuantity, MaxQuantity)
	case order.OriginalQuantity < order.Quantity:
		return fmt.Errorf("%w: remaining quantity %d exceeds original %d",
			ErrInvalidOrder, order.Quantity, order.OriginalQuantity)
	}
	return nil
}

func (order Order) Status() OrderStatus {
	switch {
	case order.Quantity == 0:
		return Filled
	case order.Quantity < order.OriginalQuantity:
		return PartialFill
	}
	return Queued
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:        %v
Symbol:    %s
Side:      %v
Price:     %s
Quantity:  %d (Total: %d)
Status:    %v`,
		order.ID,
		order.Symbol,
		order.Side,
		order.Price,
		order.Quantity,
		order.OriginalQuantity,
		order.Status(),
	)
}
