package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side int

const (
	// Bid orders buy. A bid crosses any ask priced at or below it.
	Bid Side = iota
	// Ask orders sell. An ask crosses any bid priced at or above it.
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

func (s Side) Valid() bool {
	return s == Bid || s == Ask
}

// Other returns the opposite side, where the counterparties of s rest.
func (s Side) Other() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// PriceIsMatchable reports whether an incoming order on side s at price incoming
// crosses a standing order at price standing.
func (s Side) PriceIsMatchable(incoming, standing decimal.Decimal) bool {
	if s == Bid {
		return incoming.GreaterThanOrEqual(standing)
	}
	return incoming.LessThanOrEqual(standing)
}

// FillPrice resolves the execution price of a fill. Once PriceIsMatchable holds this
// is always the standing order's price.
func (s Side) FillPrice(incoming, standing decimal.Decimal) decimal.Decimal {
	if s == Bid {
		return decimal.Min(incoming, standing)
	}
	return decimal.Max(incoming, standing)
}

// ParseSide accepts "bid" or "ask" in any case.
func ParseSide(token string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "bid":
		return Bid, nil
	case "ask":
		return Ask, nil
	}
	return Bid, fmt.Errorf("%w: unrecognized side %q, expected 'bid' or 'ask'", ErrInvalidOrder, token)
}

type OrderStatus int

const (
	Queued OrderStatus = iota
	PartialFill
	Filled
)

func (s OrderStatus) String() string {
	switch s {
	case Queued:
		return "queued"
	case PartialFill:
		return "partial_fill"
	case Filled:
		return "filled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}
