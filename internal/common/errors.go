package common

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInconsistentState = errors.New("inconsistent book state")
	ErrEmptyQueue        = errors.New("order queue is empty")
)

// OrderNotFoundError carries the id that could not be found.
type OrderNotFoundError struct {
	ID uuid.UUID
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrOrderNotFound, e.ID)
}

func (e *OrderNotFoundError) Is(target error) bool {
	return target == ErrOrderNotFound
}

// InconsistentStateError means the identity index and the level storage disagree.
// It is never expected at runtime and indicates a bug in index maintenance.
type InconsistentStateError struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	ID     uuid.UUID
	Reason string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s: order %s at %s:%s:%s: %s",
		ErrInconsistentState, e.ID, e.Symbol, e.Side, e.Price, e.Reason)
}

func (e *InconsistentStateError) Is(target error) bool {
	return target == ErrInconsistentState
}
