package ingest

import (
	"errors"
	"fmt"
	"strings"

	"matchbook/internal/common"

	"github.com/shopspring/decimal"
)

// RequiredColumns are the fields every record source must provide.
var RequiredColumns = []string{"side", "symbol", "price", "quantity"}

// Record is one raw order record as produced by an external source. Fields are kept
// as text until Order validates them.
type Record struct {
	Side     string
	Symbol   string
	Price    string
	Quantity string
}

// RowError reports a record that failed validation together with its row index.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

func rowError(row int, format string, args ...any) error {
	return &RowError{
		Row: row,
		Err: fmt.Errorf("%w: "+format, append([]any{common.ErrInvalidOrder}, args...)...),
	}
}

// Order validates the record and converts it into a new order with a fresh id.
func (r Record) Order(row int) (common.Order, error) {
	if strings.TrimSpace(r.Side) == "" {
		return common.Order{}, rowError(row, "missing required field 'side'")
	}
	side, err := common.ParseSide(r.Side)
	if err != nil {
		return common.Order{}, rowError(row, "invalid side %q, expected 'bid' or 'ask'", r.Side)
	}

	if r.Symbol == "" {
		return common.Order{}, rowError(row, "symbol cannot be empty")
	}

	if strings.TrimSpace(r.Price) == "" {
		return common.Order{}, rowError(row, "missing required field 'price'")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
	if err != nil {
		return common.Order{}, rowError(row, "invalid price %q", r.Price)
	}

	if strings.TrimSpace(r.Quantity) == "" {
		return common.Order{}, rowError(row, "missing required field 'quantity'")
	}
	// Integral values written with a fractional part ("10.0") are accepted.
	qty, err := decimal.NewFromString(strings.TrimSpace(r.Quantity))
	if err != nil || !qty.IsInteger() || !qty.IsPositive() {
		return common.Order{}, rowError(row, "invalid quantity %q", r.Quantity)
	}
	if qty.GreaterThan(decimal.NewFromInt(common.MaxQuantity)) {
		return common.Order{}, rowError(row, "quantity %q out of range", r.Quantity)
	}

	order, err := common.NewOrder(side, r.Symbol, price, qty.IntPart())
	if err != nil {
		return common.Order{}, &RowError{Row: row, Err: err}
	}
	return order, nil
}

// IsRowError reports whether err came from validating a record and returns its row.
func IsRowError(err error) (int, bool) {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return rowErr.Row, true
	}
	return 0, false
}
