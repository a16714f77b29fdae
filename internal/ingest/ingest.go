package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"matchbook/internal/common"
	"matchbook/internal/engine"

	"github.com/rs/zerolog/log"
)

// Submitter matches orders in the given order.
type Submitter interface {
	Submit(ctx context.Context, orders ...common.Order) ([]common.TradeBlotter, error)
}

// Loader rests orders without matching.
type Loader interface {
	Enqueue(ctx context.Context, order common.Order) error
}

// ReadOrders drains src and validates every record. Either every record converts or
// nothing is returned, so a bad row never leaves a book half loaded.
func ReadOrders(src Source) ([]common.Order, error) {
	var orders []common.Order
	for row := 0; ; row++ {
		record, err := src.Next()
		if errors.Is(err, io.EOF) {
			return orders, nil
		}
		if err != nil {
			return nil, err
		}
		order, err := record.Order(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
}

// Replay runs every record in src through the matching engine and returns one blotter
// per record.
func Replay(ctx context.Context, sub Submitter, src Source) ([]common.TradeBlotter, error) {
	orders, err := ReadOrders(src)
	if err != nil {
		return nil, err
	}
	blotters, err := sub.Submit(ctx, orders...)
	if err != nil {
		return blotters, fmt.Errorf("replay stopped after %d of %d orders: %w", len(blotters), len(orders), err)
	}
	log.Info().Int("orders", len(orders)).Msg("replay complete")
	return blotters, nil
}

// Load rests every record in src as a standing order and returns how many were loaded.
func Load(ctx context.Context, loader Loader, src Source) (int, error) {
	orders, err := ReadOrders(src)
	if err != nil {
		return 0, err
	}
	for i, order := range orders {
		if err := loader.Enqueue(ctx, order); err != nil {
			return i, fmt.Errorf("load stopped after %d of %d orders: %w", i, len(orders), err)
		}
	}
	log.Info().Int("orders", len(orders)).Msg("load complete")
	return len(orders), nil
}

// NewEngineFromSource builds a fresh engine seeded with the records of a snapshot.
func NewEngineFromSource(src Source) (*engine.Engine, error) {
	orders, err := ReadOrders(src)
	if err != nil {
		return nil, err
	}
	eng := engine.New()
	for _, order := range orders {
		if err := eng.Enqueue(order); err != nil {
			return nil, err
		}
	}
	return eng, nil
}
