package engine_test

import (
	"testing"

	"matchbook/internal/common"
	"matchbook/internal/engine"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

func newTestOrder(t *testing.T, side common.Side, symbol, price string, qty int64) common.Order {
	t.Helper()
	order, err := common.ParseOrder(side, symbol, price, qty)
	require.NoError(t, err)
	return order
}

// placeTestOrders matches one order per quantity at price and returns them in order.
func placeTestOrders(t *testing.T, eng *engine.Engine, price string, side common.Side, quantities ...int64) []common.Order {
	t.Helper()
	orders := make([]common.Order, 0, len(quantities))
	for _, qty := range quantities {
		order := newTestOrder(t, side, "X", price, qty)
		_, err := eng.Match(order)
		require.NoError(t, err)
		orders = append(orders, order)
	}
	return orders
}

type quantity struct {
	remaining int64
	original  int64
}

// newQuantity creates a quantity with remaining and original the same value.
func newQuantity(q int64) quantity {
	return quantity{q, q}
}

type flatLevel struct {
	Price      string
	Quantities []quantity
}

// buildExpectedLevel constructs the flattened level to compare against.
func buildExpectedLevel(price string, quantities ...quantity) flatLevel {
	return flatLevel{
		Price:      decimal.RequireFromString(price).String(),
		Quantities: quantities,
	}
}

func flatten(levels []engine.PriceLevel) []flatLevel {
	flat := make([]flatLevel, 0, len(levels))
	for _, level := range levels {
		quantities := []quantity{}
		for _, order := range level.Orders().Orders() {
			quantities = append(quantities, quantity{order.Quantity, order.OriginalQuantity})
		}
		flat = append(flat, flatLevel{Price: level.Price().String(), Quantities: quantities})
	}
	return flat
}

func assertPrice(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected price %s, got %s", expected, actual)
}

// --- Tests ------------------------------------------------------------------

func TestMatch_RestingBidFullyFilledAtMakerPrice(t *testing.T) {
	eng := engine.New()
	bid := newTestOrder(t, common.Bid, "X", "10.00", 10)
	_, err := eng.Match(bid)
	require.NoError(t, err)

	ask := newTestOrder(t, common.Ask, "X", "8.00", 10)
	blotter, err := eng.Match(ask)
	require.NoError(t, err)

	require.Len(t, blotter.Trades, 1)
	trade := blotter.Trades[0]
	assert.Equal(t, ask.ID, trade.IncomingOrderID)
	assert.Equal(t, bid.ID, trade.StandingOrderID)
	assert.Equal(t, int64(10), trade.FillQuantity)
	assertPrice(t, "10.00", trade.FillPrice)

	assert.Equal(t, int64(0), blotter.Order.Quantity)
	assert.Equal(t, common.Filled, blotter.Order.Status())
	assert.Empty(t, eng.Levels("X", common.Bid))
	assert.Empty(t, eng.Levels("X", common.Ask))
	assert.Equal(t, 0, eng.Len())
	assert.NoError(t, eng.CheckConsistency())
}

func TestMatch_PartialFillRestsRemainder(t *testing.T) {
	eng := engine.New()
	placeTestOrders(t, eng, "10.00", common.Bid, 5)

	ask := newTestOrder(t, common.Ask, "X", "9.00", 8)
	blotter, err := eng.Match(ask)
	require.NoError(t, err)

	require.Len(t, blotter.Trades, 1)
	assert.Equal(t, int64(5), blotter.Trades[0].FillQuantity)
	assertPrice(t, "10.00", blotter.Trades[0].FillPrice)
	assert.Equal(t, int64(3), blotter.Order.Quantity)
	assert.Equal(t, common.PartialFill, blotter.Order.Status())

	assert.Empty(t, eng.Levels("X", common.Bid))
	assert.Equal(t,
		[]flatLevel{buildExpectedLevel("9.00", quantity{3, 8})},
		flatten(eng.Levels("X", common.Ask)),
	)

	resting, ok := eng.Order(ask.ID)
	require.True(t, ok)
	assert.Equal(t, int64(3), resting.Quantity)
	assert.Equal(t, int64(8), resting.OriginalQuantity)
	assert.NoError(t, eng.CheckConsistency())
}

func TestMatch_TimePriorityWithinLevel(t *testing.T) {
	eng := engine.New()
	asks := placeTestOrders(t, eng, "10.00", common.Ask, 3, 3)
	older, newer := asks[0], asks[1]

	bid := newTestOrder(t, common.Bid, "X", "10.00", 4)
	blotter, err := eng.Match(bid)
	require.NoError(t, err)

	require.Len(t, blotter.Trades, 2)
	assert.Equal(t, older.ID, blotter.Trades[0].StandingOrderID)
	assert.Equal(t, int64(3), blotter.Trades[0].FillQuantity)
	assert.Equal(t, newer.ID, blotter.Trades[1].StandingOrderID)
	assert.Equal(t, int64(1), blotter.Trades[1].FillQuantity)
	assert.Equal(t, int64(0), blotter.Order.Quantity)

	_, ok := eng.Order(older.ID)
	assert.False(t, ok, "filled order should leave the index")
	remaining, ok := eng.Order(newer.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2), remaining.Quantity)
	assert.NoError(t, eng.CheckConsistency())
}

func TestMatch_NoCrossRestsBothSides(t *testing.T) {
	eng := engine.New()

	// 1. Setup: 3 orders on the bid side and 3 on the ask side.
	placeTestOrders(t, eng, "99.0", common.Bid, 100, 90, 80)
	placeTestOrders(t, eng, "100.0", common.Ask, 100, 90, 80)

	// 2. Assertions
	assert.Equal(t,
		[]flatLevel{buildExpectedLevel("100.0", newQuantity(100), newQuantity(90), newQuantity(80))},
		flatten(eng.Levels("X", common.Ask)),
	)
	assert.Equal(t,
		[]flatLevel{buildExpectedLevel("99.0", newQuantity(100), newQuantity(90), newQuantity(80))},
		flatten(eng.Levels("X", common.Bid)),
	)
}

func TestMatch_MultipleLevels_WithMatch(t *testing.T) {
	eng := engine.New()

	// 1. Setup bids: highest price first (99 -> 98).
	placeTestOrders(t, eng, "99.0", common.Bid, 100, 90, 80)
	placeTestOrders(t, eng, "98.0", common.Bid, 50)

	// 2. Setup asks: lowest price first (100 -> 101).
	placeTestOrders(t, eng, "100.0", common.Ask, 100, 90)
	placeTestOrders(t, eng, "101.0", common.Ask, 20)

	// 3. Validate levels are ordered best first.
	assert.Equal(t, []flatLevel{
		buildExpectedLevel("100.0", newQuantity(100), newQuantity(90)),
		buildExpectedLevel("101.0", newQuantity(20)),
	}, flatten(eng.Levels("X", common.Ask)), "asks should be sorted low -> high")
	assert.Equal(t, []flatLevel{
		buildExpectedLevel("99.0", newQuantity(100), newQuantity(90), newQuantity(80)),
		buildExpectedLevel("98.0", newQuantity(50)),
	}, flatten(eng.Levels("X", common.Bid)), "bids should be sorted high -> low")

	// 4. Complete match of the front order.
	placeTestOrders(t, eng, "100.0", common.Bid, 100)
	assert.Equal(t, []flatLevel{
		buildExpectedLevel("100.0", newQuantity(90)),
		buildExpectedLevel("101.0", newQuantity(20)),
	}, flatten(eng.Levels("X", common.Ask)))

	// 5. Partial match.
	placeTestOrders(t, eng, "100.0", common.Bid, 20)
	assert.Equal(t, []flatLevel{
		buildExpectedLevel("100.0", quantity{70, 90}),
		buildExpectedLevel("101.0", newQuantity(20)),
	}, flatten(eng.Levels("X", common.Ask)))
	assert.NoError(t, eng.CheckConsistency())
}

func TestMatch_MultipleLevels_SweepBid(t *testing.T) {
	eng := engine.New()
	placeTestOrders(t, eng, "99.0", common.Bid, 100, 90, 80)
	placeTestOrders(t, eng, "100.0", common.Ask, 100, 90)
	placeTestOrders(t, eng, "101.0", common.Ask, 20)

	// 1. Sweep deep into the book (100.0, 101.0) and rest the remainder.
	bid := newTestOrder(t, common.Bid, "X", "103.0", 250)
	blotter, err := eng.Match(bid)
	require.NoError(t, err)

	require.Len(t, blotter.Trades, 3)
	assertPrice(t, "100.0", blotter.Trades[0].FillPrice)
	assertPrice(t, "100.0", blotter.Trades[1].FillPrice)
	assertPrice(t, "101.0", blotter.Trades[2].FillPrice)
	assert.Equal(t, int64(40), blotter.Order.Quantity)

	// 2. The remainder is now the best bid at its own limit.
	assert.Empty(t, eng.Levels("X", common.Ask))
	assert.Equal(t, []flatLevel{
		buildExpectedLevel("103.0", quantity{40, 250}),
		buildExpectedLevel("99.0", newQuantity(100), newQuantity(90), newQuantity(80)),
	}, flatten(eng.Levels("X", common.Bid)))
	assert.NoError(t, eng.CheckConsistency())
}

func TestMatch_MultipleLevels_SweepAsk(t *testing.T) {
	eng := engine.New()
	placeTestOrders(t, eng, "99.0", common.Bid, 100, 90, 80)
	placeTestOrders(t, eng, "98.0", common.Bid, 50)
	placeTestOrders(t, eng, "100.0", common.Ask, 100)

	placeTestOrders(t, eng, "96.0", common.Ask, 310)
	assert.Equal(t, []flatLevel{
		buildExpectedLevel("98.0", quantity{10, 50}),
	}, flatten(eng.Levels("X", common.Bid)))
	assert.NoError(t, eng.CheckConsistency())
}

func TestMatch_SymbolsAreIndependent(t *testing.T) {
	eng := engine.New()
	_, err := eng.Match(newTestOrder(t, common.Bid, "X", "10", 5))
	require.NoError(t, err)

	blotter, err := eng.Match(newTestOrder(t, common.Ask, "Y", "9", 5))
	require.NoError(t, err)
	assert.Empty(t, blotter.Trades)
	assert.Equal(t, []string{"X", "Y"}, eng.Symbols())
	assert.Equal(t, 2, eng.Len())
}

func TestMatch_RejectsInvalidOrders(t *testing.T) {
	eng := engine.New()

	_, err := eng.Match(common.Order{})
	assert.ErrorIs(t, err, common.ErrInvalidOrder)

	order := newTestOrder(t, common.Bid, "X", "10", 5)
	_, err = eng.Match(order)
	require.NoError(t, err)

	// The same id cannot rest twice.
	_, err = eng.Match(order)
	assert.ErrorIs(t, err, common.ErrInvalidOrder)
	assert.ErrorIs(t, eng.Enqueue(order), common.ErrInvalidOrder)
	assert.Equal(t, 1, eng.Len())
	assert.NoError(t, eng.CheckConsistency())
}

func TestMatchAll_BatchInSubmissionOrder(t *testing.T) {
	eng := engine.New()
	bid := newTestOrder(t, common.Bid, "X", "10", 5)
	ask := newTestOrder(t, common.Ask, "X", "10", 3)

	blotters, err := eng.MatchAll([]common.Order{bid, ask})
	require.NoError(t, err)
	require.Len(t, blotters, 2)

	// The bid rested first and was consumed by the ask in the same batch.
	assert.Empty(t, blotters[0].Trades)
	require.Len(t, blotters[1].Trades, 1)
	assert.Equal(t, bid.ID, blotters[1].Trades[0].StandingOrderID)

	resting, ok := eng.Order(bid.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2), resting.Quantity)
}

func TestMatchAll_ReturnsBlottersBeforeFailure(t *testing.T) {
	eng := engine.New()
	placeTestOrders(t, eng, "10", common.Bid, 5)

	ask := newTestOrder(t, common.Ask, "X", "10", 2)
	blotters, err := eng.MatchAll([]common.Order{ask, {}})
	assert.ErrorIs(t, err, common.ErrInvalidOrder)
	require.Len(t, blotters, 1)
	require.Len(t, blotters[0].Trades, 1)
	assert.Equal(t, int64(2), blotters[0].Trades[0].FillQuantity)
}

func TestBlotter_Stats(t *testing.T) {
	eng := engine.New()
	placeTestOrders(t, eng, "10.005", common.Ask, 1)
	placeTestOrders(t, eng, "10.10", common.Ask, 2)

	blotter, err := eng.Match(newTestOrder(t, common.Bid, "X", "11", 3))
	require.NoError(t, err)
	// 10.005 + 20.20 = 30.205 -> 30.21; (10.005 + 10.10) / 2 = 10.0525 -> 10.05
	assertPrice(t, "30.21", blotter.TotalCost)
	assertPrice(t, "10.05", blotter.AveragePrice)
	// The trades keep their exact prices.
	assertPrice(t, "10.005", blotter.Trades[0].FillPrice)

	empty, err := eng.Match(newTestOrder(t, common.Bid, "X", "1", 3))
	require.NoError(t, err)
	assert.True(t, empty.TotalCost.IsZero())
	assert.True(t, empty.AveragePrice.IsZero())
}

func TestEnqueue_DoesNotMatch(t *testing.T) {
	eng := engine.New()
	bid := newTestOrder(t, common.Bid, "X", "10", 5)
	ask := newTestOrder(t, common.Ask, "X", "9", 5)
	require.NoError(t, eng.Enqueue(bid))
	require.NoError(t, eng.Enqueue(ask))

	assert.Len(t, eng.Levels("X", common.Bid), 1)
	assert.Len(t, eng.Levels("X", common.Ask), 1)
	assert.Equal(t, 2, eng.Len())
	assert.NoError(t, eng.CheckConsistency())
}

func TestCancel(t *testing.T) {
	eng := engine.New()
	orders := placeTestOrders(t, eng, "10", common.Bid, 5, 6)

	// 1. Cancelling the first order keeps the level alive for the second.
	require.NoError(t, eng.Cancel(orders[0].ID))
	assert.Equal(t,
		[]flatLevel{buildExpectedLevel("10", newQuantity(6))},
		flatten(eng.Levels("X", common.Bid)),
	)

	// 2. Cancel is single use.
	err := eng.Cancel(orders[0].ID)
	require.ErrorIs(t, err, common.ErrOrderNotFound)
	var notFound *common.OrderNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, orders[0].ID, notFound.ID)

	// 3. Cancelling the last order drops the level.
	require.NoError(t, eng.Cancel(orders[1].ID))
	assert.Empty(t, eng.Levels("X", common.Bid))
	_, ok := eng.Level("X", common.Bid, decimal.NewFromInt(10))
	assert.False(t, ok)
	assert.NoError(t, eng.CheckConsistency())
}

func TestCancel_UnknownID(t *testing.T) {
	eng := engine.New()
	assert.ErrorIs(t, eng.Cancel(uuid.New()), common.ErrOrderNotFound)
}

func TestCancel_FilledOrderIsNotFound(t *testing.T) {
	eng := engine.New()
	bids := placeTestOrders(t, eng, "10", common.Bid, 5)
	placeTestOrders(t, eng, "10", common.Ask, 5)
	assert.ErrorIs(t, eng.Cancel(bids[0].ID), common.ErrOrderNotFound)
}

func TestLevel_IsACopy(t *testing.T) {
	eng := engine.New()
	orders := placeTestOrders(t, eng, "10.50", common.Ask, 4, 6)

	level, ok := eng.Level("X", common.Ask, decimal.RequireFromString("10.5"))
	require.True(t, ok)
	assert.Equal(t, common.Ask, level.Side())
	assert.Equal(t, int64(10), level.Quantity())
	assert.Equal(t, 2, level.Orders().Len())

	// Mutating the copy leaves the book alone.
	_, err := level.Orders().PopFront()
	require.NoError(t, err)
	front, err := level.Orders().Peek()
	require.NoError(t, err)
	front.Quantity = 1

	again, ok := eng.Level("X", common.Ask, decimal.RequireFromString("10.50"))
	require.True(t, ok)
	assert.Equal(t, 2, again.Orders().Len())
	assert.Equal(t, int64(10), again.Quantity())
	resting, ok := eng.Order(orders[1].ID)
	require.True(t, ok)
	assert.Equal(t, int64(6), resting.Quantity)

	_, ok = eng.Level("X", common.Bid, decimal.RequireFromString("10.50"))
	assert.False(t, ok)
	_, ok = eng.Level("Z", common.Ask, decimal.RequireFromString("10.50"))
	assert.False(t, ok)
}

func TestOrder_Unknown(t *testing.T) {
	eng := engine.New()
	_, ok := eng.Order(uuid.New())
	assert.False(t, ok)
}

func TestDepth(t *testing.T) {
	eng := engine.New()
	placeTestOrders(t, eng, "9", common.Bid, 1)
	placeTestOrders(t, eng, "8", common.Bid, 1)
	placeTestOrders(t, eng, "11", common.Ask, 1)

	bids, asks := eng.Depth("X")
	assert.Equal(t, 2, bids)
	assert.Equal(t, 1, asks)

	bids, asks = eng.Depth("unknown")
	assert.Zero(t, bids)
	assert.Zero(t, asks)
}
