package orders

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jatinmanav/StockApp/internal/database"
)

const testReferencePrice = 100.0

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "orders.db"),
		Profile: database.ProfileLedger,
		Name:    "orders",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewService(db, testReferencePrice, log)
}

func mustCreate(t *testing.T, svc *Service, orderType OrderType, symbol string, quantity int64, price float64) *Order {
	t.Helper()
	order, err := svc.CreateOrder(OrderDraft{
		Type:         orderType,
		TickerSymbol: symbol,
		Quantity:     quantity,
		Price:        price,
	})
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

// netFromTrades recomputes per-symbol net quantities from the full history view
func netFromTrades(t *testing.T, svc *Service) map[string]int64 {
	t.Helper()
	trades, err := svc.GetTrades()
	require.NoError(t, err)

	net := make(map[string]int64)
	for _, st := range trades {
		for _, line := range st.Orders {
			if line.Type == OrderTypeBuy {
				net[st.Symbol] += line.Quantity
			} else {
				net[st.Symbol] -= line.Quantity
			}
		}
	}
	return net
}

func TestCreateOrder_BuyAppearsInPortfolio(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)

	portfolio, err := svc.GetPortfolio()
	require.NoError(t, err)
	require.Len(t, portfolio, 1)
	assert.Equal(t, Position{Symbol: "X", Quantity: 10, AveragePrice: 100}, portfolio[0])
}

func TestCreateOrder_SellOnEmptyPositionFails(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateOrder(OrderDraft{Type: OrderTypeSell, TickerSymbol: "X", Quantity: 5, Price: 110})
	assert.ErrorIs(t, err, ErrInsufficientSecurities)

	// The failed mutation must leave no trace in the ledger
	trades, err := svc.GetTrades()
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestCreateOrder_SellWithinHoldings(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeSell, "X", 10, 110)

	// Selling the full position is legal; overdrawing by one is not
	_, err := svc.CreateOrder(OrderDraft{Type: OrderTypeSell, TickerSymbol: "X", Quantity: 1, Price: 110})
	assert.ErrorIs(t, err, ErrInsufficientSecurities)
}

func TestCreateOrder_NormalizesSymbol(t *testing.T) {
	svc := newTestService(t)

	order := mustCreate(t, svc, OrderTypeBuy, " aapl ", 10, 100)
	assert.Equal(t, "AAPL", order.TickerSymbol)

	// Holdings under the normalized symbol cover a SELL for a sloppy variant
	mustCreate(t, svc, OrderTypeSell, "aapl", 10, 100)
}

func TestGetPortfolio_AveragePriceIsWeightedMean(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeBuy, "X", 10, 200)

	portfolio, err := svc.GetPortfolio()
	require.NoError(t, err)
	require.Len(t, portfolio, 1)
	assert.Equal(t, int64(20), portfolio[0].Quantity)
	assert.InDelta(t, 150.0, portfolio[0].AveragePrice, 1e-9)
}

func TestGetPortfolio_ExcludesFlatPositions(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeSell, "X", 10, 110)
	mustCreate(t, svc, OrderTypeBuy, "Y", 3, 50)

	portfolio, err := svc.GetPortfolio()
	require.NoError(t, err)
	require.Len(t, portfolio, 1)
	assert.Equal(t, "Y", portfolio[0].Symbol)

	// The history view still lists the flat symbol with both orders
	trades, err := svc.GetTrades()
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "X", trades[0].Symbol)
	assert.Len(t, trades[0].Orders, 2)
}

func TestGetTrades_GroupsBySymbolInInsertionOrder(t *testing.T) {
	svc := newTestService(t)

	first := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeBuy, "Y", 5, 200)
	second := mustCreate(t, svc, OrderTypeSell, "X", 4, 120)

	trades, err := svc.GetTrades()
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "X", trades[0].Symbol)
	require.Len(t, trades[0].Orders, 2)
	assert.Equal(t, first.ID, trades[0].Orders[0].ID)
	assert.Equal(t, second.ID, trades[0].Orders[1].ID)

	assert.Equal(t, "Y", trades[1].Symbol)
	require.Len(t, trades[1].Orders, 1)
}

func TestGetReturns(t *testing.T) {
	svc := newTestService(t)

	t.Run("Empty ledger returns zero", func(t *testing.T) {
		returns, err := svc.GetReturns()
		require.NoError(t, err)
		assert.Equal(t, 0.0, returns)
	})

	t.Run("Single buy below reference price", func(t *testing.T) {
		mustCreate(t, svc, OrderTypeBuy, "X", 10, 90)

		returns, err := svc.GetReturns()
		require.NoError(t, err)
		assert.InDelta(t, 100.0, returns, 1e-9) // (100-90)*10
	})

	t.Run("Flat position contributes nothing", func(t *testing.T) {
		mustCreate(t, svc, OrderTypeBuy, "Y", 5, 80)
		mustCreate(t, svc, OrderTypeSell, "Y", 5, 95)

		returns, err := svc.GetReturns()
		require.NoError(t, err)
		assert.InDelta(t, 100.0, returns, 1e-9) // unchanged: (100-80)*0 = 0 for Y
	})
}

func TestUpdateOrder_NotFound(t *testing.T) {
	svc := newTestService(t)

	quantity := int64(5)
	_, err := svc.UpdateOrder("does-not-exist", OrderPatch{Quantity: &quantity})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateOrder_GrowingABuyIsLegal(t *testing.T) {
	svc := newTestService(t)

	order := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)

	quantity := int64(15)
	updated, err := svc.UpdateOrder(order.ID, OrderPatch{Quantity: &quantity})
	require.NoError(t, err)
	assert.Equal(t, int64(15), updated.Quantity)
	assert.Equal(t, order.ID, updated.ID)
}

func TestUpdateOrder_ShrinkingABuyBelowDependentSellsIsIllegal(t *testing.T) {
	svc := newTestService(t)

	buy := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeSell, "X", 5, 110)

	// Net position is 5; shrinking the BUY to 4 would leave the SELL uncovered
	quantity := int64(4)
	_, err := svc.UpdateOrder(buy.ID, OrderPatch{Quantity: &quantity})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	// Rollback: the order is unchanged
	net := netFromTrades(t, svc)
	assert.Equal(t, int64(5), net["X"])
}

func TestUpdateOrder_GrowingASellBeyondHoldingsIsIllegal(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	sell := mustCreate(t, svc, OrderTypeSell, "X", 5, 110)

	quantity := int64(11)
	_, err := svc.UpdateOrder(sell.ID, OrderPatch{Quantity: &quantity})
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestUpdateOrder_GrowingASellWithinHoldingsIsLegal(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 20, 100)
	sell := mustCreate(t, svc, OrderTypeSell, "X", 5, 110)

	quantity := int64(10)
	updated, err := svc.UpdateOrder(sell.ID, OrderPatch{Quantity: &quantity})
	require.NoError(t, err)
	assert.Equal(t, int64(10), updated.Quantity)

	net := netFromTrades(t, svc)
	assert.Equal(t, int64(10), net["X"])
}

func TestUpdateOrder_MovingACoveredBuyToAnotherSymbol(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	second := mustCreate(t, svc, OrderTypeBuy, "X", 10, 120)

	symbol := "Y"
	updated, err := svc.UpdateOrder(second.ID, OrderPatch{TickerSymbol: &symbol})
	require.NoError(t, err)
	assert.Equal(t, "Y", updated.TickerSymbol)

	net := netFromTrades(t, svc)
	assert.Equal(t, int64(10), net["X"])
	assert.Equal(t, int64(10), net["Y"])
}

func TestUpdateOrder_MovingADependedOnBuyIsIllegal(t *testing.T) {
	svc := newTestService(t)

	buy := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeSell, "X", 5, 110)

	// Net is 5 < the BUY's quantity of 10: removing its effect from X is blocked
	symbol := "Y"
	_, err := svc.UpdateOrder(buy.ID, OrderPatch{TickerSymbol: &symbol})
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestUpdateOrder_FlippingACoveredBuyToSell(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 30, 100)
	small := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)

	sell := OrderTypeSell
	updated, err := svc.UpdateOrder(small.ID, OrderPatch{Type: &sell})
	require.NoError(t, err)
	assert.Equal(t, OrderTypeSell, updated.Type)

	net := netFromTrades(t, svc)
	assert.Equal(t, int64(20), net["X"]) // 30 buy - 10 sell
}

func TestUpdateOrder_FlippingAnUncoveredBuyIsIllegal(t *testing.T) {
	svc := newTestService(t)

	buy := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)

	// Flipping turns +10 into -10 in one step; holdings of 10 cannot cover 20
	sell := OrderTypeSell
	_, err := svc.UpdateOrder(buy.ID, OrderPatch{Type: &sell})
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestUpdateOrder_PriceOnlyPatchSkipsHoldingsGates(t *testing.T) {
	svc := newTestService(t)

	buy := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeSell, "X", 10, 110)

	// The position is flat, but a price edit moves no quantity anywhere
	price := 95.0
	updated, err := svc.UpdateOrder(buy.ID, OrderPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 95.0, updated.Price)
}

func TestDeleteOrder_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.DeleteOrder("does-not-exist")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDeleteOrder_BuyWithDependentSellIsIllegal(t *testing.T) {
	svc := newTestService(t)

	buy := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	sell := mustCreate(t, svc, OrderTypeSell, "X", 5, 110)

	_, err := svc.DeleteOrder(buy.ID)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	// Remove the dependent SELL first, then the BUY goes through
	removed, err := svc.DeleteOrder(sell.ID)
	require.NoError(t, err)
	assert.Equal(t, sell.ID, removed.ID)

	removed, err = svc.DeleteOrder(buy.ID)
	require.NoError(t, err)
	assert.Equal(t, buy.ID, removed.ID)

	trades, err := svc.GetTrades()
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestDeleteOrder_SellIsAlwaysLegal(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	sell := mustCreate(t, svc, OrderTypeSell, "X", 10, 110)

	removed, err := svc.DeleteOrder(sell.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderTypeSell, removed.Type)

	net := netFromTrades(t, svc)
	assert.Equal(t, int64(10), net["X"])
}

func TestQueriesAreIdempotent(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeSell, "X", 4, 110)
	mustCreate(t, svc, OrderTypeBuy, "Y", 3, 80)

	trades1, err := svc.GetTrades()
	require.NoError(t, err)
	portfolio1, err := svc.GetPortfolio()
	require.NoError(t, err)
	returns1, err := svc.GetReturns()
	require.NoError(t, err)

	trades2, err := svc.GetTrades()
	require.NoError(t, err)
	portfolio2, err := svc.GetPortfolio()
	require.NoError(t, err)
	returns2, err := svc.GetReturns()
	require.NoError(t, err)

	assert.Equal(t, trades1, trades2)
	assert.Equal(t, portfolio1, portfolio2)
	assert.Equal(t, returns1, returns2)
}

// TestNetPositionNeverGoesNegative drives a mixed mutation sequence, some of
// it illegal, and verifies the committed ledger never holds a negative
// position for any symbol.
func TestNetPositionNeverGoesNegative(t *testing.T) {
	svc := newTestService(t)

	buyX := mustCreate(t, svc, OrderTypeBuy, "X", 10, 100)
	mustCreate(t, svc, OrderTypeBuy, "Y", 8, 50)
	mustCreate(t, svc, OrderTypeSell, "X", 6, 120)

	// Each of these would overdraw a position and must fail
	_, err := svc.CreateOrder(OrderDraft{Type: OrderTypeSell, TickerSymbol: "X", Quantity: 5, Price: 120})
	assert.ErrorIs(t, err, ErrInsufficientSecurities)

	_, err = svc.DeleteOrder(buyX.ID)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	quantity := int64(3)
	_, err = svc.UpdateOrder(buyX.ID, OrderPatch{Quantity: &quantity})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	// A legal partial sell on Y
	mustCreate(t, svc, OrderTypeSell, "Y", 8, 55)

	for symbol, net := range netFromTrades(t, svc) {
		assert.GreaterOrEqual(t, net, int64(0), "net position for %s must never be negative", symbol)
	}
}
