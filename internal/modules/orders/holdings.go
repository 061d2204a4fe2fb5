package orders

import "gonum.org/v1/gonum/stat"

// Holdings calculations. These are pure functions over a slice of orders:
// the caller decides the snapshot (all orders, one symbol's orders, orders
// read inside a transaction) and the functions never touch the store.

// NetQuantity returns the signed sum of quantities across the given orders:
// BUY adds, SELL subtracts. Returns 0 for an empty slice - absence of orders
// is not an error.
func NetQuantity(os []Order) int64 {
	var total int64
	for _, o := range os {
		if o.Type == OrderTypeBuy {
			total += o.Quantity
		} else {
			total -= o.Quantity
		}
	}
	return total
}

// AverageBuyPrice returns the cost basis of the given orders: total BUY spend
// divided by total BUY quantity, i.e. the quantity-weighted mean of BUY
// prices. SELL orders do not affect the cost basis.
//
// A slice with no BUY orders has no meaningful cost basis; it returns 0.
// Under the no-negative-position invariant such a slice cannot describe a
// held position, so the 0 never reaches a portfolio line with quantity > 0.
func AverageBuyPrice(os []Order) float64 {
	var prices, weights []float64
	for _, o := range os {
		if o.Type == OrderTypeBuy {
			prices = append(prices, o.Price)
			weights = append(weights, float64(o.Quantity))
		}
	}
	if len(prices) == 0 {
		return 0
	}
	return stat.Mean(prices, weights)
}
