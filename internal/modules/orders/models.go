package orders

import (
	"fmt"
	"strings"
	"time"
)

// OrderType is the direction of an order
type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

// IsValid checks whether the order type is one of the known values
func (t OrderType) IsValid() bool {
	return t == OrderTypeBuy || t == OrderTypeSell
}

// Order is a single BUY or SELL transaction record for a ticker symbol.
// Net position, average price and returns are derived from the order history,
// never stored on the order itself.
type Order struct {
	ID           string    `json:"id"`
	Type         OrderType `json:"type"`
	TickerSymbol string    `json:"tickerSymbol"`
	Quantity     int64     `json:"quantity"`
	Price        float64   `json:"price"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate checks the order fields against the data model constraints
func (o *Order) Validate() error {
	if !o.Type.IsValid() {
		return fmt.Errorf("invalid order type: %q", o.Type)
	}
	if strings.TrimSpace(o.TickerSymbol) == "" {
		return fmt.Errorf("ticker symbol must not be empty")
	}
	if o.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", o.Quantity)
	}
	if o.Price < 0 {
		return fmt.Errorf("price must be non-negative, got %f", o.Price)
	}
	return nil
}

// OrderDraft carries the caller-supplied fields of a new order.
// The id and timestamps are assigned by the store on creation.
type OrderDraft struct {
	Type         OrderType
	TickerSymbol string
	Quantity     int64
	Price        float64
}

// OrderPatch is a field-level-optional update to an existing order.
// A nil field means "keep the current value". Modelling absence explicitly
// keeps the merge-with-original logic statically checkable.
type OrderPatch struct {
	Type         *OrderType
	TickerSymbol *string
	Quantity     *int64
	Price        *float64
}

// ApplyTo resolves the patch against an existing order and returns the
// fully-resolved post-update order. The id and creation timestamp are
// always carried over from the original.
func (p OrderPatch) ApplyTo(o Order) Order {
	resolved := o
	if p.Type != nil {
		resolved.Type = *p.Type
	}
	if p.TickerSymbol != nil {
		resolved.TickerSymbol = normalizeSymbol(*p.TickerSymbol)
	}
	if p.Quantity != nil {
		resolved.Quantity = *p.Quantity
	}
	if p.Price != nil {
		resolved.Price = *p.Price
	}
	return resolved
}

// normalizeSymbol uppercases and trims a ticker symbol
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
