package orders

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// queryer is the subset of database operations the repository needs.
// Both *sql.DB and *sql.Tx satisfy it, so the same repository code serves
// plain reads and transactional read-modify-write sequences.
type queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// ordersColumns is the list of columns for the orders table
// Used to avoid SELECT * which can break when schema changes
// Column order must match the scan functions below
const ordersColumns = `id, type, ticker_symbol, quantity, price, created_at, updated_at`

// OrderRepository handles order database operations
type OrderRepository struct {
	q   queryer
	log zerolog.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{
		q:   db,
		log: log.With().Str("repo", "orders").Logger(),
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
// All operations on the copy run inside the transaction; the original
// repository is unaffected.
func (r *OrderRepository) WithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx, log: r.log}
}

// Create inserts a new order record. The id and timestamps are assigned here:
// the store owns the persisted representation.
func (r *OrderRepository) Create(order *Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Second)
	order.CreatedAt = now
	order.UpdatedAt = now
	order.TickerSymbol = normalizeSymbol(order.TickerSymbol)

	query := `
		INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.Exec(query,
		order.ID,
		string(order.Type),
		order.TickerSymbol,
		order.Quantity,
		order.Price,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.log.Info().
		Str("id", order.ID).
		Str("symbol", order.TickerSymbol).
		Str("type", string(order.Type)).
		Int64("quantity", order.Quantity).
		Msg("Order created")

	return nil
}

// GetByID retrieves an order by id. Returns (nil, nil) when no order exists.
func (r *OrderRepository) GetByID(id string) (*Order, error) {
	query := "SELECT " + ordersColumns + " FROM orders WHERE id = ?"

	row := r.q.QueryRow(query, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by id: %w", err)
	}

	return &order, nil
}

// GetBySymbol retrieves all orders for a ticker symbol in insertion order
func (r *OrderRepository) GetBySymbol(symbol string) ([]Order, error) {
	query := `
		SELECT ` + ordersColumns + ` FROM orders
		WHERE ticker_symbol = ?
		ORDER BY rowid ASC
	`

	rows, err := r.q.Query(query, normalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to get orders by symbol: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// GetAll retrieves every order in insertion order
func (r *OrderRepository) GetAll() ([]Order, error) {
	query := "SELECT " + ordersColumns + " FROM orders ORDER BY rowid ASC"

	rows, err := r.q.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// Update rewrites all mutable fields of an existing order.
// The id and created_at are immutable; updated_at is refreshed here.
func (r *OrderRepository) Update(order *Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	order.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	order.TickerSymbol = normalizeSymbol(order.TickerSymbol)

	query := `
		UPDATE orders
		SET type = ?, ticker_symbol = ?, quantity = ?, price = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.q.Exec(query,
		string(order.Type),
		order.TickerSymbol,
		order.Quantity,
		order.Price,
		order.UpdatedAt.Unix(),
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	r.log.Info().Str("id", order.ID).Str("symbol", order.TickerSymbol).Msg("Order updated")

	return nil
}

// Delete removes an order permanently. There is no soft delete.
func (r *OrderRepository) Delete(id string) error {
	result, err := r.q.Exec("DELETE FROM orders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	r.log.Info().Str("id", id).Msg("Order deleted")

	return nil
}

// Helper functions

// rowScanner abstracts *sql.Row and *sql.Rows for scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (Order, error) {
	var order Order
	var orderType string
	var createdAt, updatedAt int64

	err := row.Scan(
		&order.ID,
		&orderType,
		&order.TickerSymbol,
		&order.Quantity,
		&order.Price,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return order, err
	}

	order.Type = OrderType(orderType)
	order.CreatedAt = time.Unix(createdAt, 0).UTC()
	order.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return order, nil
}

func collectOrders(rows *sql.Rows) ([]Order, error) {
	var result []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return result, nil
}
