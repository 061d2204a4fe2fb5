package orders

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Jatinmanav/StockApp/internal/database"
)

// Service is the order mutation engine and query service. Mutations are the
// only operations with cross-record invariants to protect: each one runs as a
// single transaction so the read-holdings, validate, write sequence observes a
// consistent snapshot. Queries are stateless aggregation over the order log.
type Service struct {
	db             *database.DB
	repo           *OrderRepository
	referencePrice float64
	log            zerolog.Logger
}

// NewService creates the order service. referencePrice is the fixed quote
// used by the returns projection.
func NewService(db *database.DB, referencePrice float64, log zerolog.Logger) *Service {
	return &Service{
		db:             db,
		repo:           NewOrderRepository(db.Conn(), log),
		referencePrice: referencePrice,
		log:            log.With().Str("service", "orders").Logger(),
	}
}

// CreateOrder records a new order. A BUY only increases a position, so it is
// always legal and persists immediately. A SELL must not overdraw the current
// net position for its symbol: the holdings read and the insert happen inside
// one transaction, otherwise two concurrent SELLs could both pass validation.
func (s *Service) CreateOrder(draft OrderDraft) (*Order, error) {
	order := Order{
		Type:         draft.Type,
		TickerSymbol: normalizeSymbol(draft.TickerSymbol),
		Quantity:     draft.Quantity,
		Price:        draft.Price,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	if order.Type == OrderTypeBuy {
		if err := s.repo.Create(&order); err != nil {
			return nil, err
		}
		return &order, nil
	}

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		txRepo := s.repo.WithTx(tx)

		existing, err := txRepo.GetBySymbol(order.TickerSymbol)
		if err != nil {
			return err
		}

		if NetQuantity(existing) < order.Quantity {
			return ErrInsufficientSecurities
		}

		return txRepo.Create(&order)
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateOrder applies a partial patch to an existing order. Any field can move
// the order in ways that retroactively break the no-negative-position
// invariant for one or two symbols, so the resolved post-update order is
// checked against current holdings of both the old and the new symbol before
// it is persisted.
//
// The three legality gates below are evaluated independently and in order.
// They are deliberately conservative: a combined simulation of the full edit
// would accept some edits the first gate rejects. Kept as-is pending product
// sign-off; see DESIGN.md.
func (s *Service) UpdateOrder(id string, patch OrderPatch) (*Order, error) {
	var updated Order

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		txRepo := s.repo.WithTx(tx)

		existing, err := txRepo.GetByID(id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrOrderNotFound
		}

		resolved := patch.ApplyTo(*existing)
		if err := resolved.Validate(); err != nil {
			return err
		}

		oldSymbolOrders, err := txRepo.GetBySymbol(existing.TickerSymbol)
		if err != nil {
			return err
		}
		// Holdings for the old symbol, including the order being edited.
		before := NetQuantity(oldSymbolOrders)

		// Holdings the resolved order will be checked against: the new
		// symbol's position excluding the order's own current contribution.
		// The order is still unmodified in the store at this point, so when
		// the symbol is unchanged its contribution has to be backed out.
		after := before
		if resolved.TickerSymbol != existing.TickerSymbol {
			newSymbolOrders, err := txRepo.GetBySymbol(resolved.TickerSymbol)
			if err != nil {
				return err
			}
			after = NetQuantity(newSymbolOrders)
		} else if existing.Type == OrderTypeBuy {
			after -= existing.Quantity
		} else {
			after += existing.Quantity
		}

		// Gate 1: moving a BUY to another symbol removes its effect from the
		// old symbol, which must survive without it.
		if resolved.TickerSymbol != existing.TickerSymbol &&
			existing.Type == OrderTypeBuy &&
			before < existing.Quantity {
			return ErrInvalidOperation
		}

		// Gate 2: flipping a BUY to a SELL removes the bought quantity and
		// adds the sold quantity in one step.
		if resolved.Type != existing.Type &&
			existing.Type == OrderTypeBuy &&
			before < existing.Quantity+resolved.Quantity {
			return ErrInvalidOperation
		}

		// Gate 3: shrinking a BUY or growing a SELL must leave the position
		// covered.
		if resolved.Quantity != existing.Quantity &&
			((existing.Type == OrderTypeBuy && before < existing.Quantity-resolved.Quantity) ||
				(existing.Type == OrderTypeSell && before < resolved.Quantity-existing.Quantity)) {
			return ErrInvalidOperation
		}

		// A resulting BUY persists unconditionally; a resulting SELL must be
		// covered by the holdings it will execute against.
		if resolved.Type == OrderTypeSell && after < resolved.Quantity {
			return ErrInvalidOperation
		}

		if err := txRepo.Update(&resolved); err != nil {
			return err
		}

		updated = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteOrder removes an order permanently and returns the removed record.
// Deleting a BUY that the current position depends on would make the position
// negative, so it is rejected.
func (s *Service) DeleteOrder(id string) (*Order, error) {
	var removed Order

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		txRepo := s.repo.WithTx(tx)

		existing, err := txRepo.GetByID(id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrOrderNotFound
		}

		symbolOrders, err := txRepo.GetBySymbol(existing.TickerSymbol)
		if err != nil {
			return err
		}

		if existing.Type == OrderTypeBuy && existing.Quantity > NetQuantity(symbolOrders) {
			return ErrInvalidOperation
		}

		removed = *existing
		return txRepo.Delete(id)
	})
	if err != nil {
		return nil, err
	}

	return &removed, nil
}

// SymbolOrders is one getTrades line: a symbol and its orders in insertion order
type SymbolOrders struct {
	Symbol string      `json:"symbol"`
	Orders []OrderLine `json:"orders"`
}

// OrderLine is the per-order projection used by getTrades
type OrderLine struct {
	ID       string    `json:"id"`
	Type     OrderType `json:"type"`
	Quantity int64     `json:"quantity"`
	Price    float64   `json:"price"`
}

// Position is one getPortfolio line: current net quantity and cost basis
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	AveragePrice float64 `json:"averagePrice"`
}

// GetTrades groups all orders by ticker symbol. Symbols appear in order of
// their first trade; symbols whose position has since gone to zero are still
// included, this is the full history view.
func (s *Service) GetTrades() ([]SymbolOrders, error) {
	all, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	result := make([]SymbolOrders, 0)
	index := make(map[string]int)
	for _, o := range all {
		i, ok := index[o.TickerSymbol]
		if !ok {
			i = len(result)
			index[o.TickerSymbol] = i
			result = append(result, SymbolOrders{Symbol: o.TickerSymbol, Orders: []OrderLine{}})
		}
		result[i].Orders = append(result[i].Orders, OrderLine{
			ID:       o.ID,
			Type:     o.Type,
			Quantity: o.Quantity,
			Price:    o.Price,
		})
	}

	return result, nil
}

// GetPortfolio summarizes currently held securities: net quantity and average
// buy price per symbol. Symbols with a net quantity of zero are excluded,
// the portfolio only shows what is held right now.
func (s *Service) GetPortfolio() ([]Position, error) {
	grouped, err := s.groupedBySymbol()
	if err != nil {
		return nil, err
	}

	result := make([]Position, 0, len(grouped))
	for _, g := range grouped {
		net := NetQuantity(g.orders)
		if net == 0 {
			continue
		}
		result = append(result, Position{
			Symbol:       g.symbol,
			Quantity:     net,
			AveragePrice: AverageBuyPrice(g.orders),
		})
	}

	return result, nil
}

// GetReturns projects the aggregate unrealized return of the ledger: for each
// symbol, (referencePrice - averageBuyPrice) * netQuantity, summed. Unlike
// GetPortfolio this applies no zero-quantity filter, though a zero position
// contributes nothing. Returns 0 on an empty ledger.
func (s *Service) GetReturns() (float64, error) {
	grouped, err := s.groupedBySymbol()
	if err != nil {
		return 0, err
	}

	var total float64
	for _, g := range grouped {
		net := NetQuantity(g.orders)
		avg := AverageBuyPrice(g.orders)
		total += (s.referencePrice - avg) * float64(net)
	}

	return total, nil
}

type symbolGroup struct {
	symbol string
	orders []Order
}

// groupedBySymbol loads the full order log and buckets it per symbol,
// preserving first-appearance order
func (s *Service) groupedBySymbol() ([]symbolGroup, error) {
	all, err := s.repo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load order log: %w", err)
	}

	groups := make([]symbolGroup, 0)
	index := make(map[string]int)
	for _, o := range all {
		i, ok := index[o.TickerSymbol]
		if !ok {
			i = len(groups)
			index[o.TickerSymbol] = i
			groups = append(groups, symbolGroup{symbol: o.TickerSymbol})
		}
		groups[i].orders = append(groups[i].orders, o)
	}

	return groups, nil
}
