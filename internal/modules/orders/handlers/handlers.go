// Package handlers provides the HTTP boundary for the order ledger.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Jatinmanav/StockApp/internal/modules/orders"
)

// OrderHandlers contains HTTP handlers for the order API
type OrderHandlers struct {
	svc *orders.Service
	log zerolog.Logger
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(svc *orders.Service, log zerolog.Logger) *OrderHandlers {
	return &OrderHandlers{
		svc: svc,
		log: log.With().Str("handler", "orders").Logger(),
	}
}

// Routes mounts the order routes on the given router
func (h *OrderHandlers) Routes(r chi.Router) {
	r.Get("/test", h.HandleTest)
	r.Post("/create", h.HandleCreateOrder)
	r.Patch("/update/{id}", h.HandleUpdateOrder)
	r.Delete("/delete/{id}", h.HandleDeleteOrder)
	r.Get("/getTrades", h.HandleGetTrades)
	r.Get("/getPortfolio", h.HandleGetPortfolio)
	r.Get("/getReturns", h.HandleGetReturns)
}

// HandleTest is a liveness probe for the order API
// GET /security/test
func (h *OrderHandlers) HandleTest(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, "success")
}

// createOrderRequest uses pointer fields so missing keys are distinguishable
// from zero values during validation
type createOrderRequest struct {
	Type         *string  `json:"type"`
	TickerSymbol *string  `json:"tickerSymbol"`
	Quantity     *int64   `json:"quantity"`
	Price        *float64 `json:"price"`
}

// HandleCreateOrder creates a new order
// POST /security/create
func (h *OrderHandlers) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	draft, err := draftFromRequest(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.svc.CreateOrder(draft)
	if err != nil {
		h.respondServiceError(w, err, "Failed to create order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// updateOrderRequest carries a partial patch; every field is optional
type updateOrderRequest struct {
	Type         *string  `json:"type"`
	TickerSymbol *string  `json:"tickerSymbol"`
	Quantity     *int64   `json:"quantity"`
	Price        *float64 `json:"price"`
}

// HandleUpdateOrder applies a partial update to an existing order
// PATCH /security/update/{id}
func (h *OrderHandlers) HandleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch, err := patchFromRequest(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.svc.UpdateOrder(id, patch)
	if err != nil {
		h.respondServiceError(w, err, "Failed to update order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// HandleDeleteOrder deletes an order and returns the removed record
// DELETE /security/delete/{id}
func (h *OrderHandlers) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.svc.DeleteOrder(id)
	if err != nil {
		h.respondServiceError(w, err, "Failed to delete order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// HandleGetTrades returns all orders grouped by ticker symbol
// GET /security/getTrades
func (h *OrderHandlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.svc.GetTrades()
	if err != nil {
		h.respondServiceError(w, err, "Failed to get trades")
		return
	}

	h.writeJSON(w, http.StatusOK, trades)
}

// HandleGetPortfolio returns the currently held securities
// GET /security/getPortfolio
func (h *OrderHandlers) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.svc.GetPortfolio()
	if err != nil {
		h.respondServiceError(w, err, "Failed to get portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, portfolio)
}

// HandleGetReturns returns the aggregate unrealized return
// GET /security/getReturns
func (h *OrderHandlers) HandleGetReturns(w http.ResponseWriter, r *http.Request) {
	returns, err := h.svc.GetReturns()
	if err != nil {
		h.respondServiceError(w, err, "Failed to get returns")
		return
	}

	h.writeJSON(w, http.StatusOK, returns)
}

// Field-format validation. This is the boundary layer's responsibility; the
// service revalidates the business invariant independently.

func draftFromRequest(req createOrderRequest) (orders.OrderDraft, error) {
	var draft orders.OrderDraft

	if req.Type == nil {
		return draft, fmt.Errorf("type is required")
	}
	orderType, err := parseOrderType(*req.Type)
	if err != nil {
		return draft, err
	}

	if req.TickerSymbol == nil {
		return draft, fmt.Errorf("tickerSymbol is required")
	}
	symbol, err := parseSymbol(*req.TickerSymbol)
	if err != nil {
		return draft, err
	}

	if req.Quantity == nil {
		return draft, fmt.Errorf("quantity is required")
	}
	if *req.Quantity < 1 {
		return draft, fmt.Errorf("quantity must be a positive integer")
	}

	if req.Price == nil {
		return draft, fmt.Errorf("price is required")
	}
	if *req.Price < 0 {
		return draft, fmt.Errorf("price must be non-negative")
	}

	return orders.OrderDraft{
		Type:         orderType,
		TickerSymbol: symbol,
		Quantity:     *req.Quantity,
		Price:        *req.Price,
	}, nil
}

func patchFromRequest(req updateOrderRequest) (orders.OrderPatch, error) {
	var patch orders.OrderPatch

	if req.Type != nil {
		orderType, err := parseOrderType(*req.Type)
		if err != nil {
			return patch, err
		}
		patch.Type = &orderType
	}

	if req.TickerSymbol != nil {
		symbol, err := parseSymbol(*req.TickerSymbol)
		if err != nil {
			return patch, err
		}
		patch.TickerSymbol = &symbol
	}

	if req.Quantity != nil {
		if *req.Quantity < 1 {
			return patch, fmt.Errorf("quantity must be a positive integer")
		}
		patch.Quantity = req.Quantity
	}

	if req.Price != nil {
		if *req.Price < 0 {
			return patch, fmt.Errorf("price must be non-negative")
		}
		patch.Price = req.Price
	}

	return patch, nil
}

func parseOrderType(raw string) (orders.OrderType, error) {
	orderType := orders.OrderType(strings.ToUpper(strings.TrimSpace(raw)))
	if !orderType.IsValid() {
		return "", fmt.Errorf("type must be BUY or SELL")
	}
	return orderType, nil
}

func parseSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", fmt.Errorf("tickerSymbol must not be empty")
	}
	return symbol, nil
}

// respondServiceError maps service errors to response classes: business-rule
// violations are client errors, everything else (including an unknown order
// id) is a server error.
func (h *OrderHandlers) respondServiceError(w http.ResponseWriter, err error, logMsg string) {
	if errors.Is(err, orders.ErrInsufficientSecurities) || errors.Is(err, orders.ErrInvalidOperation) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Error().Err(err).Msg(logMsg)
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

// writeJSON writes a payload in the response envelope
func (h *OrderHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{"message": payload}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes an error response
func (h *OrderHandlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
