// Package api provides the HTTP handlers through which the banking
// platform's web layer talks to the trading engine: order submission and
// cancellation, status and portfolio queries, and book snapshots. All
// engine semantics live in the internal packages; handlers only
// translate HTTP to engine calls.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/engine"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/money"
	"github.com/veribank/trading-engine/internal/portfolio"
	"github.com/veribank/trading-engine/internal/risk"
	"github.com/veribank/trading-engine/internal/store"
)

// Service exposes the engine over HTTP. Authentication happens upstream;
// handlers trust the owner ids the web layer forwards.
type Service struct {
	engine   *engine.Engine
	store    store.Store
	currency string
}

// NewService creates the HTTP service.
func NewService(eng *engine.Engine, st store.Store, currency string) *Service {
	return &Service{engine: eng, store: st, currency: currency}
}

// Routes mounts all API routes on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/orders", s.SubmitOrder)
	r.Get("/orders/{orderID}", s.GetOrder)
	r.Delete("/orders/{orderID}", s.CancelOrder)
	r.Get("/portfolio/{ownerID}", s.GetPortfolio)
	r.Get("/portfolio/{ownerID}/{symbol}", s.GetPosition)
	r.Get("/book/{symbol}", s.GetBook)
	r.Get("/accounts/{accountID}/transactions", s.GetTransactions)
	r.Post("/instruments/{symbol}/resume", s.ResumeInstrument)
}

// --- Request/Response types ---

// SubmitOrderRequest is the JSON body for POST /orders.
type SubmitOrderRequest struct {
	OwnerID    string          `json:"owner_id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"` // "BUY" or "SELL"
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price"`
}

// SubmitOrderResponse is the JSON body returned from POST /orders.
type SubmitOrderResponse struct {
	OrderID string `json:"order_id"`
}

// CancelOrderRequest is the JSON body for DELETE /orders/{orderID}.
type CancelOrderRequest struct {
	RequesterID string `json:"requester_id"`
}

// BookResponse is the JSON body for GET /book/{symbol}.
type BookResponse struct {
	Symbol string          `json:"symbol"`
	Halted bool            `json:"halted"`
	Buys   []book.Snapshot `json:"buys"`
	Sells  []book.Snapshot `json:"sells"`
}

// --- Handlers ---

// SubmitOrder handles POST /api/v1/orders.
func (s *Service) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" {
		writeError(w, "owner_id is required", http.StatusBadRequest)
		return
	}
	side := book.Side(req.Side)
	if side != book.SideBuy && side != book.SideSell {
		writeError(w, "side must be BUY or SELL", http.StatusBadRequest)
		return
	}

	limit, err := money.New(req.LimitPrice, s.currency)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	orderID, err := s.engine.SubmitOrder(r.Context(), req.OwnerID, req.Symbol, side, req.Quantity, limit)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SubmitOrderResponse{OrderID: orderID})
}

// GetOrder handles GET /api/v1/orders/{orderID}.
func (s *Service) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	snap, err := s.engine.OrderStatus(orderID)
	if err != nil {
		// Orders evicted from the engine may still be in durable storage.
		stored, storeErr := s.store.GetOrder(r.Context(), orderID)
		if storeErr != nil {
			writeError(w, "order not found", http.StatusNotFound)
			return
		}
		snap = *stored
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// CancelOrder handles DELETE /api/v1/orders/{orderID}.
func (s *Service) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequesterID == "" {
		writeError(w, "requester_id is required", http.StatusBadRequest)
		return
	}

	if err := s.engine.CancelOrder(r.Context(), orderID, req.RequesterID); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPosition handles GET /api/v1/portfolio/{ownerID}/{symbol}.
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	symbol := chi.URLParam(r, "symbol")

	snap := s.engine.Position(ownerID, symbol)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// GetPortfolio handles GET /api/v1/portfolio/{ownerID}.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	snaps := s.engine.Positions().ByOwner(ownerID)
	if snaps == nil {
		snaps = []portfolio.Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snaps)
}

// GetBook handles GET /api/v1/book/{symbol}.
func (s *Service) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	buys, sells := s.engine.BookSnapshot(symbol)
	if buys == nil {
		buys = []book.Snapshot{}
	}
	if sells == nil {
		sells = []book.Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BookResponse{
		Symbol: symbol,
		Halted: s.engine.Halted(symbol),
		Buys:   buys,
		Sells:  sells,
	})
}

// GetTransactions handles GET /api/v1/accounts/{accountID}/transactions.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	txs, err := s.store.GetTransactionsByAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// ResumeInstrument handles POST /api/v1/instruments/{symbol}/resume.
// Operator action: lifts a halt after an invariant violation has been
// investigated.
func (s *Service) ResumeInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	s.engine.Resume(symbol)
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, book.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrOrderNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, book.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInstrumentHalted):
		return http.StatusServiceUnavailable
	case errors.Is(err, portfolio.ErrInsufficientShares),
		errors.Is(err, risk.ErrOpenOrderLimitExceeded),
		errors.Is(err, risk.ErrNotionalLimitExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
