package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/api"
	"github.com/veribank/trading-engine/internal/engine"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/money"
	"github.com/veribank/trading-engine/internal/portfolio"
	"github.com/veribank/trading-engine/internal/risk"
	"github.com/veribank/trading-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type testEnv struct {
	engine   *engine.Engine
	store    *store.MemoryStore
	resolver *ledger.StaticResolver
	holder   *portfolio.Holder
	router   chi.Router
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	resolver := ledger.NewStaticResolver()
	holder := portfolio.NewHolder("EUR")
	fees := ledger.NewAccount("acc-fees", "veribank", ledger.KindTransactional, money.Zero("EUR"))
	limiter := &risk.Limiter{}

	eng := engine.New(resolver, holder, ms, engine.NopSink{}, limiter, fees, "EUR")
	svc := api.NewService(eng, ms, "EUR")

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	return &testEnv{engine: eng, store: ms, resolver: resolver, holder: holder, router: r}
}

// seedTrader registers an account with cash and optionally shares.
func (e *testEnv) seedTrader(t *testing.T, ownerID string, cash float64, shares float64) {
	t.Helper()
	acc := ledger.NewAccount("acc-"+ownerID, ownerID, ledger.KindTransactional, money.MustNew(d(cash), "EUR"))
	e.resolver.Add(acc)
	if shares > 0 {
		pos := e.holder.GetOrCreate(ownerID, "VERI")
		if err := pos.Acquire(d(shares), money.MustNew(d(50), "EUR")); err != nil {
			t.Fatalf("failed to seed position: %v", err)
		}
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) submit(t *testing.T, owner, side string, qty, price float64) string {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/orders", api.SubmitOrderRequest{
		OwnerID:    owner,
		Symbol:     "VERI",
		Side:       side,
		Quantity:   d(qty),
		LimitPrice: d(price),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.SubmitOrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.OrderID == "" {
		t.Fatal("expected non-empty order_id")
	}
	return resp.OrderID
}

// --- Order submission ---

func TestSubmitOrder_RestingBuy(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrader(t, "alice", 10_000, 0)

	orderID := env.submit(t, "alice", "BUY", 10, 95)

	w := env.do(t, "GET", "/api/v1/orders/"+orderID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap map[string]any
	json.Unmarshal(w.Body.Bytes(), &snap)
	if snap["status"] != "PENDING" {
		t.Errorf("expected PENDING, got %v", snap["status"])
	}
	if snap["limit_price"] != "95.00 EUR" {
		t.Errorf("unexpected limit price %v", snap["limit_price"])
	}
}

func TestSubmitOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrader(t, "alice", 10_000, 0)

	cases := []struct {
		name string
		req  api.SubmitOrderRequest
	}{
		{"missing owner", api.SubmitOrderRequest{Symbol: "VERI", Side: "BUY", Quantity: d(1), LimitPrice: d(10)}},
		{"bad side", api.SubmitOrderRequest{OwnerID: "alice", Symbol: "VERI", Side: "LONG", Quantity: d(1), LimitPrice: d(10)}},
		{"zero quantity", api.SubmitOrderRequest{OwnerID: "alice", Symbol: "VERI", Side: "BUY", Quantity: d(0), LimitPrice: d(10)}},
		{"negative price", api.SubmitOrderRequest{OwnerID: "alice", Symbol: "VERI", Side: "BUY", Quantity: d(1), LimitPrice: d(-10)}},
		{"bad symbol", api.SubmitOrderRequest{OwnerID: "alice", Symbol: "veri!", Side: "BUY", Quantity: d(1), LimitPrice: d(10)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/orders", tc.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestSubmitOrder_UnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/orders", api.SubmitOrderRequest{
		OwnerID: "ghost", Symbol: "VERI", Side: "BUY", Quantity: d(1), LimitPrice: d(10),
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitOrder_SellWithoutShares(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrader(t, "alice", 10_000, 0)

	w := env.do(t, "POST", "/api/v1/orders", api.SubmitOrderRequest{
		OwnerID: "alice", Symbol: "VERI", Side: "SELL", Quantity: d(5), LimitPrice: d(90),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Matching through the API ---

func TestSubmitOrder_CrossExecutesAndSettles(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrader(t, "buyer", 10_000, 0)
	env.seedTrader(t, "seller", 0, 100)

	sellID := env.submit(t, "seller", "SELL", 10, 95)
	buyID := env.submit(t, "buyer", "BUY", 10, 95)

	for _, id := range []string{sellID, buyID} {
		w := env.do(t, "GET", "/api/v1/orders/"+id, nil)
		var snap map[string]any
		json.Unmarshal(w.Body.Bytes(), &snap)
		if snap["status"] != "FILLED" {
			t.Errorf("order %s: expected FILLED, got %v", id, snap["status"])
		}
	}

	w := env.do(t, "GET", "/api/v1/portfolio/buyer/VERI", nil)
	var pos map[string]any
	json.Unmarshal(w.Body.Bytes(), &pos)
	if pos["quantity"] != "10" {
		t.Errorf("expected buyer quantity 10, got %v", pos["quantity"])
	}

	w = env.do(t, "GET", "/api/v1/book/VERI", nil)
	var bookResp api.BookResponse
	json.Unmarshal(w.Body.Bytes(), &bookResp)
	if len(bookResp.Buys) != 0 || len(bookResp.Sells) != 0 {
		t.Errorf("expected empty book, got %d buys, %d sells", len(bookResp.Buys), len(bookResp.Sells))
	}

	// Settlement transactions are visible through the account endpoint.
	w = env.do(t, "GET", "/api/v1/accounts/acc-buyer/transactions", nil)
	var txs []map[string]any
	json.Unmarshal(w.Body.Bytes(), &txs)
	if len(txs) == 0 {
		t.Error("expected settlement transactions for buyer account")
	}
}

func TestGetBook_RestingLevels(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrader(t, "alice", 10_000, 0)

	env.submit(t, "alice", "BUY", 10, 90)
	env.submit(t, "alice", "BUY", 5, 92)

	w := env.do(t, "GET", "/api/v1/book/VERI", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.BookResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Buys) != 2 {
		t.Fatalf("expected 2 resting buys, got %d", len(resp.Buys))
	}
	// Price priority: best bid first.
	if resp.Buys[0].LimitPrice != "92.00 EUR" {
		t.Errorf("expected best bid 92.00 EUR, got %s", resp.Buys[0].LimitPrice)
	}
	if resp.Halted {
		t.Error("instrument should not be halted")
	}
}

// --- Cancellation ---

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrader(t, "alice", 10_000, 0)

	orderID := env.submit(t, "alice", "BUY", 10, 90)

	// Wrong requester is forbidden.
	w := env.do(t, "DELETE", "/api/v1/orders/"+orderID, api.CancelOrderRequest{RequesterID: "mallory"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong requester, got %d", w.Code)
	}

	// Missing requester is a bad request.
	w = env.do(t, "DELETE", "/api/v1/orders/"+orderID, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing requester, got %d", w.Code)
	}

	w = env.do(t, "DELETE", "/api/v1/orders/"+orderID, api.CancelOrderRequest{RequesterID: "alice"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// Cancelling a cancelled order conflicts.
	w = env.do(t, "DELETE", "/api/v1/orders/"+orderID, api.CancelOrderRequest{RequesterID: "alice"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for re-cancel, got %d", w.Code)
	}

	w = env.do(t, "DELETE", "/api/v1/orders/no-such-order", api.CancelOrderRequest{RequesterID: "alice"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown order, got %d", w.Code)
	}
}

// --- Portfolio ---

func TestGetPortfolio(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrader(t, "alice", 10_000, 25)

	w := env.do(t, "GET", "/api/v1/portfolio/alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snaps []portfolio.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snaps)
	if len(snaps) != 1 {
		t.Fatalf("expected 1 position, got %d", len(snaps))
	}
	if !snaps[0].Quantity.Equal(d(25)) {
		t.Errorf("expected quantity 25, got %s", snaps[0].Quantity)
	}

	// Unknown owner gets an empty list, not an error.
	w = env.do(t, "GET", "/api/v1/portfolio/ghost", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty portfolio, got %d", w.Code)
	}
	snaps = nil
	json.Unmarshal(w.Body.Bytes(), &snaps)
	if len(snaps) != 0 {
		t.Errorf("expected empty portfolio, got %d positions", len(snaps))
	}
}

// --- Halt / resume ---

func TestResumeInstrument(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/instruments/VERI/resume", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}
