package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/engine"
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type         string `json:"type"`
	InstrumentID string `json:"instrument_id"`
	OrderID      string `json:"order_id,omitempty"`
	BuyOrderID   string `json:"buy_order_id,omitempty"`
	SellOrderID  string `json:"sell_order_id,omitempty"`
	Side         string `json:"side,omitempty"`
	Status       string `json:"status,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
	Price        string `json:"price,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Hub manages WebSocket connections and broadcasts engine events to all
// connected clients. It implements engine.EventSink; delivery is
// best-effort and never blocks settlement.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

var _ engine.EventSink = (*Hub)(nil)

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			slog.Info("ws client connected", "total", len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// OrderFilled implements engine.EventSink.
func (h *Hub) OrderFilled(snap book.Snapshot) {
	h.send(WSMessage{
		Type:         "order_filled",
		InstrumentID: snap.InstrumentID,
		OrderID:      snap.ID,
		Side:         string(snap.Side),
		Status:       string(snap.Status),
		Quantity:     snap.Remaining.String(),
	})
}

// OrderCancelled implements engine.EventSink.
func (h *Hub) OrderCancelled(snap book.Snapshot) {
	h.send(WSMessage{
		Type:         "order_cancelled",
		InstrumentID: snap.InstrumentID,
		OrderID:      snap.ID,
		Side:         string(snap.Side),
		Status:       string(snap.Status),
	})
}

// MatchSettled implements engine.EventSink.
func (h *Hub) MatchSettled(ev engine.MatchEvent) {
	h.send(WSMessage{
		Type:         "match_settled",
		InstrumentID: ev.InstrumentID,
		BuyOrderID:   ev.BuyOrderID,
		SellOrderID:  ev.SellOrderID,
		Quantity:     ev.Quantity.String(),
		Price:        ev.Price,
	})
}

// AllocationSkipped implements engine.EventSink.
func (h *Hub) AllocationSkipped(ev engine.SkipEvent) {
	h.send(WSMessage{
		Type:         "allocation_skipped",
		InstrumentID: ev.InstrumentID,
		BuyOrderID:   ev.BuyOrderID,
		SellOrderID:  ev.SellOrderID,
		Quantity:     ev.Quantity.String(),
		Reason:       ev.Reason,
	})
}

func (h *Hub) send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking settlement.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
