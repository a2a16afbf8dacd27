package portfolio

import "sync"

// Holder owns all positions in the process, keyed by (owner, instrument).
// Positions are created on first acquisition and removed once flat, so a
// lookup of a fully disposed position behaves like one that never existed.
type Holder struct {
	mu        sync.RWMutex
	currency  string
	positions map[positionKey]*Position
}

type positionKey struct {
	ownerID      string
	instrumentID string
}

// NewHolder creates an empty position holder. All cost bases use the
// given currency.
func NewHolder(currency string) *Holder {
	return &Holder{
		currency:  currency,
		positions: make(map[positionKey]*Position),
	}
}

// Get returns the position for (ownerID, instrumentID), or nil if the
// owner holds no shares of the instrument.
func (h *Holder) Get(ownerID, instrumentID string) *Position {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.positions[positionKey{ownerID, instrumentID}]
}

// GetOrCreate returns the position for (ownerID, instrumentID), creating
// an empty one if absent.
func (h *Holder) GetOrCreate(ownerID, instrumentID string) *Position {
	key := positionKey{ownerID, instrumentID}

	h.mu.RLock()
	p := h.positions[key]
	h.mu.RUnlock()
	if p != nil {
		return p
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if p = h.positions[key]; p != nil {
		return p
	}
	p = NewPosition(ownerID, instrumentID, h.currency)
	h.positions[key] = p
	return p
}

// Prune removes the position if it is flat. Called after disposals.
func (h *Holder) Prune(ownerID, instrumentID string) {
	key := positionKey{ownerID, instrumentID}
	h.mu.Lock()
	defer h.mu.Unlock()
	if p := h.positions[key]; p != nil && p.IsFlat() {
		delete(h.positions, key)
	}
}

// ByOwner returns snapshots of every position held by an owner.
func (h *Holder) ByOwner(ownerID string) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var snaps []Snapshot
	for key, p := range h.positions {
		if key.ownerID == ownerID {
			snaps = append(snaps, p.Snapshot())
		}
	}
	return snaps
}
