package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAdmit_PriceTimePriority(t *testing.T) {
	b := New("VERI")

	b.Admit(newBuy(t, "b1", 5, 100))
	b.Admit(newBuy(t, "b2", 5, 102)) // better price, arrives later
	b.Admit(newBuy(t, "b3", 5, 100)) // same price as b1, arrives later

	buys := b.Buys()
	wantOrder := []string{"b2", "b1", "b3"}
	for i, want := range wantOrder {
		if buys[i].ID != want {
			t.Errorf("buys[%d]: expected %s, got %s", i, want, buys[i].ID)
		}
	}

	b.Admit(newSell(t, "s1", 5, 101))
	b.Admit(newSell(t, "s2", 5, 99)) // better (lower) price, arrives later
	b.Admit(newSell(t, "s3", 5, 99)) // same price as s2, arrives later

	sells := b.Sells()
	wantOrder = []string{"s2", "s3", "s1"}
	for i, want := range wantOrder {
		if sells[i].ID != want {
			t.Errorf("sells[%d]: expected %s, got %s", i, want, sells[i].ID)
		}
	}
}

func TestAdmit_RejectsWrongInstrument(t *testing.T) {
	b := New("BANC")
	err := b.Admit(newBuy(t, "b1", 5, 100)) // order is for VERI
	if !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestAdmit_RejectsDuplicateID(t *testing.T) {
	b := New("VERI")
	b.Admit(newBuy(t, "b1", 5, 100))
	err := b.Admit(newBuy(t, "b1", 5, 101))
	if !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder for duplicate, got %v", err)
	}
}

func TestWithdraw_RemovesFromSide(t *testing.T) {
	b := New("VERI")
	b.Admit(newBuy(t, "b1", 5, 100))
	b.Admit(newBuy(t, "b2", 5, 101))

	b.Withdraw("b1")

	if b.Get("b1") != nil {
		t.Error("withdrawn order still retrievable")
	}
	buys := b.Buys()
	if len(buys) != 1 || buys[0].ID != "b2" {
		t.Errorf("expected only b2 resting, got %d orders", len(buys))
	}
}

func TestWithdraw_UnknownIsNoop(t *testing.T) {
	b := New("VERI")
	b.Withdraw("missing") // must not panic
}

func TestSnapshotLevels(t *testing.T) {
	b := New("VERI")
	b.Admit(newBuy(t, "b1", 5, 100))
	b.Admit(newSell(t, "s1", 3, 105))

	buys, sells := b.SnapshotLevels()
	if len(buys) != 1 || len(sells) != 1 {
		t.Fatalf("expected 1/1, got %d/%d", len(buys), len(sells))
	}
	if !buys[0].Remaining.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected remaining 5, got %s", buys[0].Remaining)
	}
	if sells[0].LimitPrice != "105.00 EUR" {
		t.Errorf("unexpected price rendering: %s", sells[0].LimitPrice)
	}
}
