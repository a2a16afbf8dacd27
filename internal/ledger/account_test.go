package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/money"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func eur(f float64) money.Money {
	return money.MustNew(d(f), "EUR")
}

func TestDebit_Sufficient(t *testing.T) {
	a := NewAccount("acc-1", "user-1", KindTransactional, eur(100))
	if err := a.Debit(eur(40)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Balance().Equal(eur(60)) {
		t.Errorf("expected 60.00 EUR, got %s", a.Balance())
	}
}

func TestDebit_InsufficientLeavesBalanceUnchanged(t *testing.T) {
	a := NewAccount("acc-1", "user-1", KindTransactional, eur(30))
	err := a.Debit(eur(30.01))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !a.Balance().Equal(eur(30)) {
		t.Errorf("balance changed after failed debit: %s", a.Balance())
	}
}

func TestDebit_ExactBalance(t *testing.T) {
	a := NewAccount("acc-1", "user-1", KindTransactional, eur(30))
	if err := a.Debit(eur(30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Balance().IsZero() {
		t.Errorf("expected zero balance, got %s", a.Balance())
	}
}

func TestCredit_UpdatesTimestamp(t *testing.T) {
	a := NewAccount("acc-1", "user-1", KindTransactional, eur(0))
	before := a.UpdatedAt()
	if err := a.Credit(eur(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.UpdatedAt().Before(before) {
		t.Error("UpdatedAt went backwards after credit")
	}
	if !a.Balance().Equal(eur(5)) {
		t.Errorf("expected 5.00 EUR, got %s", a.Balance())
	}
}

// Concurrent debits against one balance must never drive it negative.
func TestDebit_ConcurrentNeverNegative(t *testing.T) {
	a := NewAccount("acc-1", "user-1", KindTransactional, eur(100))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Debit(eur(3)) // only 33 of 50 can succeed
		}()
	}
	wg.Wait()

	if a.Balance().Amount().IsNegative() {
		t.Fatalf("balance went negative: %s", a.Balance())
	}
	if !a.Balance().Equal(eur(1)) {
		t.Errorf("expected 1.00 EUR after 33 successful debits, got %s", a.Balance())
	}
}

func TestLockPair_OppositeOrdersDoNotDeadlock(t *testing.T) {
	a := NewAccount("acc-a", "user-a", KindTransactional, eur(1000))
	b := NewAccount("acc-b", "user-b", KindTransactional, eur(1000))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := LockPair(a, b)
			a.DebitLocked(eur(1))
			b.CreditLocked(eur(1))
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := LockPair(b, a)
			b.DebitLocked(eur(1))
			a.CreditLocked(eur(1))
			unlock()
		}()
	}
	wg.Wait()

	total, err := a.Balance().Add(b.Balance())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !total.Equal(eur(2000)) {
		t.Errorf("money not conserved: %s", total)
	}
}

func TestLockPair_SameAccount(t *testing.T) {
	a := NewAccount("acc-a", "user-a", KindTransactional, eur(10))
	unlock := LockPair(a, a)
	a.CreditLocked(eur(1))
	unlock()
	if !a.Balance().Equal(eur(11)) {
		t.Errorf("expected 11.00 EUR, got %s", a.Balance())
	}
}

func TestTransaction_ImmutableOnceResolved(t *testing.T) {
	tx := NewTransaction("tx-1", "acc-a", "acc-b", eur(10), KindTradeDebit, "test")
	if tx.Status != TxPending {
		t.Fatalf("expected PENDING, got %s", tx.Status)
	}
	if err := tx.Complete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Fail(); !errors.Is(err, ErrTransactionResolved) {
		t.Errorf("expected ErrTransactionResolved, got %v", err)
	}
	if tx.Status != TxCompleted {
		t.Errorf("status changed after resolution: %s", tx.Status)
	}
}

func TestStaticResolver(t *testing.T) {
	a := NewAccount("acc-a", "user-a", KindTransactional, eur(10))
	r := NewStaticResolver(a)

	got, err := r.ResolveAccount("user-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != a {
		t.Error("resolver returned wrong account")
	}

	if _, err := r.ResolveAccount("nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
