// Package ledger holds monetary account state and the transaction records
// that document every balance movement. Accounts are the only place engine
// code may mutate money: all trading flows go through Debit and Credit,
// which preserve the non-negative balance invariant.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/veribank/trading-engine/internal/money"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	// The account is left unchanged.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrAccountNotFound is returned by resolvers for unknown owners.
	ErrAccountNotFound = errors.New("ledger: account not found")
)

// AccountKind distinguishes transactional cash accounts from
// interest-bearing savings accounts.
type AccountKind string

const (
	KindTransactional   AccountKind = "TRANSACTIONAL"
	KindInterestBearing AccountKind = "INTEREST_BEARING"
)

// Account is a monetary balance owned by one user. The balance never goes
// negative: Debit fails atomically rather than leaving partial state.
//
// An Account carries its own mutex. Callers touching two accounts in one
// operation must acquire both locks via LockPair to keep a global lock
// order and avoid deadlock.
type Account struct {
	id      string
	ownerID string
	kind    AccountKind

	mu        sync.Mutex
	balance   money.Money
	updatedAt time.Time
}

// NewAccount creates an account with an opening balance.
func NewAccount(id, ownerID string, kind AccountKind, opening money.Money) *Account {
	return &Account{
		id:        id,
		ownerID:   ownerID,
		kind:      kind,
		balance:   opening,
		updatedAt: time.Now().UTC(),
	}
}

// ID returns the account id.
func (a *Account) ID() string { return a.id }

// OwnerID returns the owning user's id.
func (a *Account) OwnerID() string { return a.ownerID }

// Kind returns the account kind.
func (a *Account) Kind() AccountKind { return a.kind }

// Balance returns the current balance.
func (a *Account) Balance() money.Money {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// UpdatedAt returns the last-modified timestamp for audit purposes.
func (a *Account) UpdatedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updatedAt
}

// Debit atomically reduces the balance by amount. Fails with
// ErrInsufficientFunds if the balance is too low; no partial debit is
// ever observable.
func (a *Account) Debit(amount money.Money) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.debitLocked(amount)
}

// Credit atomically increases the balance by amount. Cannot fail under
// normal operation: amounts are non-negative by construction and the
// currency is fixed per account.
func (a *Account) Credit(amount money.Money) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creditLocked(amount)
}

// DebitLocked is Debit without acquiring the mutex. The caller must hold
// the account lock, typically via LockPair during settlement.
func (a *Account) DebitLocked(amount money.Money) error { return a.debitLocked(amount) }

// CreditLocked is Credit without acquiring the mutex. The caller must
// hold the account lock.
func (a *Account) CreditLocked(amount money.Money) error { return a.creditLocked(amount) }

// BalanceLocked returns the balance without acquiring the mutex. The
// caller must hold the account lock.
func (a *Account) BalanceLocked() money.Money { return a.balance }

func (a *Account) debitLocked(amount money.Money) error {
	remaining, err := a.balance.Sub(amount)
	if err != nil {
		if errors.Is(err, money.ErrNegativeAmount) {
			return fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientFunds, a.balance, amount)
		}
		return err
	}
	a.balance = remaining
	a.updatedAt = time.Now().UTC()
	return nil
}

func (a *Account) creditLocked(amount money.Money) error {
	sum, err := a.balance.Add(amount)
	if err != nil {
		return err
	}
	a.balance = sum
	a.updatedAt = time.Now().UTC()
	return nil
}

// LockPair acquires both account mutexes in ascending account-id order,
// so settlements on different instruments that touch overlapping accounts
// cannot deadlock. Returns an unlock function. Both accounts may be the
// same pointer, in which case the lock is taken once.
func LockPair(a, b *Account) (unlock func()) {
	if a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
