package ledger

import (
	"errors"
	"time"

	"github.com/veribank/trading-engine/internal/money"
)

// ErrTransactionResolved is returned when resolving a transaction that is
// already COMPLETED or FAILED. Resolved transactions are immutable.
var ErrTransactionResolved = errors.New("ledger: transaction already resolved")

// TransactionKind labels what a transaction documents.
type TransactionKind string

const (
	KindTradeDebit  TransactionKind = "TRADE_DEBIT"
	KindTradeCredit TransactionKind = "TRADE_CREDIT"
	KindFee         TransactionKind = "FEE"
)

// TransactionStatus is the lifecycle state of a transaction record.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
)

// Transaction is a ledger record of one balance movement. Created PENDING
// and resolved to COMPLETED or FAILED within the same settlement operation
// that mutates the accounts; immutable afterwards.
type Transaction struct {
	ID            string            `json:"id"`
	SourceAccount string            `json:"source_account"`
	DestAccount   string            `json:"dest_account"`
	Amount        money.Money       `json:"-"`
	AmountStr     string            `json:"amount"`
	Kind          TransactionKind   `json:"kind"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description"`
	CreatedAt     time.Time         `json:"created_at"`
	ResolvedAt    time.Time         `json:"resolved_at,omitempty"`
}

// NewTransaction creates a PENDING transaction.
func NewTransaction(id, source, dest string, amount money.Money, kind TransactionKind, description string) *Transaction {
	return &Transaction{
		ID:            id,
		SourceAccount: source,
		DestAccount:   dest,
		Amount:        amount,
		AmountStr:     amount.String(),
		Kind:          kind,
		Status:        TxPending,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// Complete marks the transaction COMPLETED. Fails if already resolved.
func (t *Transaction) Complete() error { return t.resolve(TxCompleted) }

// Fail marks the transaction FAILED. Fails if already resolved.
func (t *Transaction) Fail() error { return t.resolve(TxFailed) }

func (t *Transaction) resolve(status TransactionStatus) error {
	if t.Status != TxPending {
		return ErrTransactionResolved
	}
	t.Status = status
	t.ResolvedAt = time.Now().UTC()
	return nil
}
