package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind tags a ledger transaction. Transfer kinds carry a
// counterparty account number and a correlation id; the other kinds do not.
type TransactionKind string

const (
	KindDeposit        TransactionKind = "deposit"
	KindWithdrawal     TransactionKind = "withdrawal"
	KindTransferDebit  TransactionKind = "transfer-debit"
	KindTransferCredit TransactionKind = "transfer-credit"
)

// ValidKind reports whether k is one of the four ledger transaction kinds.
func ValidKind(k TransactionKind) bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransferDebit, KindTransferCredit:
		return true
	}
	return false
}

// Transaction is a single immutable entry in an account's ledger log. IDs
// come from a store-wide monotonic sequence, so they are unique across all
// accounts; the debit side of a transfer always takes the lower id of the
// pair.
type Transaction struct {
	ID            int64           `json:"id"`
	Kind          TransactionKind `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	Note          string          `json:"note,omitempty"`
	Counterparty  string          `json:"counterparty,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Signed returns the amount with the sign it contributes to the owning
// account's balance: deposits and transfer-credits positive, withdrawals and
// transfer-debits negative.
func (t Transaction) Signed() decimal.Decimal {
	switch t.Kind {
	case KindWithdrawal, KindTransferDebit:
		return t.Amount.Neg()
	default:
		return t.Amount
	}
}
