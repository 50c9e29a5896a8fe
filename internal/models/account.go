package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotRetention caps the balance-history series kept per account.
const SnapshotRetention = 60

// Account is the registry-owned identity of a ledger. The account number is
// a fixed-length numeric string, assigned at creation and never changed; it
// doubles as the public transfer target identifier.
type Account struct {
	Number      string          `json:"number"`
	DisplayName string          `json:"displayName"`
	Balance     decimal.Decimal `json:"balance"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// BalanceSnapshot is a (timestamp, resulting balance) sample taken on every
// balance change, used only for historical charting.
type BalanceSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Balance   decimal.Decimal `json:"balance"`
}

// Day returns the calendar-day key used for snapshot de-duplication.
func (s BalanceSnapshot) Day() string {
	return s.Timestamp.Format("2006-01-02")
}

// LedgerRecord is the full stored document for one account: identity,
// credentials, the simulated card, the ordered transaction log and the
// balance-history series. The store's optimistic write check runs against
// Version; a freshly created record carries version 0 until first persisted.
type LedgerRecord struct {
	Account      Account           `json:"account"`
	Login        string            `json:"login"`
	PasswordHash string            `json:"passwordHash"`
	Card         *BankCard         `json:"card,omitempty"`
	Transactions []Transaction     `json:"transactions"`
	History      []BalanceSnapshot `json:"history"`
	Version      int64             `json:"-"`
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// store-held state.
func (r *LedgerRecord) Clone() *LedgerRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Transactions = append([]Transaction(nil), r.Transactions...)
	cp.History = append([]BalanceSnapshot(nil), r.History...)
	if r.Card != nil {
		card := *r.Card
		cp.Card = &card
	}
	return &cp
}

// AppendSnapshot records the current balance in the history series, replacing
// an earlier entry from the same calendar day and trimming the series to the
// retention cap.
func (r *LedgerRecord) AppendSnapshot(at time.Time) {
	snap := BalanceSnapshot{Timestamp: at, Balance: r.Account.Balance}
	if n := len(r.History); n > 0 && r.History[n-1].Day() == snap.Day() {
		r.History[n-1] = snap
	} else {
		r.History = append(r.History, snap)
	}
	if len(r.History) > SnapshotRetention {
		r.History = r.History[len(r.History)-SnapshotRetention:]
	}
}
