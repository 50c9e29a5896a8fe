package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusbank/backend/internal/models"
)

// creditRetries bounds recipient-side retries before a transfer falls back
// to rolling the sender's debit back.
const creditRetries = 3

// Engine is the only component permitted to mutate balances or append
// transactions. Every operation is validate-then-apply: a failed validation
// leaves the ledger exactly as it was.
//
// Mutations on one account are serialized through an in-process lock table;
// a transfer takes both accounts' locks in ascending account-number order so
// two crossing transfers cannot deadlock. Store writes additionally carry an
// optimistic version check, which covers writers outside this process.
type Engine struct {
	store Store
	audit *AuditLogger
	locks lockTable

	// backoffFn builds the retry policy for recipient-side credit writes
	// and sender rollbacks; shortened in tests.
	backoffFn func() backoff.BackOff
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store:     store,
		audit:     NewAuditLogger(),
		backoffFn: defaultBackoff,
	}
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	return backoff.WithMaxRetries(b, creditRetries)
}

// TransferReceipt reports a completed transfer: the debit/credit pair and
// the correlation id they share.
type TransferReceipt struct {
	CorrelationID string             `json:"correlationId"`
	Debit         models.Transaction `json:"debit"`
	Credit        models.Transaction `json:"credit"`
}

// Deposit credits amount to the account and returns the created transaction.
func (e *Engine) Deposit(ctx context.Context, accountNo string, amount decimal.Decimal, note string) (*models.Transaction, error) {
	return e.applySingle(ctx, accountNo, models.KindDeposit, amount, note)
}

// Withdraw debits amount from the account. Fails with ErrInsufficientFunds
// when amount exceeds the current balance.
func (e *Engine) Withdraw(ctx context.Context, accountNo string, amount decimal.Decimal, note string) (*models.Transaction, error) {
	return e.applySingle(ctx, accountNo, models.KindWithdrawal, amount, note)
}

func (e *Engine) applySingle(ctx context.Context, accountNo string, kind models.TransactionKind, amount decimal.Decimal, note string) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	unlock := e.locks.acquire(accountNo)
	defer unlock()

	for attempt := 0; ; attempt++ {
		rec, err := e.store.Get(ctx, accountNo)
		if err != nil {
			return nil, err
		}
		if kind == models.KindWithdrawal && amount.GreaterThan(rec.Account.Balance) {
			return nil, ErrInsufficientFunds
		}

		txID, err := e.store.NextTransactionID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		txn := models.Transaction{
			ID:        txID,
			Kind:      kind,
			Amount:    amount,
			Timestamp: time.Now(),
			Note:      note,
		}
		applyTransaction(rec, txn)

		err = e.store.Put(ctx, accountNo, rec)
		if err == nil {
			e.audit.LogMutation(string(kind), accountNo, amount, txn.ID)
			return &txn, nil
		}
		if err == ErrVersionConflict && attempt < conflictRetries {
			continue
		}
		return nil, err
	}
}

// Transfer moves amount from the sender to the recipient as one logical
// transaction: a transfer-debit on the sender and a transfer-credit on the
// recipient sharing a fresh correlation id, created together or not at all.
//
// If the credit cannot be committed after the debit has been durably
// applied, the engine retries the credit with bounded backoff, then rolls
// the debit back. Only when the rollback also fails does it report
// ErrPartialTransfer, with an operator-visible audit event.
func (e *Engine) Transfer(ctx context.Context, senderNo, recipientNo string, amount decimal.Decimal, note string) (*TransferReceipt, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if senderNo == recipientNo {
		return nil, ErrSelfTransfer
	}

	// Both locks, ascending account-number order.
	first, second := senderNo, recipientNo
	if first > second {
		first, second = second, first
	}
	unlockFirst := e.locks.acquire(first)
	defer unlockFirst()
	unlockSecond := e.locks.acquire(second)
	defer unlockSecond()

	correlationID := uuid.NewString()

	var debit, credit models.Transaction
	for attempt := 0; ; attempt++ {
		sender, err := e.store.Get(ctx, senderNo)
		if err != nil {
			return nil, err
		}
		if _, err := e.store.Get(ctx, recipientNo); err != nil {
			if err == ErrNotFound {
				return nil, ErrRecipientNotFound
			}
			return nil, err
		}
		if amount.GreaterThan(sender.Account.Balance) {
			return nil, ErrInsufficientFunds
		}

		// The debit always takes the lower id of the pair.
		debitID, err := e.store.NextTransactionID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		creditID, err := e.store.NextTransactionID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}

		now := time.Now()
		debit = models.Transaction{
			ID:            debitID,
			Kind:          models.KindTransferDebit,
			Amount:        amount,
			Timestamp:     now,
			Note:          note,
			Counterparty:  recipientNo,
			CorrelationID: correlationID,
		}
		credit = models.Transaction{
			ID:            creditID,
			Kind:          models.KindTransferCredit,
			Amount:        amount,
			Timestamp:     now,
			Note:          note,
			Counterparty:  senderNo,
			CorrelationID: correlationID,
		}

		applyTransaction(sender, debit)
		err = e.store.Put(ctx, senderNo, sender)
		if err == nil {
			break
		}
		if err == ErrVersionConflict && attempt < conflictRetries {
			continue
		}
		e.audit.LogError(correlationID, senderNo, err)
		return nil, err
	}

	// Sender is durably debited; the credit must now land.
	creditOp := func() error {
		rec, err := e.store.Get(ctx, recipientNo)
		if err != nil {
			if err == ErrNotFound {
				// Recipient vanished between validation and credit;
				// retrying cannot help.
				return backoff.Permanent(err)
			}
			return err
		}
		applyTransaction(rec, credit)
		return e.store.Put(ctx, recipientNo, rec)
	}
	creditErr := backoff.Retry(creditOp, backoff.WithContext(e.backoffFn(), ctx))
	if creditErr == nil {
		e.audit.LogTransfer(correlationID, senderNo, recipientNo, amount, "SUCCESS")
		return &TransferReceipt{CorrelationID: correlationID, Debit: debit, Credit: credit}, nil
	}

	// Credit exhausted its retries: undo the debit.
	rollbackOp := func() error {
		rec, err := e.store.Get(ctx, senderNo)
		if err != nil {
			return err
		}
		removeTransaction(rec, debit.ID)
		rec.Account.Balance = rec.Account.Balance.Add(amount)
		rec.AppendSnapshot(time.Now())
		return e.store.Put(ctx, senderNo, rec)
	}
	if rbErr := backoff.Retry(rollbackOp, backoff.WithContext(e.backoffFn(), ctx)); rbErr != nil {
		e.audit.LogPartialTransfer(correlationID, senderNo, recipientNo, amount, creditErr)
		return nil, fmt.Errorf("%w: credit failed (%v), rollback failed (%v)", ErrPartialTransfer, creditErr, rbErr)
	}

	e.audit.LogTransfer(correlationID, senderNo, recipientNo, amount, "ROLLED_BACK")
	return nil, fmt.Errorf("%w: transfer credit could not be committed: %v", ErrWriteFailure, creditErr)
}

// applyTransaction appends txn to the record's log, moves the balance by the
// signed amount and records a balance snapshot.
func applyTransaction(rec *models.LedgerRecord, txn models.Transaction) {
	rec.Account.Balance = rec.Account.Balance.Add(txn.Signed())
	rec.Transactions = append(rec.Transactions, txn)
	rec.AppendSnapshot(txn.Timestamp)
}

func removeTransaction(rec *models.LedgerRecord, txID int64) {
	kept := rec.Transactions[:0]
	for _, t := range rec.Transactions {
		if t.ID != txID {
			kept = append(kept, t)
		}
	}
	rec.Transactions = kept
}

// validateAmount admits positive amounts representable at the ledger's
// two-decimal precision.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// lockTable hands out one mutex per account number. Entries are never
// removed; the universe of accounts in one process stays small.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (lt *lockTable) acquire(accountNo string) (unlock func()) {
	lt.mu.Lock()
	if lt.locks == nil {
		lt.locks = make(map[string]*sync.Mutex)
	}
	l, ok := lt.locks[accountNo]
	if !ok {
		l = &sync.Mutex{}
		lt.locks[accountNo] = l
	}
	lt.mu.Unlock()

	l.Lock()
	return l.Unlock
}
