package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campusbank/backend/internal/models"
)

const (
	accountNumberLength = 10
	// createAttempts bounds account-number regeneration on collision. With
	// 10^10 candidate numbers a second collision in a row already means the
	// random source is broken, so a small bound is plenty.
	createAttempts = 5
	// conflictRetries bounds re-reads on optimistic version conflicts for
	// profile mutations racing the transfer engine.
	conflictRetries = 3
)

// Registry owns account identity: number generation, uniqueness, lookup by
// account number or login, and the non-monetary record mutations (rename,
// password, card, deletion). Balance and transaction mutations are the
// Engine's alone.
type Registry struct {
	store Store

	// numberFn generates candidate account numbers; swapped out in tests
	// to force collisions.
	numberFn func() string
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, numberFn: generateAccountNumber}
}

// Create allocates a fresh account with a zero balance and an initial
// balance snapshot. The generated number is checked against the registry and
// regenerated on collision; a number is never silently reused.
func (r *Registry) Create(ctx context.Context, displayName, login, passwordHash string) (*models.LedgerRecord, error) {
	if _, err := r.store.FindByLogin(ctx, login); err == nil {
		return nil, ErrDuplicateLogin
	} else if err != ErrNotFound {
		return nil, err
	}

	var accountNo string
	for attempt := 0; ; attempt++ {
		if attempt == createAttempts {
			return nil, fmt.Errorf("%w: account number space exhausted after %d attempts", ErrWriteFailure, createAttempts)
		}
		candidate := r.numberFn()
		_, err := r.store.Get(ctx, candidate)
		if err == ErrNotFound {
			accountNo = candidate
			break
		}
		if err != nil {
			return nil, err
		}
		// Occupied; regenerate.
	}

	now := time.Now()
	rec := &models.LedgerRecord{
		Account: models.Account{
			Number:      accountNo,
			DisplayName: displayName,
			Balance:     decimal.Zero,
			CreatedAt:   now,
		},
		Login:        login,
		PasswordHash: passwordHash,
		Transactions: []models.Transaction{},
		History:      []models.BalanceSnapshot{{Timestamp: now, Balance: decimal.Zero}},
	}
	if err := r.store.Put(ctx, accountNo, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Registry) FindByAccountNumber(ctx context.Context, accountNo string) (*models.LedgerRecord, error) {
	return r.store.Get(ctx, accountNo)
}

func (r *Registry) FindByLogin(ctx context.Context, login string) (*models.LedgerRecord, error) {
	return r.store.FindByLogin(ctx, login)
}

// Rename changes the display name. The account number is immutable.
func (r *Registry) Rename(ctx context.Context, accountNo, newName string) error {
	return r.update(ctx, accountNo, func(rec *models.LedgerRecord) {
		rec.Account.DisplayName = newName
	})
}

// UpdatePasswordHash swaps the stored credential hash.
func (r *Registry) UpdatePasswordHash(ctx context.Context, accountNo, passwordHash string) error {
	return r.update(ctx, accountNo, func(rec *models.LedgerRecord) {
		rec.PasswordHash = passwordHash
	})
}

// AttachCard stores a newly issued simulated card, replacing any prior one.
func (r *Registry) AttachCard(ctx context.Context, accountNo string, card *models.BankCard) error {
	return r.update(ctx, accountNo, func(rec *models.LedgerRecord) {
		rec.Card = card
	})
}

// Delete removes the account and its entire transaction log.
func (r *Registry) Delete(ctx context.Context, accountNo string) error {
	return r.store.Delete(ctx, accountNo)
}

// update is read-modify-write with bounded retry on version conflicts, for
// mutations that don't touch balances or the transaction log.
func (r *Registry) update(ctx context.Context, accountNo string, mutate func(*models.LedgerRecord)) error {
	var err error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		var rec *models.LedgerRecord
		rec, err = r.store.Get(ctx, accountNo)
		if err != nil {
			return err
		}
		mutate(rec)
		err = r.store.Put(ctx, accountNo, rec)
		if err != ErrVersionConflict {
			return err
		}
	}
	return err
}

func generateAccountNumber() string {
	const digits = "0123456789"
	b := make([]byte, accountNumberLength)
	rand.Read(b)
	for i := range b {
		b[i] = digits[int(b[i])%len(digits)]
	}
	// Leading zeros are fine; the number is an identifier, not a quantity.
	return string(b)
}
