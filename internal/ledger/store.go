package ledger

import (
	"context"

	"github.com/campusbank/backend/internal/models"
)

// Store is durable keyed storage of one LedgerRecord per account number.
// It performs no validation; read-modify-write correctness is the caller's
// job, enforced through the per-record version check in Put.
//
// Two implementations exist: an in-process store with an optional JSON
// snapshot file, and a Postgres JSONB document store. The engine and
// registry are agnostic to which one is wired in.
type Store interface {
	// Get returns a copy of the record for accountNo, or ErrNotFound.
	Get(ctx context.Context, accountNo string) (*models.LedgerRecord, error)

	// Put overwrites the full record. The write is admitted only when
	// rec.Version matches the stored version (0 for a new record);
	// otherwise ErrVersionConflict is returned. Backend rejections are
	// wrapped in ErrWriteFailure.
	Put(ctx context.Context, accountNo string, rec *models.LedgerRecord) error

	// Delete removes the record and its whole transaction log, or returns
	// ErrNotFound.
	Delete(ctx context.Context, accountNo string) error

	// FindByLogin returns the record bound to a login identifier, or
	// ErrNotFound.
	FindByLogin(ctx context.Context, login string) (*models.LedgerRecord, error)

	// NextTransactionID draws the next value from the store-wide monotonic
	// transaction sequence.
	NextTransactionID(ctx context.Context) (int64, error)
}
