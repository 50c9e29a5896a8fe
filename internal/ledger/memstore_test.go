package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbank/backend/internal/models"
)

func TestMemStore_VersionControl(t *testing.T) {
	ctx := context.Background()

	t.Run("put bumps the version", func(t *testing.T) {
		store := newTestStore(t)
		seedAccount(t, store, "1000000001", mustAmount("10.00"))

		rec, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Version)

		require.NoError(t, store.Put(ctx, "1000000001", rec))
		assert.Equal(t, int64(2), rec.Version)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		store := newTestStore(t)
		seedAccount(t, store, "1000000001", mustAmount("10.00"))

		first, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		second, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "1000000001", first))
		assert.ErrorIs(t, store.Put(ctx, "1000000001", second), ErrVersionConflict)
	})

	t.Run("nonzero version on a missing record is rejected", func(t *testing.T) {
		store := newTestStore(t)
		rec := &models.LedgerRecord{Account: models.Account{Number: "1000000001"}, Version: 3}
		assert.ErrorIs(t, store.Put(ctx, "1000000001", rec), ErrVersionConflict)
	})

	t.Run("get returns an isolated copy", func(t *testing.T) {
		store := newTestStore(t)
		seedAccount(t, store, "1000000001", mustAmount("10.00"))

		rec, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		rec.Account.Balance = mustAmount("999.00")
		rec.Transactions = append(rec.Transactions, models.Transaction{ID: 99})

		fresh, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		assert.True(t, fresh.Account.Balance.Equal(mustAmount("10.00")))
		assert.Empty(t, fresh.Transactions)
	})
}

func TestMemStore_TransactionIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	prev := int64(0)
	for i := 0; i < 10; i++ {
		id, err := store.NextTransactionID(ctx)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestMemStore_Snapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledgers.json")

	store, err := NewMemStore(path)
	require.NoError(t, err)
	seedAccount(t, store, "1000000001", mustAmount("42.00"))

	engine := newTestEngine(store)
	_, err = engine.Deposit(ctx, "1000000001", mustAmount("8.00"), "top up")
	require.NoError(t, err)

	// A fresh store loading the same file sees the same state, including the
	// version and the id sequence position.
	reloaded, err := NewMemStore(path)
	require.NoError(t, err)

	rec, err := reloaded.Get(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, rec.Account.Balance.Equal(mustAmount("50.00")))
	assert.Len(t, rec.Transactions, 1)
	assert.Equal(t, int64(2), rec.Version)

	byLogin, err := reloaded.FindByLogin(ctx, "1000000001@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1000000001", byLogin.Account.Number)

	id, err := reloaded.NextTransactionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestMemStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedAccount(t, store, "1000000001", mustAmount("10.00"))

	require.NoError(t, store.Delete(ctx, "1000000001"))
	_, err := store.Get(ctx, "1000000001")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "1000000001"), ErrNotFound)
}

func TestMemStore_PersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewMemStore(filepath.Join(dir, "ledgers.json"))
	require.NoError(t, err)
	seedAccount(t, store, "1000000001", mustAmount("10.00"))

	// Point the snapshot at a directory that does not exist so every
	// subsequent persist fails.
	store.(*memStore).path = filepath.Join(dir, "missing", "ledgers.json")

	t.Run("failed put keeps the stored record and version", func(t *testing.T) {
		rec, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		rec.Account.Balance = mustAmount("999.00")

		require.ErrorIs(t, store.Put(ctx, "1000000001", rec), ErrWriteFailure)
		assert.Equal(t, int64(1), rec.Version)

		fresh, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		assert.True(t, fresh.Account.Balance.Equal(mustAmount("10.00")))
		assert.Equal(t, int64(1), fresh.Version)
	})

	t.Run("failed create leaves no record or login binding", func(t *testing.T) {
		rec := &models.LedgerRecord{
			Account: models.Account{Number: "2000000002"},
			Login:   "new@example.com",
		}
		require.ErrorIs(t, store.Put(ctx, "2000000002", rec), ErrWriteFailure)
		assert.Equal(t, int64(0), rec.Version)

		_, err := store.Get(ctx, "2000000002")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.FindByLogin(ctx, "new@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("failed delete keeps the record and login", func(t *testing.T) {
		require.ErrorIs(t, store.Delete(ctx, "1000000001"), ErrWriteFailure)

		_, err := store.Get(ctx, "1000000001")
		assert.NoError(t, err)
		_, err = store.FindByLogin(ctx, "1000000001@example.com")
		assert.NoError(t, err)
	})

	t.Run("failed deposit leaves the ledger in its prior state", func(t *testing.T) {
		engine := newTestEngine(store)
		_, err := engine.Deposit(ctx, "1000000001", mustAmount("100.00"), "")
		require.ErrorIs(t, err, ErrWriteFailure)

		rec, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		assert.True(t, rec.Account.Balance.Equal(mustAmount("10.00")))
		assert.Empty(t, rec.Transactions)
	})

	t.Run("same record retries cleanly once the path is writable again", func(t *testing.T) {
		store.(*memStore).path = filepath.Join(dir, "ledgers.json")

		rec, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		rec.Account.Balance = mustAmount("25.00")
		require.NoError(t, store.Put(ctx, "1000000001", rec))
		assert.Equal(t, int64(2), rec.Version)
	})
}

func TestMemStore_MissingSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store, err := NewMemStore(path)
	require.NoError(t, err)

	// First write creates the file.
	seedAccount(t, store, "1000000001", mustAmount("1.00"))
	_, err = NewMemStore(path)
	assert.NoError(t, err)
}

func TestLedgerRecord_AppendSnapshot(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 10, 0, 0, 0, time.UTC)
	}

	t.Run("same-day snapshots collapse to the newest", func(t *testing.T) {
		rec := &models.LedgerRecord{Account: models.Account{Balance: mustAmount("10.00")}}
		rec.AppendSnapshot(day(1))
		rec.Account.Balance = mustAmount("20.00")
		rec.AppendSnapshot(day(1).Add(3 * time.Hour))

		require.Len(t, rec.History, 1)
		assert.True(t, rec.History[0].Balance.Equal(mustAmount("20.00")))
	})

	t.Run("distinct days accumulate", func(t *testing.T) {
		rec := &models.LedgerRecord{Account: models.Account{Balance: mustAmount("10.00")}}
		rec.AppendSnapshot(day(1))
		rec.AppendSnapshot(day(2))
		assert.Len(t, rec.History, 2)
	})

	t.Run("series trimmed to retention", func(t *testing.T) {
		rec := &models.LedgerRecord{Account: models.Account{Balance: mustAmount("10.00")}}
		start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
		for i := 0; i < models.SnapshotRetention+15; i++ {
			rec.AppendSnapshot(start.AddDate(0, 0, i))
		}
		assert.Len(t, rec.History, models.SnapshotRetention)
		// Oldest entries drop first.
		assert.Equal(t, "2026-01-16", rec.History[0].Day())
	})
}
