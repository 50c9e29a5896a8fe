package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbank/backend/internal/models"
)

func pgRecord(t *testing.T, accountNo string, balance string) (*models.LedgerRecord, []byte) {
	t.Helper()
	rec := &models.LedgerRecord{
		Account: models.Account{
			Number:      accountNo,
			DisplayName: "Test Account",
			Balance:     mustAmount(balance),
			CreatedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		Login:        "pg@example.com",
		Transactions: []models.Transaction{},
		History:      []models.BalanceSnapshot{},
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	return rec, raw
}

func TestPgStore_Get(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPgStore(db)

	t.Run("found", func(t *testing.T) {
		_, raw := pgRecord(t, "1000000001", "55.00")
		mock.ExpectQuery("SELECT record, version FROM ledgers WHERE account_no = \\$1").
			WithArgs("1000000001").
			WillReturnRows(sqlmock.NewRows([]string{"record", "version"}).AddRow(raw, int64(7)))

		rec, err := store.Get(ctx, "1000000001")
		require.NoError(t, err)
		assert.True(t, rec.Account.Balance.Equal(mustAmount("55.00")))
		assert.Equal(t, int64(7), rec.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT record, version FROM ledgers WHERE account_no = \\$1").
			WithArgs("9999999999").
			WillReturnRows(sqlmock.NewRows([]string{"record", "version"}))

		_, err := store.Get(ctx, "9999999999")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgStore_Put(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPgStore(db)

	t.Run("version zero inserts", func(t *testing.T) {
		rec, _ := pgRecord(t, "1000000001", "0")

		mock.ExpectExec("INSERT INTO ledgers").
			WithArgs("1000000001", rec.Login, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Put(ctx, "1000000001", rec))
		assert.Equal(t, int64(1), rec.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("matching version updates and bumps", func(t *testing.T) {
		rec, _ := pgRecord(t, "1000000001", "80.00")
		rec.Version = 4

		mock.ExpectExec("UPDATE ledgers").
			WithArgs("1000000001", rec.Login, sqlmock.AnyArg(), int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Put(ctx, "1000000001", rec))
		assert.Equal(t, int64(5), rec.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		rec, _ := pgRecord(t, "1000000001", "80.00")
		rec.Version = 3

		mock.ExpectExec("UPDATE ledgers").
			WithArgs("1000000001", rec.Login, sqlmock.AnyArg(), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.Put(ctx, "1000000001", rec), ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgStore_Delete(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPgStore(db)

	t.Run("deletes the row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM ledgers WHERE account_no = \\$1").
			WithArgs("1000000001").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Delete(ctx, "1000000001"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM ledgers WHERE account_no = \\$1").
			WithArgs("9999999999").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.Delete(ctx, "9999999999"), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgStore_FindByLogin(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPgStore(db)

	_, raw := pgRecord(t, "1000000001", "12.00")
	mock.ExpectQuery("SELECT record, version FROM ledgers WHERE login = \\$1").
		WithArgs("pg@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"record", "version"}).AddRow(raw, int64(2)))

	rec, err := store.FindByLogin(ctx, "pg@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1000000001", rec.Account.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_NextTransactionID(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPgStore(db)

	mock.ExpectQuery("SELECT nextval\\('ledger_tx_seq'\\)").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(41)))

	id, err := store.NextTransactionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
