package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/campusbank/backend/internal/models"
)

// pgStore persists each ledger as a JSONB document in Postgres. Concurrency
// control is optimistic: every UPDATE carries the version the caller read,
// and zero affected rows surfaces as ErrVersionConflict.
type pgStore struct {
	db *sql.DB
}

// NewPgStore wraps an open database handle. Schema (see migrations/):
//
//	CREATE TABLE ledgers (
//	    account_no TEXT PRIMARY KEY,
//	    login      TEXT UNIQUE NOT NULL,
//	    record     JSONB NOT NULL,
//	    version    BIGINT NOT NULL DEFAULT 1,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE SEQUENCE ledger_tx_seq;
func NewPgStore(db *sql.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Get(ctx context.Context, accountNo string) (*models.LedgerRecord, error) {
	var (
		raw     []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT record, version FROM ledgers WHERE account_no = $1`,
		accountNo).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ledger %s: %w", accountNo, err)
	}
	return decodeRecord(raw, version)
}

func (s *pgStore) Put(ctx context.Context, accountNo string, rec *models.LedgerRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode ledger %s: %v", ErrWriteFailure, accountNo, err)
	}

	if rec.Version == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO ledgers (account_no, login, record, version, updated_at)
			 VALUES ($1, $2, $3, 1, NOW())`,
			accountNo, rec.Login, raw)
		if err != nil {
			return fmt.Errorf("%w: insert ledger %s: %v", ErrWriteFailure, accountNo, err)
		}
		rec.Version = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ledgers
		 SET login = $2, record = $3, version = version + 1, updated_at = NOW()
		 WHERE account_no = $1 AND version = $4`,
		accountNo, rec.Login, raw, rec.Version)
	if err != nil {
		return fmt.Errorf("%w: update ledger %s: %v", ErrWriteFailure, accountNo, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update ledger %s: %v", ErrWriteFailure, accountNo, err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	rec.Version++
	return nil
}

func (s *pgStore) Delete(ctx context.Context, accountNo string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ledgers WHERE account_no = $1`, accountNo)
	if err != nil {
		return fmt.Errorf("%w: delete ledger %s: %v", ErrWriteFailure, accountNo, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete ledger %s: %v", ErrWriteFailure, accountNo, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) FindByLogin(ctx context.Context, login string) (*models.LedgerRecord, error) {
	var (
		raw     []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT record, version FROM ledgers WHERE login = $1`,
		login).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ledger by login: %w", err)
	}
	return decodeRecord(raw, version)
}

func (s *pgStore) NextTransactionID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval('ledger_tx_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next transaction id: %w", err)
	}
	return id, nil
}

func decodeRecord(raw []byte, version int64) (*models.LedgerRecord, error) {
	var rec models.LedgerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode ledger record: %w", err)
	}
	rec.Version = version
	return &rec, nil
}
