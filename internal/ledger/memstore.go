package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/campusbank/backend/internal/models"
)

// memStore keeps all ledgers in process memory, optionally mirrored to a
// JSON snapshot file. The file is written tmp-then-rename so a crash mid-write
// never corrupts the previous snapshot. It backs the "local storage" variant
// and every test that doesn't need Postgres.
type memStore struct {
	mu       sync.RWMutex
	records  map[string]*storedRecord
	logins   map[string]string // login -> account number
	nextTxID int64
	path     string // empty means memory-only
}

type storedRecord struct {
	rec     *models.LedgerRecord
	version int64
}

// snapshot is the on-disk shape of a memStore.
type snapshot struct {
	SavedAt  time.Time                             `json:"savedAt"`
	NextTxID int64                                 `json:"nextTxId"`
	Records  map[string]snapshotRecord             `json:"records"`
}

type snapshotRecord struct {
	Record  *models.LedgerRecord `json:"record"`
	Version int64                `json:"version"`
}

// NewMemStore creates an empty in-memory store. If path is non-empty, an
// existing snapshot at that path is loaded and every mutation rewrites it.
func NewMemStore(path string) (Store, error) {
	s := &memStore{
		records: make(map[string]*storedRecord),
		logins:  make(map[string]string),
		path:    path,
	}
	if path == "" {
		return s, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode ledger snapshot: %w", err)
	}
	s.nextTxID = snap.NextTxID
	for no, sr := range snap.Records {
		s.records[no] = &storedRecord{rec: sr.Record, version: sr.Version}
		if sr.Record.Login != "" {
			s.logins[sr.Record.Login] = no
		}
	}
	return s, nil
}

func (s *memStore) Get(_ context.Context, accountNo string) (*models.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.records[accountNo]
	if !ok {
		return nil, ErrNotFound
	}
	rec := sr.rec.Clone()
	rec.Version = sr.version
	return rec, nil
}

func (s *memStore) Put(_ context.Context, accountNo string, rec *models.LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.records[accountNo]
	switch {
	case !exists && rec.Version != 0:
		return ErrVersionConflict
	case exists && rec.Version != cur.version:
		return ErrVersionConflict
	}

	if exists && cur.rec.Login != rec.Login {
		delete(s.logins, cur.rec.Login)
	}
	stored := rec.Clone()
	s.records[accountNo] = &storedRecord{rec: stored, version: rec.Version + 1}
	if rec.Login != "" {
		s.logins[rec.Login] = accountNo
	}

	if err := s.persistLocked(); err != nil {
		// The snapshot never landed. Restore the previous entry so a
		// failed write leaves no trace of the mutation and the caller's
		// version stays valid for a retry.
		if exists {
			s.records[accountNo] = cur
		} else {
			delete(s.records, accountNo)
		}
		if rec.Login != "" && (!exists || rec.Login != cur.rec.Login) {
			delete(s.logins, rec.Login)
		}
		if exists && cur.rec.Login != "" {
			s.logins[cur.rec.Login] = accountNo
		}
		return err
	}
	rec.Version++
	return nil
}

func (s *memStore) Delete(_ context.Context, accountNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[accountNo]
	if !ok {
		return ErrNotFound
	}
	delete(s.logins, sr.rec.Login)
	delete(s.records, accountNo)

	if err := s.persistLocked(); err != nil {
		s.records[accountNo] = sr
		if sr.rec.Login != "" {
			s.logins[sr.rec.Login] = accountNo
		}
		return err
	}
	return nil
}

func (s *memStore) FindByLogin(ctx context.Context, login string) (*models.LedgerRecord, error) {
	s.mu.RLock()
	accountNo, ok := s.logins[login]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, accountNo)
}

func (s *memStore) NextTransactionID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxID++
	return s.nextTxID, nil
}

// persistLocked rewrites the snapshot file. Callers hold s.mu.
func (s *memStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	snap := snapshot{
		SavedAt:  time.Now(),
		NextTxID: s.nextTxID,
		Records:  make(map[string]snapshotRecord, len(s.records)),
	}
	for no, sr := range s.records {
		snap.Records[no] = snapshotRecord{Record: sr.rec, Version: sr.version}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return nil
}
