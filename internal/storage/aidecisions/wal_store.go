// Package aidecisions keeps analysis audit records in a write-ahead log that
// doubles as the source of the live decision stream.
package aidecisions

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

const (
	defaultAuditDir    = "./wal/aidecisions"
	auditSegmentLimit  = 20
	auditMaxSegments   = 5
	auditSegmentPrefix = "audit_"
	auditKeyPrefix     = "ai_decision_"
)

// ErrNotInitialized the store was closed or never opened.
var ErrNotInitialized = errors.New("audit store is not initialized")

// WALStore persists audit records in a WAL for recovery/streaming purposes.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed audit store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultAuditDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           auditSegmentPrefix,
		SegmentThreshold: auditSegmentLimit,
		MaxSegments:      auditMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init audit WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the audit record to the WAL.
func (s *WALStore) Save(ctx context.Context, record domain.AuditRecord) error {
	if s == nil || s.wal == nil {
		return ErrNotInitialized
	}
	if record.Symbol == "" {
		return errors.New("audit record symbol is required")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "save audit record")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal audit record")
	}

	key := auditKeyPrefix + record.Symbol

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1

	return errors.Wrap(s.wal.Write(nextIndex, key, payload), "write audit record")
}

// EventsAfter returns all audit records written after the provided WAL index.
// Records already rotated out of the log are skipped.
func (s *WALStore) EventsAfter(index uint64) ([]domain.AuditRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, ErrNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]domain.AuditRecordEntry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		entry, ok, err := s.entryAt(idx)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Recent returns up to limit of the newest audit records, newest first.
func (s *WALStore) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if s == nil || s.wal == nil {
		return nil, ErrNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.AuditRecord, 0, limit)
	for idx := s.wal.CurrentIndex(); idx > 0 && len(records) < limit; idx-- {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "read recent audit records")
		}

		entry, ok, err := s.entryAt(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			// older indexes were rotated out together with this one
			break
		}
		records = append(records, entry.Record)
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

// entryAt must be called with the read lock held.
func (s *WALStore) entryAt(idx uint64) (domain.AuditRecordEntry, bool, error) {
	key, payload, err := s.wal.Get(idx)
	if err != nil {
		return domain.AuditRecordEntry{}, false, errors.Wrapf(err, "read audit record %d", idx)
	}
	if !strings.HasPrefix(key, auditKeyPrefix) {
		return domain.AuditRecordEntry{}, false, nil
	}

	var record domain.AuditRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.AuditRecordEntry{}, false, errors.Wrapf(err, "decode audit record %d", idx)
	}

	return domain.AuditRecordEntry{Index: idx, Record: record}, true, nil
}
