package memory

import (
	"context"
	"sort"
	"sync"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

type eventKey struct {
	ledgerID string
	sequence uint64
}

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[eventKey]*domain.EventRecord
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[eventKey]*domain.EventRecord),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if (ledger_id, sequence) exists.
func (s *EventStore) Insert(_ context.Context, e *domain.EventRecord) error {
	if e == nil || e.LedgerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(e)
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.EventRecord) error {
	for _, e := range events {
		if e == nil || e.LedgerID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check the whole batch, including intra-batch duplicates, before writing
	seen := make(map[eventKey]struct{}, len(events))
	for _, e := range events {
		k := eventKey{e.LedgerID, e.Sequence}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, e := range events {
		if err := s.insertLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventStore) insertLocked(e *domain.EventRecord) error {
	k := eventKey{e.LedgerID, e.Sequence}
	if _, exists := s.data[k]; exists {
		return storage.ErrDuplicateKey
	}
	recordCopy := *e
	s.data[k] = &recordCopy
	return nil
}

// GetByLedgerID retrieves all events for a ledger, ordered by sequence ASC.
func (s *EventStore) GetByLedgerID(_ context.Context, ledgerID string) ([]*domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventRecord
	for k, e := range s.data {
		if k.ledgerID == ledgerID {
			recordCopy := *e
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}

// GetByTimeRange retrieves events for a ledger within [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(_ context.Context, ledgerID string, start, end int64) ([]*domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventRecord
	for k, e := range s.data {
		if k.ledgerID == ledgerID && e.Timestamp >= start && e.Timestamp <= end {
			recordCopy := *e
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)
