package memory

import (
	"context"
	"sort"
	"sync"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

type supplyKey struct {
	ledgerID    string
	timestampMs int64
}

// SupplyTimeseriesStore is an in-memory implementation of storage.SupplyTimeseriesStore.
type SupplyTimeseriesStore struct {
	mu   sync.RWMutex
	data map[supplyKey]*domain.SupplyPoint
}

// NewSupplyTimeseriesStore creates a new in-memory supply timeseries store.
func NewSupplyTimeseriesStore() *SupplyTimeseriesStore {
	return &SupplyTimeseriesStore{
		data: make(map[supplyKey]*domain.SupplyPoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (ledger_id, timestamp_ms).
func (s *SupplyTimeseriesStore) InsertBulk(_ context.Context, points []*domain.SupplyPoint) error {
	for _, p := range points {
		if p == nil || p.LedgerID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[supplyKey]struct{}, len(points))
	for _, p := range points {
		k := supplyKey{p.LedgerID, p.TimestampMs}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[supplyKey{p.LedgerID, p.TimestampMs}] = &pointCopy
	}
	return nil
}

// GetByLedgerID retrieves all points for a ledger, ordered by timestamp ASC.
func (s *SupplyTimeseriesStore) GetByLedgerID(_ context.Context, ledgerID string) ([]*domain.SupplyPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SupplyPoint
	for k, p := range s.data {
		if k.ledgerID == ledgerID {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sortSupplyPoints(result)
	return result, nil
}

// GetByTimeRange retrieves points for a ledger within [start, end] (inclusive).
func (s *SupplyTimeseriesStore) GetByTimeRange(_ context.Context, ledgerID string, start, end int64) ([]*domain.SupplyPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SupplyPoint
	for k, p := range s.data {
		if k.ledgerID == ledgerID && p.TimestampMs >= start && p.TimestampMs <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sortSupplyPoints(result)
	return result, nil
}

func sortSupplyPoints(points []*domain.SupplyPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
}

// Verify interface compliance at compile time.
var _ storage.SupplyTimeseriesStore = (*SupplyTimeseriesStore)(nil)
