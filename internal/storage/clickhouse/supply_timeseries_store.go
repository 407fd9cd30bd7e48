package clickhouse

import (
	"context"
	"fmt"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// SupplyTimeseriesStore implements storage.SupplyTimeseriesStore using ClickHouse.
type SupplyTimeseriesStore struct {
	conn *Conn
}

// NewSupplyTimeseriesStore creates a new SupplyTimeseriesStore.
func NewSupplyTimeseriesStore(conn *Conn) *SupplyTimeseriesStore {
	return &SupplyTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SupplyTimeseriesStore = (*SupplyTimeseriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (ledger_id, timestamp_ms).
func (s *SupplyTimeseriesStore) InsertBulk(ctx context.Context, points []*domain.SupplyPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		ledgerID    string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.LedgerID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.LedgerID, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.LedgerID, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO supply_timeseries (
			ledger_id, timestamp_ms, total_supply, max_supply, holders
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.LedgerID, uint64(p.TimestampMs),
			p.TotalSupply, p.MaxSupply, p.Holders,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByLedgerID retrieves all points for a ledger, ordered by timestamp ASC.
func (s *SupplyTimeseriesStore) GetByLedgerID(ctx context.Context, ledgerID string) ([]*domain.SupplyPoint, error) {
	query := `
		SELECT ledger_id, timestamp_ms, total_supply, max_supply, holders
		FROM supply_timeseries
		WHERE ledger_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("get supply points by ledger id: %w", err)
	}
	defer rows.Close()

	return scanSupplyPoints(rows)
}

// GetByTimeRange retrieves points for a ledger within [start, end] (inclusive).
func (s *SupplyTimeseriesStore) GetByTimeRange(ctx context.Context, ledgerID string, start, end int64) ([]*domain.SupplyPoint, error) {
	query := `
		SELECT ledger_id, timestamp_ms, total_supply, max_supply, holders
		FROM supply_timeseries
		WHERE ledger_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, ledgerID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("get supply points by time range: %w", err)
	}
	defer rows.Close()

	return scanSupplyPoints(rows)
}

// exists checks whether a (ledger_id, timestamp_ms) row is already stored.
func (s *SupplyTimeseriesStore) exists(ctx context.Context, ledgerID string, timestampMs int64) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM supply_timeseries
		WHERE ledger_id = ? AND timestamp_ms = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, ledgerID, uint64(timestampMs)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type supplyRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSupplyPoints(rows supplyRows) ([]*domain.SupplyPoint, error) {
	var points []*domain.SupplyPoint

	for rows.Next() {
		var p domain.SupplyPoint
		var timestampMs uint64

		err := rows.Scan(
			&p.LedgerID,
			&timestampMs,
			&p.TotalSupply,
			&p.MaxSupply,
			&p.Holders,
		)
		if err != nil {
			return nil, fmt.Errorf("scan supply point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supply point rows: %w", err)
	}

	return points, nil
}
