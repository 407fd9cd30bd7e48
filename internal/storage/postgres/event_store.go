package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	ledger_id, sequence, kind, from_addr, to_addr, actor, authority,
	amount::text, total_supply::text, timestamp_ms
`

const insertEventQuery = `
	INSERT INTO ledger_events (
		ledger_id, sequence, kind, from_addr, to_addr, actor, authority,
		amount, total_supply, timestamp_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10)
`

// Insert adds a new event. Returns ErrDuplicateKey if (ledger_id, sequence) exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.EventRecord) error {
	_, err := s.pool.Exec(ctx, insertEventQuery, eventArgs(e)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if _, err := tx.Exec(ctx, insertEventQuery, eventArgs(e)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event in batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByLedgerID retrieves all events for a ledger, ordered by sequence ASC.
func (s *EventStore) GetByLedgerID(ctx context.Context, ledgerID string) ([]*domain.EventRecord, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE ledger_id = $1
		ORDER BY sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("get events by ledger id: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByTimeRange retrieves events for a ledger within [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(ctx context.Context, ledgerID string, start, end int64) ([]*domain.EventRecord, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE ledger_id = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, ledgerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func eventArgs(e *domain.EventRecord) []any {
	return []any{
		e.LedgerID,
		int64(e.Sequence),
		string(e.Kind),
		e.From,
		e.To,
		e.Actor,
		e.Authority,
		formatU64(e.Amount),
		formatU64(e.TotalSupply),
		e.Timestamp,
	}
}

// scanEvent scans a single row into an EventRecord.
func scanEvent(row pgx.Row) (*domain.EventRecord, error) {
	var e domain.EventRecord
	var sequence int64
	var kind string
	var amount, totalSupply string

	err := row.Scan(
		&e.LedgerID,
		&sequence,
		&kind,
		&e.From,
		&e.To,
		&e.Actor,
		&e.Authority,
		&amount,
		&totalSupply,
		&e.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	e.Sequence = uint64(sequence)
	e.Kind = domain.EventKind(kind)
	if e.Amount, err = parseU64(amount); err != nil {
		return nil, err
	}
	if e.TotalSupply, err = parseU64(totalSupply); err != nil {
		return nil, err
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of EventRecord.
func scanEvents(rows pgx.Rows) ([]*domain.EventRecord, error) {
	var events []*domain.EventRecord

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
