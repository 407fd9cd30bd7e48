package storage

import (
	"context"

	"token-forge/internal/domain"
)

// DeploymentStore provides access to deployments storage.
type DeploymentStore interface {
	// Insert adds a new deployment. Returns ErrDuplicateKey if ledger_id exists.
	Insert(ctx context.Context, d *domain.Deployment) error

	// GetByID retrieves a deployment by ledger id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, ledgerID string) (*domain.Deployment, error)

	// GetByCreator retrieves all deployments for a creator, in creation order.
	GetByCreator(ctx context.Context, creator string) ([]*domain.Deployment, error)

	// GetAll retrieves every deployment, in creation order.
	GetAll(ctx context.Context) ([]*domain.Deployment, error)

	// Count returns the total number of deployments.
	Count(ctx context.Context) (int64, error)
}

// EventStore provides access to ledger_events storage.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if (ledger_id, sequence) exists.
	Insert(ctx context.Context, e *domain.EventRecord) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.EventRecord) error

	// GetByLedgerID retrieves all events for a ledger, ordered by sequence ASC.
	GetByLedgerID(ctx context.Context, ledgerID string) ([]*domain.EventRecord, error)

	// GetByTimeRange retrieves events for a ledger within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, ledgerID string, start, end int64) ([]*domain.EventRecord, error)
}

// SupplyTimeseriesStore provides access to supply_timeseries storage.
type SupplyTimeseriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (ledger_id, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.SupplyPoint) error

	// GetByLedgerID retrieves all points for a ledger, ordered by timestamp ASC.
	GetByLedgerID(ctx context.Context, ledgerID string) ([]*domain.SupplyPoint, error)

	// GetByTimeRange retrieves points for a ledger within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, ledgerID string, start, end int64) ([]*domain.SupplyPoint, error)
}
