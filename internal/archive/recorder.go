// Package archive bridges the in-memory core into the persistence layer:
// a Recorder mirrors ledger events and deployments into the stores, and a
// Sampler rolls periodic supply snapshots into the timeseries store.
package archive

import (
	"context"
	"errors"
	"log"
	"time"

	"token-forge/internal/domain"
	"token-forge/internal/ledger"
	"token-forge/internal/observability"
	"token-forge/internal/storage"
)

// Recorder persists every core event it is handed. Store failures are
// logged and counted, never surfaced back into ledger operations.
type Recorder struct {
	deployments storage.DeploymentStore
	events      storage.EventStore
	logger      *log.Logger
	timeout     time.Duration
}

// NewRecorder creates a recorder writing to the given stores.
func NewRecorder(deployments storage.DeploymentStore, events storage.EventStore, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		deployments: deployments,
		events:      events,
		logger:      logger,
		timeout:     10 * time.Second,
	}
}

// Sink returns the event sink to register on the registry.
func (r *Recorder) Sink() ledger.EventSink {
	return r.handle
}

func (r *Recorder) handle(ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if created, ok := ev.(domain.CreatedEvent); ok {
		if err := r.deployments.Insert(ctx, deploymentFrom(created)); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Printf("archive deployment %s: %v", created.LedgerID, err)
			observability.RecordArchiveError("deployment")
		}
	}

	if err := r.events.Insert(ctx, domain.NewEventRecord(ev)); err != nil {
		// Duplicates happen when a sink is re-registered over an existing log
		if !errors.Is(err, storage.ErrDuplicateKey) {
			m := ev.Meta()
			r.logger.Printf("archive event %s/%d: %v", m.LedgerID, m.Sequence, err)
			observability.RecordArchiveError("event")
			return
		}
	}
	observability.RecordEventArchived(string(ev.Kind()))
}

// deploymentFrom flattens a creation event into its registry record.
func deploymentFrom(ev domain.CreatedEvent) *domain.Deployment {
	d := &domain.Deployment{
		LedgerID:  ev.LedgerID,
		Creator:   ev.Creator.String(),
		Name:      ev.Info.Name,
		Symbol:    ev.Info.Symbol,
		Decimals:  ev.Info.Decimals,
		MaxSupply: ev.Info.MaxSupply,
		CreatedAt: ev.Timestamp,
	}
	if ev.MintAuthority != nil {
		s := ev.MintAuthority.String()
		d.MintAuthority = &s
	}
	return d
}
