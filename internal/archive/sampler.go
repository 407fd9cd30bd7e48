package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"token-forge/internal/domain"
	"token-forge/internal/ledger"
	"token-forge/internal/observability"
	"token-forge/internal/storage"
)

// LedgerSource is the slice of the registry the sampler needs.
type LedgerSource interface {
	AllLedgers() []string
	Ledger(id string) (*ledger.Ledger, error)
}

// Sampler periodically snapshots every ledger's supply into the
// timeseries store.
type Sampler struct {
	source   LedgerSource
	store    storage.SupplyTimeseriesStore
	interval time.Duration
	logger   *log.Logger
	nowMS    func() int64
}

// SamplerOptions configures a Sampler.
type SamplerOptions struct {
	Source   LedgerSource
	Store    storage.SupplyTimeseriesStore
	Interval time.Duration
	Logger   *log.Logger
	// NowMS overrides the sample clock, for tests.
	NowMS func() int64
}

// NewSampler creates a supply sampler.
func NewSampler(opts SamplerOptions) *Sampler {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	nowMS := opts.NowMS
	if nowMS == nil {
		nowMS = func() int64 { return time.Now().UnixMilli() }
	}
	return &Sampler{
		source:   opts.Source,
		store:    opts.Store,
		interval: interval,
		logger:   logger,
		nowMS:    nowMS,
	}
}

// Run samples on the configured interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SampleOnce(ctx); err != nil {
				s.logger.Printf("supply sample: %v", err)
			}
		}
	}
}

// SampleOnce snapshots every ledger at a single timestamp.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	start := time.Now()
	now := s.nowMS()

	ids := s.source.AllLedgers()
	points := make([]*domain.SupplyPoint, 0, len(ids))
	for _, id := range ids {
		l, err := s.source.Ledger(id)
		if err != nil {
			return fmt.Errorf("lookup ledger %s: %w", id, err)
		}
		points = append(points, &domain.SupplyPoint{
			LedgerID:    id,
			TimestampMs: now,
			TotalSupply: l.TotalSupply(),
			MaxSupply:   l.MaxSupply(),
			Holders:     uint32(l.HolderCount()),
		})
	}

	if len(points) == 0 {
		return nil
	}
	if err := s.store.InsertBulk(ctx, points); err != nil {
		return fmt.Errorf("insert supply points: %w", err)
	}

	observability.RecordSupplySample(len(points), time.Since(start).Seconds())
	return nil
}
