// Package registry implements the ledger factory and the per-creator
// index of everything it has created.
package registry

import (
	"sync"
	"time"

	"token-forge/internal/authority"
	"token-forge/internal/domain"
	"token-forge/internal/idhash"
	"token-forge/internal/ledger"
)

// Options configures a registry.
type Options struct {
	// Sink is propagated to every ledger the registry creates.
	Sink ledger.EventSink
	// NowMS overrides the clock used for ledger ids and events, for tests.
	NowMS func() int64
}

// Registry creates ledgers and tracks them by creator. It is an owned,
// injectable component; construct one per deployment or test.
type Registry struct {
	mu        sync.RWMutex
	ledgers   map[string]*ledger.Ledger
	byCreator map[domain.Address][]string
	all       []string

	sink  ledger.EventSink
	nowMS func() int64
}

// New creates an empty registry.
func New(opts Options) *Registry {
	nowMS := opts.NowMS
	if nowMS == nil {
		nowMS = func() int64 { return time.Now().UnixMilli() }
	}
	return &Registry{
		ledgers:   make(map[string]*ledger.Ledger),
		byCreator: make(map[domain.Address][]string),
		sink:      opts.Sink,
		nowMS:     nowMS,
	}
}

// Create validates params, resolves the mint authority, instantiates a
// ledger seeded with the initial supply credited to the caller, records
// it under the caller, and returns the new ledger id. Validation failures
// are atomic: no ledger is created and neither index changes.
func (r *Registry) Create(caller domain.Address, params domain.TokenParams) (string, error) {
	if params.Name == "" {
		return "", ErrInvalidName
	}
	if params.Symbol == "" {
		return "", ErrInvalidSymbol
	}
	if params.Decimals > domain.MaxDecimals {
		return "", ErrDecimalsTooHigh
	}
	resolved, err := authority.Resolve(params.AuthorityPolicy, caller, params.SpecificAuthority)
	if err != nil {
		return "", err
	}
	if params.MaxSupply != 0 && params.InitialSupply > params.MaxSupply {
		return "", ErrInitialSupplyExceedsCap
	}
	if caller.IsZero() {
		return "", ErrInvalidRecipient
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := idhash.ComputeLedgerID(caller, params.Symbol, uint64(len(r.all)), r.nowMS())

	l := ledger.New(ledger.Config{
		ID: id,
		Info: domain.TokenInfo{
			Name:      params.Name,
			Symbol:    params.Symbol,
			Decimals:  params.Decimals,
			MaxSupply: params.MaxSupply,
		},
		MintAuthority: resolved,
		InitialSupply: params.InitialSupply,
		Recipient:     caller,
		Creator:       caller,
		Sink:          r.sink,
		NowMS:         r.nowMS,
	})

	r.ledgers[id] = l
	r.byCreator[caller] = append(r.byCreator[caller], id)
	r.all = append(r.all, id)

	return id, nil
}

// Ledger returns the ledger instance for an id issued by Create.
func (r *Registry) Ledger(id string) (*ledger.Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[id]
	if !ok {
		return nil, ErrUnknownLedger
	}
	return l, nil
}

// LedgersByCreator returns the ids created by creator, in creation order.
func (r *Registry) LedgersByCreator(creator domain.Address) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCreator[creator]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// LedgerCount returns the total number of ledgers ever created.
func (r *Registry) LedgerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// AllLedgers returns a snapshot of every id, in creation order.
func (r *Registry) AllLedgers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.all))
	copy(out, r.all)
	return out
}
