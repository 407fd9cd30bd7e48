// Package ledger implements the per-token balance, allowance, and supply
// state machine. Every mutating operation checks all preconditions before
// touching state, so a failed operation leaves no partial effects.
package ledger

import (
	"math"
	"sync"
	"time"

	"token-forge/internal/domain"
)

// InfiniteAllowance is the sentinel for an approval that is never
// decremented by delegated transfers.
const InfiniteAllowance = math.MaxUint64

// EventSink receives every event a ledger appends to its log. Sinks are
// invoked outside the ledger's lock, after the mutation has committed.
type EventSink func(domain.Event)

type allowanceKey struct {
	owner   domain.Address
	spender domain.Address
}

// Ledger is one token account: immutable metadata plus the mutable
// balances, allowances, supply counter, and mint authority.
type Ledger struct {
	id   string
	info domain.TokenInfo

	mu          sync.RWMutex
	totalSupply uint64
	authority   *domain.Address // nil = anyone may mint
	balances    map[domain.Address]uint64
	allowances  map[allowanceKey]uint64
	events      []domain.Event
	seq         uint64

	sink  EventSink
	nowMS func() int64
}

// Config seeds a new ledger. Inputs are assumed validated by the
// registry; New does not re-check them.
type Config struct {
	ID            string
	Info          domain.TokenInfo
	MintAuthority *domain.Address // nil = anyone may mint
	InitialSupply uint64
	Recipient     domain.Address
	Creator       domain.Address

	// Sink, if set, receives every appended event.
	Sink EventSink
	// NowMS overrides the event clock, for tests.
	NowMS func() int64
}

// New creates a ledger, credits the initial supply to the recipient, and
// emits the creation events (a CreatedEvent, and a TransferEvent from the
// zero address when the initial supply is nonzero).
func New(cfg Config) *Ledger {
	l := &Ledger{
		id:         cfg.ID,
		info:       cfg.Info,
		authority:  cfg.MintAuthority,
		balances:   make(map[domain.Address]uint64),
		allowances: make(map[allowanceKey]uint64),
		sink:       cfg.Sink,
		nowMS:      cfg.NowMS,
	}
	if l.nowMS == nil {
		l.nowMS = func() int64 { return time.Now().UnixMilli() }
	}

	events := make([]domain.Event, 0, 2)
	events = append(events, domain.CreatedEvent{
		EventMeta:     l.nextMeta(),
		Creator:       cfg.Creator,
		Info:          cfg.Info,
		MintAuthority: cfg.MintAuthority,
		InitialSupply: cfg.InitialSupply,
	})

	if cfg.InitialSupply > 0 {
		l.totalSupply = cfg.InitialSupply
		l.balances[cfg.Recipient] = cfg.InitialSupply
		events = append(events, domain.TransferEvent{
			EventMeta: l.nextMeta(),
			From:      domain.ZeroAddress,
			To:        cfg.Recipient,
			Amount:    cfg.InitialSupply,
		})
	}

	l.events = events
	l.notify(events...)
	return l
}

// nextMeta allocates the next event sequence number. Callers must hold
// the write lock (or, during New, exclusive ownership).
func (l *Ledger) nextMeta() domain.EventMeta {
	m := domain.EventMeta{
		LedgerID:  l.id,
		Sequence:  l.seq,
		Timestamp: l.nowMS(),
	}
	l.seq++
	return m
}

func (l *Ledger) notify(events ...domain.Event) {
	if l.sink == nil {
		return
	}
	for _, ev := range events {
		l.sink(ev)
	}
}

// Transfer moves amount from the caller's balance to another holder.
func (l *Ledger) Transfer(from, to domain.Address, amount uint64) error {
	ev, err := l.transferLocked(from, to, amount)
	if err != nil {
		return err
	}
	l.notify(ev)
	return nil
}

func (l *Ledger) transferLocked(from, to domain.Address, amount uint64) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if to.IsZero() {
		return nil, ErrZeroAddress
	}
	if l.balances[from] < amount {
		return nil, ErrInsufficientBalance
	}

	l.move(from, to, amount)
	ev := domain.TransferEvent{
		EventMeta: l.nextMeta(),
		From:      from,
		To:        to,
		Amount:    amount,
	}
	l.events = append(l.events, ev)
	return ev, nil
}

// move shifts a pre-checked amount between balances. Conservation holds
// because the debit and credit are equal and supply is untouched.
func (l *Ledger) move(from, to domain.Address, amount uint64) {
	l.balances[from] -= amount
	if l.balances[from] == 0 {
		delete(l.balances, from)
	}
	l.balances[to] += amount
}

// Approve sets the (owner, spender) allowance to amount, replacing any
// prior value. Callers needing additive semantics must read then write.
func (l *Ledger) Approve(owner, spender domain.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if spender.IsZero() {
		return ErrZeroAddress
	}

	key := allowanceKey{owner: owner, spender: spender}
	if amount == 0 {
		delete(l.allowances, key)
	} else {
		l.allowances[key] = amount
	}
	return nil
}

// TransferFrom moves amount from one holder to another on the strength of
// the spender's allowance. An InfiniteAllowance approval is never
// decremented.
func (l *Ledger) TransferFrom(spender, from, to domain.Address, amount uint64) error {
	ev, err := l.transferFromLocked(spender, from, to, amount)
	if err != nil {
		return err
	}
	l.notify(ev)
	return nil
}

func (l *Ledger) transferFromLocked(spender, from, to domain.Address, amount uint64) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{owner: from, spender: spender}
	allowed := l.allowances[key]
	if allowed != InfiniteAllowance {
		if allowed < amount {
			return nil, ErrInsufficientAllowance
		}
	}

	if to.IsZero() {
		return nil, ErrZeroAddress
	}
	if l.balances[from] < amount {
		return nil, ErrInsufficientBalance
	}

	if allowed != InfiniteAllowance {
		remaining := allowed - amount
		if remaining == 0 {
			delete(l.allowances, key)
		} else {
			l.allowances[key] = remaining
		}
	}

	l.move(from, to, amount)
	ev := domain.TransferEvent{
		EventMeta: l.nextMeta(),
		From:      from,
		To:        to,
		Amount:    amount,
	}
	l.events = append(l.events, ev)
	return ev, nil
}

// Mint creates amount new tokens in to's balance. Succeeds only for the
// current mint authority, or for any caller when the authority is open.
func (l *Ledger) Mint(caller, to domain.Address, amount uint64) error {
	events, err := l.mintLocked(caller, to, amount)
	if err != nil {
		return err
	}
	l.notify(events...)
	return nil
}

func (l *Ledger) mintLocked(caller, to domain.Address, amount uint64) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mayMint(caller) {
		return nil, ErrUnauthorized
	}
	if to.IsZero() {
		return nil, ErrZeroAddress
	}
	if amount == 0 {
		return nil, ErrZeroAmount
	}

	// Cap check; on uncapped ledgers the supply counter must still not wrap.
	limit := l.info.MaxSupply
	if limit == 0 {
		limit = math.MaxUint64
	}
	if amount > limit-l.totalSupply {
		return nil, ErrExceedsMaxSupply
	}

	l.totalSupply += amount
	l.balances[to] += amount

	events := []domain.Event{
		domain.MintEvent{
			EventMeta:   l.nextMeta(),
			Minter:      caller,
			To:          to,
			Amount:      amount,
			TotalSupply: l.totalSupply,
		},
		domain.TransferEvent{
			EventMeta: l.nextMeta(),
			From:      domain.ZeroAddress,
			To:        to,
			Amount:    amount,
		},
	}
	l.events = append(l.events, events...)
	return events, nil
}

// mayMint reports whether caller passes the authority gate. Callers must
// hold the lock.
func (l *Ledger) mayMint(caller domain.Address) bool {
	return l.authority == nil || *l.authority == caller
}

// UpdateMintAuthority reassigns the mint authority. The gate is the same
// as for Mint: with an open authority, any caller may lock minting to an
// identity of their choosing.
func (l *Ledger) UpdateMintAuthority(caller, newAuthority domain.Address) error {
	ev, err := l.updateAuthorityLocked(caller, newAuthority)
	if err != nil {
		return err
	}
	l.notify(ev)
	return nil
}

func (l *Ledger) updateAuthorityLocked(caller, newAuthority domain.Address) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mayMint(caller) {
		return nil, ErrUnauthorized
	}
	if newAuthority.IsZero() {
		return nil, ErrInvalidAuthority
	}

	previous := l.authority
	a := newAuthority
	l.authority = &a

	ev := domain.AuthorityUpdatedEvent{
		EventMeta: l.nextMeta(),
		Previous:  previous,
		Authority: newAuthority,
		ChangedBy: caller,
	}
	l.events = append(l.events, ev)
	return ev, nil
}

// ID returns the ledger identifier.
func (l *Ledger) ID() string { return l.id }

// Name returns the token name.
func (l *Ledger) Name() string { return l.info.Name }

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return l.info.Symbol }

// Decimals returns the decimal precision.
func (l *Ledger) Decimals() uint8 { return l.info.Decimals }

// MaxSupply returns the supply cap; 0 means unlimited.
func (l *Ledger) MaxSupply() uint64 { return l.info.MaxSupply }

// Info returns the immutable token metadata.
func (l *Ledger) Info() domain.TokenInfo { return l.info }

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalSupply
}

// MintAuthority returns the current authority and whether one is set;
// ok == false means anyone may mint.
func (l *Ledger) MintAuthority() (domain.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.authority == nil {
		return domain.ZeroAddress, false
	}
	return *l.authority, true
}

// BalanceOf returns the holder's balance.
func (l *Ledger) BalanceOf(holder domain.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[holder]
}

// Allowance returns the (owner, spender) allowance.
func (l *Ledger) Allowance(owner, spender domain.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[allowanceKey{owner: owner, spender: spender}]
}

// HolderCount returns the number of nonzero balances.
func (l *Ledger) HolderCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.balances)
}

// Events returns a snapshot of the append-only event log.
func (l *Ledger) Events() []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Event, len(l.events))
	copy(out, l.events)
	return out
}
