package domain

// EventKind discriminates the closed set of ledger events.
type EventKind string

const (
	EventKindCreated          EventKind = "CREATED"
	EventKindTransfer         EventKind = "TRANSFER"
	EventKindMint             EventKind = "MINT"
	EventKindAuthorityUpdated EventKind = "AUTHORITY_UPDATED"
)

// Event is a typed entry of a ledger's append-only event log.
type Event interface {
	Kind() EventKind
	Meta() EventMeta
}

// EventMeta carries the fields common to all events.
type EventMeta struct {
	LedgerID  string
	Sequence  uint64 // per-ledger, starts at 0, gap-free
	Timestamp int64  // Unix timestamp in milliseconds
}

// Meta returns the common event fields.
func (m EventMeta) Meta() EventMeta { return m }

// CreatedEvent is emitted exactly once, when the registry instantiates
// a ledger.
type CreatedEvent struct {
	EventMeta
	Creator       Address
	Info          TokenInfo
	MintAuthority *Address // nil = anyone may mint
	InitialSupply uint64
}

func (CreatedEvent) Kind() EventKind { return EventKindCreated }

// TransferEvent is emitted for every balance move. Creation and mint
// credits carry the zero address as From.
type TransferEvent struct {
	EventMeta
	From   Address
	To     Address
	Amount uint64
}

func (TransferEvent) Kind() EventKind { return EventKindTransfer }

// MintEvent is emitted for every successful mint, alongside the
// corresponding TransferEvent.
type MintEvent struct {
	EventMeta
	Minter      Address
	To          Address
	Amount      uint64
	TotalSupply uint64 // supply after the mint
}

func (MintEvent) Kind() EventKind { return EventKindMint }

// AuthorityUpdatedEvent is emitted when the mint authority is reassigned.
type AuthorityUpdatedEvent struct {
	EventMeta
	Previous  *Address // nil = was open to anyone
	Authority Address
	ChangedBy Address
}

func (AuthorityUpdatedEvent) Kind() EventKind { return EventKindAuthorityUpdated }
