package domain

// EventRecord is the flattened, storage- and wire-facing form of an
// Event. Corresponds to the ledger_events table in PostgreSQL and to the
// JSON frames published on the event feed.
type EventRecord struct {
	LedgerID    string    `json:"ledger_id"`
	Sequence    uint64    `json:"sequence"`
	Kind        EventKind `json:"kind"`
	From        *string   `json:"from,omitempty"`      // base58, nil when not applicable
	To          *string   `json:"to,omitempty"`        // base58
	Actor       *string   `json:"actor,omitempty"`     // minter / authority changer / creator
	Authority   *string   `json:"authority,omitempty"` // resolved or new authority
	Amount      uint64    `json:"amount"`
	TotalSupply uint64    `json:"total_supply"` // 0 when not carried by the event
	Timestamp   int64     `json:"timestamp"`    // Unix timestamp in milliseconds
}

// NewEventRecord flattens a typed event into its storage form.
func NewEventRecord(ev Event) *EventRecord {
	m := ev.Meta()
	rec := &EventRecord{
		LedgerID:  m.LedgerID,
		Sequence:  m.Sequence,
		Kind:      ev.Kind(),
		Timestamp: m.Timestamp,
	}

	switch e := ev.(type) {
	case CreatedEvent:
		rec.Actor = addrString(e.Creator)
		if e.MintAuthority != nil {
			rec.Authority = addrString(*e.MintAuthority)
		}
		rec.Amount = e.InitialSupply
		rec.TotalSupply = e.InitialSupply
	case TransferEvent:
		rec.From = addrString(e.From)
		rec.To = addrString(e.To)
		rec.Amount = e.Amount
	case MintEvent:
		rec.Actor = addrString(e.Minter)
		rec.To = addrString(e.To)
		rec.Amount = e.Amount
		rec.TotalSupply = e.TotalSupply
	case AuthorityUpdatedEvent:
		rec.Actor = addrString(e.ChangedBy)
		rec.Authority = addrString(e.Authority)
		if e.Previous != nil {
			rec.From = addrString(*e.Previous)
		}
	}

	return rec
}

func addrString(a Address) *string {
	s := a.String()
	return &s
}
