package domain

// MaxDecimals is the highest allowed decimal precision.
const MaxDecimals = 18

// TokenParams are the caller-supplied inputs to ledger creation.
type TokenParams struct {
	Name          string
	Symbol        string
	Decimals      uint8
	InitialSupply uint64
	MaxSupply     uint64 // 0 = unlimited

	AuthorityPolicy MintAuthorityPolicy
	// SpecificAuthority is required iff AuthorityPolicy is SPECIFIC.
	SpecificAuthority Address
}

// TokenInfo is the immutable metadata of a created ledger.
type TokenInfo struct {
	Name      string
	Symbol    string
	Decimals  uint8
	MaxSupply uint64 // 0 = unlimited
}

// Deployment is the persisted record of one registry creation.
// Corresponds to the deployments table in PostgreSQL.
type Deployment struct {
	LedgerID      string  // PRIMARY KEY, deterministic hash
	Creator       string  // base58 creator address
	Name          string
	Symbol        string
	Decimals      uint8
	MaxSupply     uint64  // 0 = unlimited
	MintAuthority *string // base58 authority address (nil = anyone)
	CreatedAt     int64   // Unix timestamp in milliseconds
}

// SupplyPoint is one sampled supply observation for a ledger.
// Corresponds to supply_timeseries in ClickHouse.
type SupplyPoint struct {
	LedgerID    string
	TimestampMs int64
	TotalSupply uint64
	MaxSupply   uint64
	Holders     uint32 // count of nonzero balances
}
