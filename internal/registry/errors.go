package registry

import "errors"

// Creation validation errors, checked in order; any failure leaves the
// registry untouched and creates no ledger.
var (
	// ErrInvalidName is returned for an empty token name.
	ErrInvalidName = errors.New("token name must not be empty")

	// ErrInvalidSymbol is returned for an empty token symbol.
	ErrInvalidSymbol = errors.New("token symbol must not be empty")

	// ErrDecimalsTooHigh is returned for a decimal precision above 18.
	ErrDecimalsTooHigh = errors.New("decimals must not exceed 18")

	// ErrInitialSupplyExceedsCap is returned when the initial supply is
	// above a nonzero max supply.
	ErrInitialSupplyExceedsCap = errors.New("initial supply exceeds max supply")

	// ErrInvalidRecipient is returned when the creating caller is the null
	// identity. Defensive; an authenticated caller is never null.
	ErrInvalidRecipient = errors.New("recipient must not be the zero address")

	// ErrUnknownLedger is returned when looking up an id the registry
	// never issued.
	ErrUnknownLedger = errors.New("unknown ledger")
)
