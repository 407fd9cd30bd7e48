package ledger

import "errors"

// Ledger operation errors. Every operation validates in full before
// mutating, so each of these means the operation was rejected with no
// side effects.
var (
	// ErrZeroAddress is returned when a recipient or spender is the null identity.
	ErrZeroAddress = errors.New("zero address")

	// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when a delegated transfer exceeds
	// the (owner, spender) allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrUnauthorized is returned when the caller is not the mint authority.
	ErrUnauthorized = errors.New("caller is not the mint authority")

	// ErrZeroAmount is returned when minting zero tokens.
	ErrZeroAmount = errors.New("zero amount")

	// ErrExceedsMaxSupply is returned when a mint would push total supply
	// past the cap, or past the representable range on uncapped ledgers.
	ErrExceedsMaxSupply = errors.New("mint exceeds max supply")

	// ErrInvalidAuthority is returned when reassigning the mint authority
	// to the null identity.
	ErrInvalidAuthority = errors.New("invalid mint authority")
)
