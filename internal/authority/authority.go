// Package authority resolves a mint-authority policy into the concrete
// identity stored on a ledger.
package authority

import (
	"errors"

	"token-forge/internal/domain"
)

var (
	// ErrAuthorityRequired is returned when the SPECIFIC policy is used
	// without a specific authority address.
	ErrAuthorityRequired = errors.New("specific mint authority required")

	// ErrInvalidPolicy is returned for a policy outside the closed set.
	// Unreachable when callers validate the enum first.
	ErrInvalidPolicy = errors.New("invalid mint authority policy")
)

// Resolve maps (policy, creator, specific) to the authority stored on a
// new ledger. A nil result means anyone may mint.
func Resolve(policy domain.MintAuthorityPolicy, creator, specific domain.Address) (*domain.Address, error) {
	switch policy {
	case domain.PolicyOwner:
		a := creator
		return &a, nil
	case domain.PolicyAnyone:
		return nil, nil
	case domain.PolicySpecific:
		if specific.IsZero() {
			return nil, ErrAuthorityRequired
		}
		a := specific
		return &a, nil
	default:
		return nil, ErrInvalidPolicy
	}
}
