package domain

// MintAuthorityPolicy selects who may mint on a newly created ledger.
type MintAuthorityPolicy string

const (
	// PolicyOwner restricts minting to the creator.
	PolicyOwner MintAuthorityPolicy = "OWNER"
	// PolicyAnyone leaves minting unrestricted.
	PolicyAnyone MintAuthorityPolicy = "ANYONE"
	// PolicySpecific restricts minting to an explicitly named identity.
	PolicySpecific MintAuthorityPolicy = "SPECIFIC"
)

// String returns the string representation of the policy.
func (p MintAuthorityPolicy) String() string {
	return string(p)
}

// IsValid checks if the policy is a valid value.
func (p MintAuthorityPolicy) IsValid() bool {
	return p == PolicyOwner || p == PolicyAnyone || p == PolicySpecific
}
