package domain

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLen is the byte length of an identity address.
const AddressLen = 32

// Address identifies a balance holder, spender, or mint authority.
// The zero value is the null identity; it is also the "from" of creation
// and mint transfers.
type Address [AddressLen]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// ErrInvalidAddress is returned when a string does not decode to a
// 32-byte base58 address.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress decodes a base58 (Bitcoin alphabet) address string.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressLen {
		return Address{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAddress, len(raw), AddressLen)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// String returns the base58 string form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether a is the null identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// OnCurve reports whether the address bytes decode as a valid ed25519
// curve point, i.e. whether the address can be a signing identity.
func (a Address) OnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
