package core

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Account is the backend account a wallet address resolves to
type Account struct {
	ID              string    // Opaque account identity
	LoginIdentifier string    // Placeholder login name, wallet-only users have no real contact
	InternalUID     string    // Random uid embedded in the login identifier
	Address         string    // Canonical address the account was created for
	CredentialHash  string    // bcrypt hash of the current login credential, empty when consumed
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WalletLink binds a wallet address to exactly one account
type WalletLink struct {
	Address   string // Canonical address, unique
	AccountID string
	CreatedAt time.Time
}

// Resolution is the outcome of resolving an address to an account
type Resolution struct {
	Account *Account
	Created bool // True when this call created the account and its link
}

// CanonicalAddress validates a hex wallet address and returns its
// lower-case 0x-prefixed form. Every lookup and insert uses this form.
func CanonicalAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}
