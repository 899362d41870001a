package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletbridge/core"
)

// AccountStore persists accounts, wallet links and the credential slot
type AccountStore interface {
	// FindLinkByAddress returns core.ErrNotFound when no link exists
	FindLinkByAddress(ctx context.Context, address string) (*core.WalletLink, error)

	// CreateAccountAndLink inserts the account and its link atomically.
	// Returns core.ErrLinkExists and stores nothing if the address is already linked.
	CreateAccountAndLink(ctx context.Context, account *core.Account) error

	GetAccount(ctx context.Context, accountID string) (*core.Account, error)
	GetAccountByLogin(ctx context.Context, loginIdentifier string) (*core.Account, error)

	// SetCredential overwrites the account's current credential hash
	SetCredential(ctx context.Context, accountID, credentialHash string) error

	// ConsumeCredential clears the slot only if it still holds credentialHash,
	// otherwise returns core.ErrCredentialMismatch
	ConsumeCredential(ctx context.Context, accountID, credentialHash string) error
}

// TokenStore interface for token invalidation
type TokenStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)

	// ConsumeToken invalidates tokenID unless it is already invalidated, atomically.
	// Reports whether this call did the invalidation.
	ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error)
}

// Store is implemented by every storage adapter
type Store interface {
	AccountStore
	TokenStore
}
