package ports

import (
	"context"

	"github.com/layer-3/walletbridge/core"
)

// NonceAuthority issues nonces and verifies them without per-nonce state
type NonceAuthority interface {
	Issue() (core.NonceGrant, error)
	Verify(nonce, signedNonce string) bool
}

// WalletVerifier checks a signed wallet auth payload against the expected
// nonce and returns the address that signed it
type WalletVerifier interface {
	Verify(ctx context.Context, payloadJSON string, expectedNonce string) (address string, err error)
}
