package nonce

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
)

// MinSecretLength is the minimum accepted server secret size in bytes
const MinSecretLength = 32

// nonceBytes gives 128 bits of entropy
const nonceBytes = 16

var ErrSecretTooShort = errors.New("nonce secret must be at least 32 bytes")

// HMACAuthority issues nonces signed with HMAC-SHA256 over a server secret.
// Nothing is stored per nonce.
type HMACAuthority struct {
	secret []byte
	method *jwt.SigningMethodHMAC
}

// NewHMACAuthority creates a nonce authority keyed by secret
func NewHMACAuthority(secret []byte) (ports.NonceAuthority, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &HMACAuthority{secret: key, method: jwt.SigningMethodHS256}, nil
}

// Issue generates a random nonce and its MAC
func (a *HMACAuthority) Issue() (core.NonceGrant, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return core.NonceGrant{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	signed, err := a.Sign(nonce)
	if err != nil {
		return core.NonceGrant{}, err
	}

	return core.NonceGrant{Nonce: nonce, SignedNonce: signed}, nil
}

// Sign returns the hex encoded MAC of nonce
func (a *HMACAuthority) Sign(nonce string) (string, error) {
	sig, err := a.method.Sign(nonce, a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return hexutil.Encode(sig), nil
}

// Verify recomputes the MAC and compares in constant time
func (a *HMACAuthority) Verify(nonce, signedNonce string) bool {
	if nonce == "" || signedNonce == "" {
		return false
	}
	sig, err := hexutil.Decode(signedNonce)
	if err != nil {
		return false
	}
	return a.method.Verify(nonce, sig, a.secret) == nil
}
