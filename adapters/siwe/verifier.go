package siwe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletbridge/ports"
)

// StatusSuccess is the status a wallet reports after signing
const StatusSuccess = "success"

// Payload is the wallet auth result the client forwards as finalPayloadJson
type Payload struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
	Version   int    `json:"version"`
}

// Config tunes message acceptance
type Config struct {
	// ExpectedDomain, when set, must equal the message domain
	ExpectedDomain string
	// MaxLifetime caps how far in the future a message may expire. Zero disables the cap.
	MaxLifetime time.Duration
}

// Verifier checks EIP-4361 messages signed with personal_sign
type Verifier struct {
	cfg Config
	now func() time.Time
}

// NewVerifier creates a wallet verifier
func NewVerifier(cfg Config) ports.WalletVerifier {
	return &Verifier{cfg: cfg, now: time.Now}
}

// NewVerifierWithClock creates a wallet verifier with a custom time source
func NewVerifierWithClock(cfg Config, now func() time.Time) ports.WalletVerifier {
	return &Verifier{cfg: cfg, now: now}
}

// Verify validates payloadJSON against expectedNonce and returns the signer address
func (v *Verifier) Verify(ctx context.Context, payloadJSON string, expectedNonce string) (string, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Status != StatusSuccess {
		return "", ErrPayloadNotSuccess
	}

	msg, err := ParseMessage(payload.Message)
	if err != nil {
		return "", err
	}

	if err := v.checkMessage(msg, expectedNonce); err != nil {
		return "", err
	}

	signer, err := RecoverSigner(payload.Message, payload.Signature)
	if err != nil {
		return "", err
	}
	if signer != msg.Address {
		return "", ErrAddressMismatch
	}
	if payload.Address != "" {
		if !common.IsHexAddress(payload.Address) || common.HexToAddress(payload.Address) != msg.Address {
			return "", ErrAddressMismatch
		}
	}

	return msg.Address.Hex(), nil
}

func (v *Verifier) checkMessage(msg *Message, expectedNonce string) error {
	if expectedNonce == "" || msg.Nonce != expectedNonce {
		return ErrNonceMismatch
	}
	if v.cfg.ExpectedDomain != "" && msg.Domain != v.cfg.ExpectedDomain {
		return ErrDomainMismatch
	}

	now := v.now()
	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return ErrNotYetValid
	}
	if msg.ExpirationTime == nil {
		return ErrMissingExpiration
	}
	if !now.Before(*msg.ExpirationTime) {
		return ErrExpired
	}
	if v.cfg.MaxLifetime > 0 && msg.ExpirationTime.Sub(now) > v.cfg.MaxLifetime {
		return ErrLifetimeTooLong
	}
	return nil
}

// RecoverSigner recovers the address that personal_sign'ed message
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", ErrInvalidSignature)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes: %w", ErrInvalidSignature)
	}

	// Wallets return V as 27/28, go-ethereum expects 0/1
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", ErrInvalidSignature)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
