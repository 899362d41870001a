package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletbridge/adapters/siwe"
	"github.com/layer-3/walletbridge/core"
)

// LocalSigner signs sign-in messages with an in-process private key.
// It stands in for a wallet app in the CLI and in tests.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	domain  string
	uri     string
	chainID int64
	now     func() time.Time
}

// NewLocalSigner creates a signer for key presenting messages for domain/uri
func NewLocalSigner(key *ecdsa.PrivateKey, domain, uri string, chainID int64) *LocalSigner {
	return &LocalSigner{key: key, domain: domain, uri: uri, chainID: chainID, now: time.Now}
}

// NewLocalSignerFromHex parses a hex private key
func NewLocalSignerFromHex(hexKey, domain, uri string, chainID int64) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewLocalSigner(key, domain, uri, chainID), nil
}

// Address returns the signer's wallet address
func (s *LocalSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Sign builds an EIP-4361 message for req, signs it and returns the
// serialized wallet auth payload
func (s *LocalSigner) Sign(ctx context.Context, req core.SignRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	notBefore := req.NotBefore.UTC()
	expiration := req.Expiration.UTC()
	msg := &siwe.Message{
		Domain:         s.domain,
		Address:        s.Address(),
		Statement:      req.Statement,
		URI:            s.uri,
		Version:        "1",
		ChainID:        s.chainID,
		Nonce:          req.Nonce,
		IssuedAt:       s.now().UTC(),
		ExpirationTime: &expiration,
		NotBefore:      &notBefore,
	}
	text := msg.String()

	sig, err := SignText(s.key, text)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(siwe.Payload{
		Status:    siwe.StatusSuccess,
		Message:   text,
		Signature: sig,
		Address:   s.Address().Hex(),
		Version:   1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(payload), nil
}

// SignText produces a personal_sign signature with V in {27, 28}
func SignText(key *ecdsa.PrivateKey, text string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(text)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
