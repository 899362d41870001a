package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
	"golang.org/x/crypto/bcrypt"
)

const credentialBytes = 32

// CredentialRotator replaces an account's login credential with a fresh secret
type CredentialRotator struct {
	store ports.AccountStore
	cost  int
}

// NewCredentialRotator creates a rotator hashing secrets with the given bcrypt cost
func NewCredentialRotator(store ports.AccountStore, cost int) *CredentialRotator {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialRotator{store: store, cost: cost}
}

// Rotate issues a new secret for account, invalidating any previous one
func (r *CredentialRotator) Rotate(ctx context.Context, account *core.Account) (*core.LoginCredential, error) {
	buf := make([]byte, credentialBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate credential: %w", err)
	}
	secret := hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), r.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	if err := r.store.SetCredential(ctx, account.ID, string(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAccountProvisioning, err)
	}

	return &core.LoginCredential{
		LoginIdentifier: account.LoginIdentifier,
		Secret:          secret,
	}, nil
}
