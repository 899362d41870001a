package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	mu sync.RWMutex

	accounts          map[string]*core.Account
	logins            map[string]string // login identifier -> account id
	links             map[string]*core.WalletLink
	invalidatedTokens map[string]time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		accounts:          make(map[string]*core.Account),
		logins:            make(map[string]string),
		links:             make(map[string]*core.WalletLink),
		invalidatedTokens: make(map[string]time.Time),
	}
}

// FindLinkByAddress returns the link for address
func (s *MemoryStore) FindLinkByAddress(ctx context.Context, address string) (*core.WalletLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[strings.ToLower(address)]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

// CreateAccountAndLink stores the account and its wallet link under one lock
func (s *MemoryStore) CreateAccountAndLink(ctx context.Context, account *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	address := strings.ToLower(account.Address)
	if _, exists := s.links[address]; exists {
		return core.ErrLinkExists
	}

	acc := *account
	s.accounts[acc.ID] = &acc
	s.logins[acc.LoginIdentifier] = acc.ID
	s.links[address] = &core.WalletLink{
		Address:   address,
		AccountID: acc.ID,
		CreatedAt: acc.CreatedAt,
	}
	return nil
}

// GetAccount returns an account by id
func (s *MemoryStore) GetAccount(ctx context.Context, accountID string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

// GetAccountByLogin returns an account by its login identifier
func (s *MemoryStore) GetAccountByLogin(ctx context.Context, loginIdentifier string) (*core.Account, error) {
	s.mu.RLock()
	id, ok := s.logins[loginIdentifier]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	return s.GetAccount(ctx, id)
}

// SetCredential overwrites the credential slot
func (s *MemoryStore) SetCredential(ctx context.Context, accountID, credentialHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return core.ErrNotFound
	}
	acc.CredentialHash = credentialHash
	acc.UpdatedAt = time.Now()
	return nil
}

// ConsumeCredential clears the slot if it still holds credentialHash
func (s *MemoryStore) ConsumeCredential(ctx context.Context, accountID, credentialHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return core.ErrNotFound
	}
	if acc.CredentialHash == "" || acc.CredentialHash != credentialHash {
		return core.ErrCredentialMismatch
	}
	acc.CredentialHash = ""
	acc.UpdatedAt = time.Now()
	return nil
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.invalidatedTokens[tokenID] = now.Add(expiry)

	// Sweep lapsed entries instead of a goroutine per token
	for id, until := range s.invalidatedTokens {
		if now.After(until) {
			delete(s.invalidatedTokens, id)
		}
	}
	return nil
}

// ConsumeToken invalidates a token only if it is still valid.
// Returns false when another caller already invalidated it.
func (s *MemoryStore) ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if until, exists := s.invalidatedTokens[tokenID]; exists && now.Before(until) {
		return false, nil
	}
	s.invalidatedTokens[tokenID] = now.Add(expiry)
	return true, nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// Check if the token invalidation has expired
	if time.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}
