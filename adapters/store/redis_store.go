package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
	"github.com/redis/go-redis/v9"
)

const timeLayout = time.RFC3339Nano

// createAccountScript inserts the account hash, the login index and the
// wallet link in one atomic step. Returns 0 if the link already exists.
var createAccountScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[2],
	"id", ARGV[1],
	"login", ARGV[2],
	"uid", ARGV[3],
	"address", ARGV[4],
	"credential", "",
	"created_at", ARGV[5],
	"updated_at", ARGV[5])
redis.call("SET", KEYS[3], ARGV[1])
redis.call("HSET", KEYS[1], "account_id", ARGV[1], "created_at", ARGV[5])
return 1
`)

// consumeCredentialScript clears the credential only if it matches ARGV[1]
var consumeCredentialScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
local current = redis.call("HGET", KEYS[1], "credential")
if current == false or current == "" or current ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[1], "credential", "", "updated_at", ARGV[2])
return 1
`)

// setCredentialScript overwrites the credential of an existing account
var setCredentialScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "credential", ARGV[1], "updated_at", ARGV[2])
return 1
`)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{
		client: client,
		prefix: "walletbridge:",
	}
}

func (s *RedisStore) linkKey(address string) string {
	return s.prefix + "link:" + strings.ToLower(address)
}

func (s *RedisStore) accountKey(id string) string {
	return s.prefix + "account:" + id
}

func (s *RedisStore) loginKey(login string) string {
	return s.prefix + "login:" + login
}

// FindLinkByAddress returns the link for address
func (s *RedisStore) FindLinkByAddress(ctx context.Context, address string) (*core.WalletLink, error) {
	vals, err := s.client.HGetAll(ctx, s.linkKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet link: %w", err)
	}
	if len(vals) == 0 {
		return nil, core.ErrNotFound
	}

	createdAt, err := time.Parse(timeLayout, vals["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet link created_at: %w", err)
	}
	return &core.WalletLink{
		Address:   strings.ToLower(address),
		AccountID: vals["account_id"],
		CreatedAt: createdAt,
	}, nil
}

// CreateAccountAndLink stores the account and its link atomically
func (s *RedisStore) CreateAccountAndLink(ctx context.Context, account *core.Account) error {
	keys := []string{
		s.linkKey(account.Address),
		s.accountKey(account.ID),
		s.loginKey(account.LoginIdentifier),
	}
	created, err := createAccountScript.Run(ctx, s.client, keys,
		account.ID,
		account.LoginIdentifier,
		account.InternalUID,
		strings.ToLower(account.Address),
		account.CreatedAt.UTC().Format(timeLayout),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if created == 0 {
		return core.ErrLinkExists
	}
	return nil
}

// GetAccount returns an account by id
func (s *RedisStore) GetAccount(ctx context.Context, accountID string) (*core.Account, error) {
	vals, err := s.client.HGetAll(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if len(vals) == 0 {
		return nil, core.ErrNotFound
	}

	createdAt, err := time.Parse(timeLayout, vals["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse account created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeLayout, vals["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse account updated_at: %w", err)
	}
	return &core.Account{
		ID:              vals["id"],
		LoginIdentifier: vals["login"],
		InternalUID:     vals["uid"],
		Address:         vals["address"],
		CredentialHash:  vals["credential"],
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// GetAccountByLogin returns an account by its login identifier
func (s *RedisStore) GetAccountByLogin(ctx context.Context, loginIdentifier string) (*core.Account, error) {
	id, err := s.client.Get(ctx, s.loginKey(loginIdentifier)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read login index: %w", err)
	}
	return s.GetAccount(ctx, id)
}

// SetCredential overwrites the credential slot
func (s *RedisStore) SetCredential(ctx context.Context, accountID, credentialHash string) error {
	ok, err := setCredentialScript.Run(ctx, s.client, []string{s.accountKey(accountID)},
		credentialHash, time.Now().UTC().Format(timeLayout)).Int()
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	if ok == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ConsumeCredential clears the slot if it still holds credentialHash
func (s *RedisStore) ConsumeCredential(ctx context.Context, accountID, credentialHash string) error {
	res, err := consumeCredentialScript.Run(ctx, s.client, []string{s.accountKey(accountID)},
		credentialHash, time.Now().UTC().Format(timeLayout)).Int()
	if err != nil {
		return fmt.Errorf("failed to consume credential: %w", err)
	}
	switch res {
	case -1:
		return core.ErrNotFound
	case 0:
		return core.ErrCredentialMismatch
	}
	return nil
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + "invalidated:" + tokenID

	// Set key with expiration
	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// ConsumeToken invalidates a token only if it is still valid.
// Returns false when another caller already invalidated it.
func (s *RedisStore) ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	key := s.prefix + "invalidated:" + tokenID

	ok, err := s.client.SetNX(ctx, key, "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	return ok, nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + "invalidated:" + tokenID

	// Check if key exists
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}
