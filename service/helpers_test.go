package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletbridge/adapters/events"
	"github.com/layer-3/walletbridge/adapters/nonce"
	"github.com/layer-3/walletbridge/adapters/siwe"
	"github.com/layer-3/walletbridge/adapters/store"
	"github.com/layer-3/walletbridge/adapters/tokenizer"
	"github.com/layer-3/walletbridge/adapters/wallet"
	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNonceSecret = []byte("service-test-nonce-secret-32-by!")

// recordingStore counts every call so tests can assert on side effects
type recordingStore struct {
	ports.Store

	mu    sync.Mutex
	calls map[string]int
}

func newRecordingStore(inner ports.Store) *recordingStore {
	return &recordingStore{Store: inner, calls: make(map[string]int)}
}

func (s *recordingStore) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *recordingStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *recordingStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *recordingStore) FindLinkByAddress(ctx context.Context, address string) (*core.WalletLink, error) {
	s.record("FindLinkByAddress")
	return s.Store.FindLinkByAddress(ctx, address)
}

func (s *recordingStore) CreateAccountAndLink(ctx context.Context, account *core.Account) error {
	s.record("CreateAccountAndLink")
	return s.Store.CreateAccountAndLink(ctx, account)
}

func (s *recordingStore) GetAccount(ctx context.Context, accountID string) (*core.Account, error) {
	s.record("GetAccount")
	return s.Store.GetAccount(ctx, accountID)
}

func (s *recordingStore) SetCredential(ctx context.Context, accountID, credentialHash string) error {
	s.record("SetCredential")
	return s.Store.SetCredential(ctx, accountID, credentialHash)
}

type stack struct {
	store    *recordingStore
	nonces   ports.NonceAuthority
	bridge   *BridgeService
	sessions *SessionService
	resolver *AccountResolver
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zerolog.Nop()

	nonces, err := nonce.NewHMACAuthority(testNonceSecret)
	require.NoError(t, err)

	st := newRecordingStore(store.NewMemoryStore())
	verifier := NewMessageVerifier(siwe.NewVerifier(siwe.Config{
		ExpectedDomain: "app.example.com",
		MaxLifetime:    time.Hour,
	}), logger)
	resolver := NewAccountResolver(st, events.NopPublisher{}, logger)
	rotator := NewCredentialRotator(st, bcrypt.MinCost)

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return &stack{
		store:    st,
		nonces:   nonces,
		bridge:   NewBridgeService(nonces, verifier, resolver, rotator, logger),
		sessions: NewSessionService(tokenizer.NewJWTTokenizer(signKey), st, events.NopPublisher{}, 5*time.Minute, time.Hour, logger),
		resolver: resolver,
	}
}

func newTestSigner(t *testing.T) *wallet.LocalSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet.NewLocalSigner(key, "app.example.com", "https://app.example.com", 480)
}

// signInRequest runs the client half of the protocol against the stack
func (s *stack) signInRequest(t *testing.T, signer *wallet.LocalSigner) core.SignInRequest {
	t.Helper()
	grant, err := s.bridge.IssueNonce()
	require.NoError(t, err)
	return signedRequest(t, signer, grant, grant.Nonce, time.Now().Add(10*time.Minute))
}

func signedRequest(t *testing.T, signer *wallet.LocalSigner, grant core.NonceGrant, embedNonce string, expiration time.Time) core.SignInRequest {
	t.Helper()
	payload, err := signer.Sign(context.Background(), core.SignRequest{
		Nonce:      embedNonce,
		Statement:  "Authenticate (test).",
		NotBefore:  time.Now().Add(-time.Minute),
		Expiration: expiration,
	})
	require.NoError(t, err)

	return core.SignInRequest{
		Nonce:            grant.Nonce,
		SignedNonce:      grant.SignedNonce,
		FinalPayloadJSON: payload,
	}
}
