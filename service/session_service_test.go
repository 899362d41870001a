package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/layer-3/walletbridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedInCredential(t *testing.T, s *stack) (*core.LoginCredential, string) {
	t.Helper()
	signer := newTestSigner(t)
	cred, err := s.bridge.SignIn(context.Background(), s.signInRequest(t, signer))
	require.NoError(t, err)
	return cred, strings.ToLower(signer.Address().Hex())
}

func TestExchange(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cred, address := signedInCredential(t, s)

	access, refresh, session, err := s.sessions.Exchange(ctx, cred.LoginIdentifier, cred.Secret)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.Equal(t, address, session.Address)

	validated, err := s.sessions.ValidateAccessToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, session.AccountID, validated.AccountID)
	assert.Equal(t, address, validated.Address)
}

func TestExchange_SingleUse(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cred, _ := signedInCredential(t, s)

	_, _, _, err := s.sessions.Exchange(ctx, cred.LoginIdentifier, cred.Secret)
	require.NoError(t, err)

	_, _, _, err = s.sessions.Exchange(ctx, cred.LoginIdentifier, cred.Secret)
	assert.ErrorIs(t, err, core.ErrSessionExchange)
}

func TestExchange_ConcurrentOnlyOneWins(t *testing.T) {
	s := newStack(t)
	cred, _ := signedInCredential(t, s)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _, err := s.sessions.Exchange(context.Background(), cred.LoginIdentifier, cred.Secret)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestExchange_Rejections(t *testing.T) {
	s := newStack(t)
	cred, _ := signedInCredential(t, s)

	cases := map[string][2]string{
		"wrong secret":  {cred.LoginIdentifier, strings.Repeat("0", 64)},
		"unknown login": {"placeholder-nobody@example.com", cred.Secret},
		"empty secret":  {cred.LoginIdentifier, ""},
		"empty login":   {"", cred.Secret},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := s.sessions.Exchange(context.Background(), c[0], c[1])
			assert.ErrorIs(t, err, core.ErrSessionExchange)
		})
	}

	// The failed attempts leave the real credential usable
	_, _, _, err := s.sessions.Exchange(context.Background(), cred.LoginIdentifier, cred.Secret)
	assert.NoError(t, err)
}

func TestRefresh_RotatesToken(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cred, address := signedInCredential(t, s)

	_, refresh, first, err := s.sessions.Exchange(ctx, cred.LoginIdentifier, cred.Secret)
	require.NoError(t, err)

	access2, refresh2, second, err := s.sessions.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, refresh2)
	assert.Equal(t, first.AccountID, second.AccountID)
	assert.Equal(t, address, second.Address)

	_, err = s.sessions.ValidateAccessToken(ctx, access2)
	assert.NoError(t, err)

	_, _, _, err = s.sessions.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestRefresh_ConcurrentOnlyOneWins(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cred, _ := signedInCredential(t, s)

	_, refresh, _, err := s.sessions.Exchange(ctx, cred.LoginIdentifier, cred.Secret)
	require.NoError(t, err)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _, err := s.sessions.Refresh(ctx, refresh)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, core.ErrTokenInvalidated):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejected)
}

func TestLogout_RevokesAccessToken(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cred, _ := signedInCredential(t, s)

	access, refresh, _, err := s.sessions.Exchange(ctx, cred.LoginIdentifier, cred.Secret)
	require.NoError(t, err)

	require.NoError(t, s.sessions.Logout(ctx, refresh))

	_, err = s.sessions.ValidateAccessToken(ctx, access)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	_, _, _, err = s.sessions.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	s := newStack(t)
	_, err := s.sessions.ValidateAccessToken(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestRotate_HashesSecret(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	res, err := s.resolver.Resolve(ctx, resolverAddress)
	require.NoError(t, err)

	rotator := NewCredentialRotator(s.store, 99)
	cred, err := rotator.Rotate(ctx, res.Account)
	require.NoError(t, err)
	assert.Equal(t, res.Account.LoginIdentifier, cred.LoginIdentifier)

	account, err := s.store.GetAccount(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(account.CredentialHash, "$2"))
	assert.NotContains(t, account.CredentialHash, cred.Secret)
}
