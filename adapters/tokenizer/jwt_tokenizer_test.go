package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/layer-3/walletbridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenizer(t *testing.T) *JWTTokenizer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewJWTTokenizer(key).(*JWTTokenizer)
}

func testSession(now time.Time) *core.Session {
	return &core.Session{
		ID:            "session-1",
		AccountID:     "account-1",
		Address:       "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23",
		IssuedAt:      now,
		AccessExpiry:  now.Add(5 * time.Minute),
		RefreshExpiry: now.Add(time.Hour),
		RefreshID:     "refresh-1",
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	tok := newTestTokenizer(t)
	session := testSession(time.Now().Truncate(time.Second))

	raw, err := tok.SessionToAccessToken(session)
	require.NoError(t, err)

	got, err := tok.AccessTokenToSession(raw)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.AccountID, got.AccountID)
	assert.Equal(t, session.Address, got.Address)
	assert.Equal(t, session.RefreshID, got.RefreshID)
	assert.True(t, session.AccessExpiry.Equal(got.AccessExpiry))
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	tok := newTestTokenizer(t)
	session := testSession(time.Now().Truncate(time.Second))

	raw, err := tok.SessionToRefreshToken(session)
	require.NoError(t, err)

	got, err := tok.RefreshTokenToSession(raw)
	require.NoError(t, err)
	assert.Equal(t, session.AccountID, got.AccountID)
	assert.Equal(t, session.Address, got.Address)
	assert.Equal(t, session.RefreshID, got.RefreshID)
}

func TestTokens_AudienceSeparation(t *testing.T) {
	tok := newTestTokenizer(t)
	session := testSession(time.Now())

	access, err := tok.SessionToAccessToken(session)
	require.NoError(t, err)
	refresh, err := tok.SessionToRefreshToken(session)
	require.NoError(t, err)

	_, err = tok.RefreshTokenToSession(access)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	_, err = tok.AccessTokenToSession(refresh)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestAccessToken_Expired(t *testing.T) {
	tok := newTestTokenizer(t)
	session := testSession(time.Now().Add(-time.Hour))

	raw, err := tok.SessionToAccessToken(session)
	require.NoError(t, err)

	_, err = tok.AccessTokenToSession(raw)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAccessToken_OtherKey(t *testing.T) {
	issuer := newTestTokenizer(t)
	verifier := newTestTokenizer(t)

	raw, err := issuer.SessionToAccessToken(testSession(time.Now()))
	require.NoError(t, err)

	_, err = verifier.AccessTokenToSession(raw)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = verifier.AccessTokenToSession("garbage")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
