package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletbridge/core"
	"github.com/rs/zerolog"
)

const (
	DefaultExpiration    = 15 * time.Minute
	DefaultNotBeforeSkew = 5 * time.Minute
)

// Window bounds the validity of each signed message relative to signing time
type Window struct {
	Expiration    time.Duration
	NotBeforeSkew time.Duration
}

// Authenticator runs the client side of the wallet sign-in: nonce, sign,
// bridge, session exchange
type Authenticator struct {
	bridge   BridgeAPI
	signer   WalletSigner
	sessions SessionEndpoint
	window   Window
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAuthenticator creates an authenticator; zero window fields take the defaults
func NewAuthenticator(bridge BridgeAPI, signer WalletSigner, sessions SessionEndpoint, window Window, logger zerolog.Logger) *Authenticator {
	if window.Expiration <= 0 {
		window.Expiration = DefaultExpiration
	}
	if window.NotBeforeSkew <= 0 {
		window.NotBeforeSkew = DefaultNotBeforeSkew
	}
	return &Authenticator{
		bridge:   bridge,
		signer:   signer,
		sessions: sessions,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate performs one full sign-in. Every failure is reported as
// ErrAuthenticationFailed; the failing stage is only logged.
func (a *Authenticator) Authenticate(ctx context.Context) (*Session, error) {
	session, stage, err := a.authenticate(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Str("stage", stage).Msg("wallet authentication failed")
		return nil, ErrAuthenticationFailed
	}
	a.logger.Info().Str("address", session.Address).Msg("wallet authentication succeeded")
	return session, nil
}

func (a *Authenticator) authenticate(ctx context.Context) (*Session, string, error) {
	grant, err := a.bridge.IssueNonce(ctx)
	if err != nil {
		return nil, "nonce", err
	}

	now := a.now()
	payload, err := a.signer.Sign(ctx, core.SignRequest{
		Nonce:      grant.Nonce,
		Statement:  statement(),
		NotBefore:  now.Add(-a.window.NotBeforeSkew),
		Expiration: now.Add(a.window.Expiration),
	})
	if err != nil {
		return nil, "sign", err
	}

	cred, err := a.bridge.SignIn(ctx, core.SignInRequest{
		Nonce:            grant.Nonce,
		SignedNonce:      grant.SignedNonce,
		FinalPayloadJSON: payload,
	})
	if err != nil {
		return nil, "bridge", err
	}

	session, err := a.sessions.ExchangeCredential(ctx, *cred)
	if err != nil {
		return nil, "session", err
	}
	if session == nil {
		return nil, "session", fmt.Errorf("session endpoint returned no session")
	}
	return session, "", nil
}

// statement differs per attempt so wallets never show the same text twice
func statement() string {
	return fmt.Sprintf("Authenticate (%s).", strings.ReplaceAll(uuid.NewString(), "-", ""))
}
