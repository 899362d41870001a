package client

import (
	"context"
	"errors"
	"time"

	"github.com/layer-3/walletbridge/core"
)

// ErrAuthenticationFailed is the only failure Authenticate reports
var ErrAuthenticationFailed = errors.New("authentication failed")

// Session is the client's view of an established backend session
type Session struct {
	AccountID    string    `json:"account_id"`
	Address      string    `json:"address"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its lifetime at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// BridgeAPI is the server half of the wallet sign-in
type BridgeAPI interface {
	IssueNonce(ctx context.Context) (core.NonceGrant, error)
	SignIn(ctx context.Context, req core.SignInRequest) (*core.LoginCredential, error)
}

// WalletSigner produces a signed wallet auth payload, or an error if the user declines
type WalletSigner interface {
	Sign(ctx context.Context, req core.SignRequest) (string, error)
}

// SessionEndpoint owns the backend session
type SessionEndpoint interface {
	ExchangeCredential(ctx context.Context, cred core.LoginCredential) (*Session, error)
	// CurrentSession returns nil without error when no session is held
	CurrentSession(ctx context.Context) (*Session, error)
	OnSessionChange(fn func(*Session)) (unsubscribe func())
}
