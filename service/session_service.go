package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// SessionService exchanges login credentials for sessions and manages them
type SessionService struct {
	tokenizer ports.Tokenizer
	accounts  ports.AccountStore
	tokens    ports.TokenStore
	eventPub  ports.EventPublisher
	metrics   ports.MetricsRecorder
	logger    zerolog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSessionService creates a new session service
func NewSessionService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	accessTTL, refreshTTL time.Duration,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		tokenizer:  tokenizer,
		accounts:   store,
		tokens:     store,
		eventPub:   eventPub,
		metrics:    ports.NopRecorder{},
		logger:     logger,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// WithMetrics reports exchange outcomes to m
func (s *SessionService) WithMetrics(m ports.MetricsRecorder) *SessionService {
	s.metrics = m
	return s
}

// AccessTTL is the lifetime of issued access tokens
func (s *SessionService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Exchange consumes a login credential and opens a session
func (s *SessionService) Exchange(ctx context.Context, loginIdentifier, secret string) (string, string, *core.Session, error) {
	access, refresh, session, err := s.exchange(ctx, loginIdentifier, secret)
	switch {
	case err == nil:
		s.metrics.SessionExchange(ports.OutcomeSuccess)
	case errors.Is(err, core.ErrSessionExchange):
		s.metrics.SessionExchange(ports.OutcomeRejected)
	default:
		s.metrics.SessionExchange(ports.OutcomeError)
	}
	return access, refresh, session, err
}

func (s *SessionService) exchange(ctx context.Context, loginIdentifier, secret string) (string, string, *core.Session, error) {
	if loginIdentifier == "" || secret == "" {
		return "", "", nil, core.ErrSessionExchange
	}

	account, err := s.accounts.GetAccountByLogin(ctx, loginIdentifier)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", "", nil, core.ErrSessionExchange
		}
		return "", "", nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.CredentialHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(account.CredentialHash), []byte(secret)) != nil {
		return "", "", nil, core.ErrSessionExchange
	}

	// Another exchange or a newer login may have replaced the slot since we read it
	if err := s.accounts.ConsumeCredential(ctx, account.ID, account.CredentialHash); err != nil {
		if errors.Is(err, core.ErrCredentialMismatch) || errors.Is(err, core.ErrNotFound) {
			return "", "", nil, core.ErrSessionExchange
		}
		return "", "", nil, fmt.Errorf("failed to consume credential: %w", err)
	}

	session := s.newSession(account.ID, account.Address)
	access, refresh, err := s.issue(session)
	if err != nil {
		return "", "", nil, err
	}

	s.logger.Info().Str("account_id", account.ID).Msg("session established")
	return access, refresh, session, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *SessionService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, *core.Session, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", nil, err
	}

	// Invalidate the old refresh token for the rest of its lifetime; only one caller may redeem it
	consumed, err := s.tokens.ConsumeToken(ctx, session.RefreshID, time.Until(session.RefreshExpiry))
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to invalidate old token: %w", err)
	}
	if !consumed {
		return "", "", nil, core.ErrTokenInvalidated
	}

	newSession := s.newSession(session.AccountID, session.Address)
	access, refresh, err := s.issue(newSession)
	if err != nil {
		return "", "", nil, err
	}
	return access, refresh, newSession, nil
}

// Logout invalidates a refresh token
func (s *SessionService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return err
	}

	if err := s.tokens.InvalidateToken(ctx, session.RefreshID, time.Until(session.RefreshExpiry)); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.AccountID, session.RefreshID); err != nil {
		// The token is already invalidated in the store, which is the critical part
		s.logger.Warn().Err(err).Msg("failed to publish logout event")
	}

	return nil
}

// ValidateAccessToken parses an access token and rejects it once its refresh token is revoked
func (s *SessionService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if session.RefreshID != "" {
		invalidated, err := s.tokens.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

func (s *SessionService) newSession(accountID, address string) *core.Session {
	now := time.Now()
	return &core.Session{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		Address:       address,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}
}

func (s *SessionService) issue(session *core.Session) (string, string, error) {
	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// Account returns the account behind a validated session
func (s *SessionService) Account(ctx context.Context, accountID string) (*core.Account, error) {
	return s.accounts.GetAccount(ctx, accountID)
}
