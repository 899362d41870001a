package core

import "errors"

var (
	ErrInvalidNonceSignature   = errors.New("invalid signed nonce")
	ErrInvalidOrExpiredMessage = errors.New("invalid final payload")
	ErrAccountProvisioning     = errors.New("failed to create account")
	ErrSessionExchange         = errors.New("session exchange failed")

	ErrInvalidAddress = errors.New("invalid wallet address")

	// Store level
	ErrNotFound           = errors.New("not found")
	ErrLinkExists         = errors.New("wallet link already exists")
	ErrCredentialMismatch = errors.New("credential does not match")

	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
)
