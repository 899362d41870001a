package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/service"
	"github.com/rs/zerolog"
)

// Context keys set by AuthMiddleware
const (
	ContextAccountID = "accountID"
	ContextAddress   = "address"
)

// AuthHandlers contains HTTP handlers for the bridge and session endpoints
type AuthHandlers struct {
	bridge   *service.BridgeService
	sessions *service.SessionService
	logger   zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(bridge *service.BridgeService, sessions *service.SessionService, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		bridge:   bridge,
		sessions: sessions,
		logger:   logger,
	}
}

type nonceResponse struct {
	Nonce       string `json:"nonce"`
	SignedNonce string `json:"signedNonce"`
}

type signInRequest struct {
	Nonce            string `json:"nonce" binding:"required"`
	SignedNonce      string `json:"signedNonce" binding:"required"`
	FinalPayloadJSON string `json:"finalPayloadJson" binding:"required"`
}

type signInResponse struct {
	LoginIdentifier string `json:"loginIdentifier"`
	LoginCredential string `json:"loginCredential"`
}

type sessionRequest struct {
	LoginIdentifier string `json:"loginIdentifier" binding:"required"`
	LoginCredential string `json:"loginCredential" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Nonce issues a fresh nonce and its MAC
func (h *AuthHandlers) Nonce(c *gin.Context) {
	grant, err := h.bridge.IssueNonce()
	if err != nil {
		h.logger.Error().Err(err).Msg("nonce issuance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce"})
		return
	}

	c.JSON(http.StatusOK, nonceResponse{Nonce: grant.Nonce, SignedNonce: grant.SignedNonce})
}

// SignInWithWallet exchanges a signed wallet message for a login credential
func (h *AuthHandlers) SignInWithWallet(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cred, err := h.bridge.SignIn(c.Request.Context(), core.SignInRequest{
		Nonce:            req.Nonce,
		SignedNonce:      req.SignedNonce,
		FinalPayloadJSON: req.FinalPayloadJSON,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidNonceSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrInvalidNonceSignature.Error()})
		case errors.Is(err, core.ErrInvalidOrExpiredMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrInvalidOrExpiredMessage.Error()})
		case errors.Is(err, core.ErrAccountProvisioning):
			c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrAccountProvisioning.Error()})
		default:
			h.logger.Error().Err(err).Msg("sign-in failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, signInResponse{
		LoginIdentifier: cred.LoginIdentifier,
		LoginCredential: cred.Secret,
	})
}

// Session exchanges a login credential for access and refresh tokens
func (h *AuthHandlers) Session(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accessToken, refreshToken, session, err := h.sessions.Exchange(c.Request.Context(), req.LoginIdentifier, req.LoginCredential)
	if err != nil {
		if errors.Is(err, core.ErrSessionExchange) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrSessionExchange.Error()})
			return
		}
		h.logger.Error().Err(err).Msg("session exchange failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.tokenResponse(c, accessToken, refreshToken, session)
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accessToken, refreshToken, session, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token expired"})
		case errors.Is(err, core.ErrTokenInvalidated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token has been invalidated"})
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid refresh token"})
		default:
			h.logger.Error().Err(err).Msg("token refresh failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh tokens"})
		}
		return
	}

	h.tokenResponse(c, accessToken, refreshToken, session)
}

// Logout invalidates the session behind a refresh token
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.sessions.Logout(c.Request.Context(), req.RefreshToken)
	switch {
	case err == nil, errors.Is(err, core.ErrTokenExpired):
		// An expired refresh token is already unusable
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	case errors.Is(err, core.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid refresh token"})
	default:
		h.logger.Error().Err(err).Msg("logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to logout"})
	}
}

// Me returns the account behind the bearer token
func (h *AuthHandlers) Me(c *gin.Context) {
	accountID := c.GetString(ContextAccountID)
	if accountID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account not found in context"})
		return
	}

	account, err := h.sessions.Account(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("account lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":       account.ID,
		"login_identifier": account.LoginIdentifier,
		"internal_uid":     account.InternalUID,
		"address":          account.Address,
		"created_at":       account.CreatedAt,
	})
}

// Authorize confirms the bearer token is valid; the middleware did the work
func (h *AuthHandlers) Authorize(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"account_id": c.GetString(ContextAccountID),
		"address":    c.GetString(ContextAddress),
	})
}

func (h *AuthHandlers) tokenResponse(c *gin.Context, accessToken, refreshToken string, session *core.Session) {
	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.sessions.AccessTTL().Seconds()),
		"account_id":    session.AccountID,
		"address":       session.Address,
	})
}
