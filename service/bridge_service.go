package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
	"github.com/rs/zerolog"
)

// Stage names the progress of one sign-in attempt
type Stage string

const (
	StageReceived         Stage = "received"
	StageNonceVerified    Stage = "nonce_verified"
	StageMessageVerified  Stage = "message_verified"
	StageAccountResolved  Stage = "account_resolved"
	StageCredentialIssued Stage = "credential_issued"
	StageResponded        Stage = "responded"
)

// BridgeService turns a signed wallet message into a login credential
type BridgeService struct {
	nonces   ports.NonceAuthority
	verifier *MessageVerifier
	resolver *AccountResolver
	rotator  *CredentialRotator
	metrics  ports.MetricsRecorder
	logger   zerolog.Logger
}

// NewBridgeService creates the sign-in orchestrator
func NewBridgeService(
	nonces ports.NonceAuthority,
	verifier *MessageVerifier,
	resolver *AccountResolver,
	rotator *CredentialRotator,
	logger zerolog.Logger,
) *BridgeService {
	return &BridgeService{
		nonces:   nonces,
		verifier: verifier,
		resolver: resolver,
		rotator:  rotator,
		metrics:  ports.NopRecorder{},
		logger:   logger,
	}
}

// WithMetrics reports sign-in outcomes to m
func (s *BridgeService) WithMetrics(m ports.MetricsRecorder) *BridgeService {
	s.metrics = m
	return s
}

// IssueNonce returns a fresh nonce and its MAC
func (s *BridgeService) IssueNonce() (core.NonceGrant, error) {
	grant, err := s.nonces.Issue()
	if err != nil {
		return core.NonceGrant{}, fmt.Errorf("failed to issue nonce: %w", err)
	}
	return grant, nil
}

// SignIn verifies the nonce and the signed message, then resolves the account
// and rotates its credential. Nothing is written unless both checks pass.
func (s *BridgeService) SignIn(ctx context.Context, req core.SignInRequest) (*core.LoginCredential, error) {
	log := s.logger.With().Str("attempt", uuid.NewString()).Logger()
	log.Debug().Str("stage", string(StageReceived)).Msg("sign-in")

	if !s.nonces.Verify(req.Nonce, req.SignedNonce) {
		log.Warn().Msg("invalid signed nonce")
		s.metrics.SignIn(ports.OutcomeInvalidNonce)
		return nil, core.ErrInvalidNonceSignature
	}
	log.Debug().Str("stage", string(StageNonceVerified)).Msg("sign-in")

	address, err := s.verifier.Verify(log.WithContext(ctx), req.FinalPayloadJSON, req.Nonce)
	if err != nil {
		s.metrics.SignIn(ports.OutcomeInvalidMessage)
		return nil, err
	}
	log = log.With().Str("address", address).Logger()
	log.Debug().Str("stage", string(StageMessageVerified)).Msg("sign-in")

	resolution, err := s.resolver.Resolve(ctx, address)
	if err != nil {
		log.Error().Err(err).Msg("account resolution failed")
		s.metrics.SignIn(ports.OutcomeProvisioningFailed)
		return nil, err
	}
	log.Debug().
		Str("stage", string(StageAccountResolved)).
		Str("account_id", resolution.Account.ID).
		Bool("created", resolution.Created).
		Msg("sign-in")
	if resolution.Created {
		s.metrics.AccountCreated()
	}

	credential, err := s.rotator.Rotate(ctx, resolution.Account)
	if err != nil {
		log.Error().Err(err).Msg("credential rotation failed")
		s.metrics.SignIn(ports.OutcomeProvisioningFailed)
		return nil, err
	}
	log.Debug().Str("stage", string(StageCredentialIssued)).Msg("sign-in")

	s.metrics.SignIn(ports.OutcomeSuccess)
	log.Info().Str("stage", string(StageResponded)).Str("account_id", resolution.Account.ID).Msg("wallet sign-in succeeded")
	return credential, nil
}
