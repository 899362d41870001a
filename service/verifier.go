package service

import (
	"context"

	"github.com/layer-3/walletbridge/core"
	"github.com/layer-3/walletbridge/ports"
	"github.com/rs/zerolog"
)

// MessageVerifier checks a signed wallet message against the issued nonce.
// All rejection reasons collapse into core.ErrInvalidOrExpiredMessage.
type MessageVerifier struct {
	wallet ports.WalletVerifier
	logger zerolog.Logger
}

// NewMessageVerifier creates a message verifier over the wallet verification capability
func NewMessageVerifier(wallet ports.WalletVerifier, logger zerolog.Logger) *MessageVerifier {
	return &MessageVerifier{wallet: wallet, logger: logger}
}

// Verify returns the canonical signer address.
// Rejections are logged on the logger carried by ctx, if any.
func (v *MessageVerifier) Verify(ctx context.Context, payloadJSON, expectedNonce string) (string, error) {
	log := v.loggerFor(ctx)

	address, err := v.wallet.Verify(ctx, payloadJSON, expectedNonce)
	if err != nil {
		log.Warn().Err(err).Msg("wallet message rejected")
		return "", core.ErrInvalidOrExpiredMessage
	}

	canonical, err := core.CanonicalAddress(address)
	if err != nil {
		log.Warn().Err(err).Msg("wallet verifier returned an unusable address")
		return "", core.ErrInvalidOrExpiredMessage
	}
	return canonical, nil
}

func (v *MessageVerifier) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &v.logger
}
