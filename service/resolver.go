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
)

// placeholderDomain hosts the synthetic login identifiers of wallet-only accounts
const placeholderDomain = "example.com"

// AccountResolver maps wallet addresses to accounts, creating them on first login
type AccountResolver struct {
	store    ports.AccountStore
	eventPub ports.EventPublisher
	logger   zerolog.Logger
}

// NewAccountResolver creates a resolver
func NewAccountResolver(store ports.AccountStore, eventPub ports.EventPublisher, logger zerolog.Logger) *AccountResolver {
	return &AccountResolver{store: store, eventPub: eventPub, logger: logger}
}

// Resolve returns the account linked to address, creating account and link if needed
func (r *AccountResolver) Resolve(ctx context.Context, address string) (*core.Resolution, error) {
	canonical, err := core.CanonicalAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAccountProvisioning, err)
	}

	account, err := r.lookup(ctx, canonical)
	if err == nil {
		return &core.Resolution{Account: account}, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	account = newWalletAccount(canonical)
	err = r.store.CreateAccountAndLink(ctx, account)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrLinkExists):
		// Lost a race with a concurrent first login, the winner's link is authoritative
		r.logger.Debug().Str("address", canonical).Msg("wallet link created concurrently, re-reading")
		existing, err := r.lookup(ctx, canonical)
		if err != nil {
			return nil, err
		}
		return &core.Resolution{Account: existing}, nil
	default:
		return nil, fmt.Errorf("%w: %v", core.ErrAccountProvisioning, err)
	}

	r.logger.Info().Str("address", canonical).Str("account_id", account.ID).Msg("created wallet account")
	if err := r.eventPub.PublishAccountLinked(ctx, account.ID, canonical); err != nil {
		r.logger.Warn().Err(err).Msg("failed to publish account linked event")
	}

	return &core.Resolution{Account: account, Created: true}, nil
}

// lookup returns core.ErrNotFound only when no link exists
func (r *AccountResolver) lookup(ctx context.Context, address string) (*core.Account, error) {
	link, err := r.store.FindLinkByAddress(ctx, address)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAccountProvisioning, err)
	}

	account, err := r.store.GetAccount(ctx, link.AccountID)
	if err != nil {
		// A link without its account must never be treated as "not linked"
		return nil, fmt.Errorf("%w: link for %s points at unreadable account %s: %v",
			core.ErrAccountProvisioning, address, link.AccountID, err)
	}
	return account, nil
}

func newWalletAccount(address string) *core.Account {
	uid := uuid.NewString()
	now := time.Now().UTC()
	return &core.Account{
		ID:              uuid.NewString(),
		LoginIdentifier: fmt.Sprintf("placeholder-%s@%s", uid, placeholderDomain),
		InternalUID:     uid,
		Address:         address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
