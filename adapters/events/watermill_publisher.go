package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/walletbridge/ports"
)

const (
	TopicAccountLinked = "walletbridge.account_linked"
	TopicLogout        = "walletbridge.logout"
)

// AccountLinkedEvent is published when a wallet address gets its first account
type AccountLinkedEvent struct {
	AccountID string    `json:"account_id"`
	Address   string    `json:"address"`
	LinkedAt  time.Time `json:"linked_at"`
}

// LogoutEvent represents a logout event
type LogoutEvent struct {
	AccountID string `json:"account_id"`
	TokenID   string `json:"token_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishAccountLinked publishes an account linked event
func (p *WatermillPublisher) PublishAccountLinked(ctx context.Context, accountID string, address string) error {
	return p.publish(ctx, TopicAccountLinked, watermill.NewUUID(), AccountLinkedEvent{
		AccountID: accountID,
		Address:   address,
		LinkedAt:  time.Now().UTC(),
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, accountID string, tokenID string) error {
	return p.publish(ctx, TopicLogout, tokenID, LogoutEvent{
		AccountID: accountID,
		TokenID:   tokenID,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishAccountLinked(context.Context, string, string) error { return nil }
func (NopPublisher) PublishLogout(context.Context, string, string) error        { return nil }
