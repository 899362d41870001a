package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishAccountLinked(ctx context.Context, accountID string, address string) error
	PublishLogout(ctx context.Context, accountID string, tokenID string) error
}
