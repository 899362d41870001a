package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestWatermillPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	linked, err := pubSub.Subscribe(ctx, TopicAccountLinked)
	require.NoError(t, err)
	logouts, err := pubSub.Subscribe(ctx, TopicLogout)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)

	require.NoError(t, pub.PublishAccountLinked(ctx, "account-1", "0xabc"))
	var linkedEvent AccountLinkedEvent
	require.NoError(t, json.Unmarshal(receiveOne(t, linked).Payload, &linkedEvent))
	assert.Equal(t, "account-1", linkedEvent.AccountID)
	assert.Equal(t, "0xabc", linkedEvent.Address)

	require.NoError(t, pub.PublishLogout(ctx, "account-1", "jti-1"))
	msg := receiveOne(t, logouts)
	assert.Equal(t, "jti-1", msg.UUID)
	var logoutEvent LogoutEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &logoutEvent))
	assert.Equal(t, "jti-1", logoutEvent.TokenID)
}
