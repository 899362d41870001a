package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func TestHolder_AdoptsExistingSession(t *testing.T) {
	endpoint := newFakeEndpoint()
	existing := &Session{AccountID: "acc-1", Address: "0xabc"}
	endpoint.current = existing
	auth := newGatedAuthenticator(nil, nil)

	h := NewSessionHolder(auth, endpoint, zerolog.Nop())
	assert.Equal(t, StateUninitialized, h.Snapshot().State)

	require.NoError(t, h.Start(context.Background()))
	snap := h.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Same(t, existing, snap.Identity)
	assert.Zero(t, auth.callCount())

	h.Close()
}

func TestHolder_AuthenticatesWhenNoSession(t *testing.T) {
	endpoint := newFakeEndpoint()
	session := &Session{AccountID: "acc-1", Address: "0xabc"}
	auth := newGatedAuthenticator(session, nil)

	h := NewSessionHolder(auth, endpoint, zerolog.Nop())
	var (
		mu     sync.Mutex
		states []State
	)
	h.Subscribe(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	require.NoError(t, h.Start(context.Background()))
	assert.Equal(t, StateAuthenticating, h.Snapshot().State)
	assert.Nil(t, h.Snapshot().Identity)

	close(auth.release)
	require.Eventually(t, func() bool { return h.Snapshot().State == StateAuthenticated }, waitFor, time.Millisecond)
	assert.Same(t, session, h.Snapshot().Identity)

	mu.Lock()
	assert.Equal(t, []State{StateAuthenticating, StateAuthenticated}, states)
	mu.Unlock()

	h.Close()
}

func TestHolder_FailureThenReauthenticate(t *testing.T) {
	endpoint := newFakeEndpoint()
	auth := newGatedAuthenticator(nil, ErrAuthenticationFailed)
	close(auth.release)

	h := NewSessionHolder(auth, endpoint, zerolog.Nop())
	assert.ErrorIs(t, h.Reauthenticate(), ErrHolderNotStarted)

	require.NoError(t, h.Start(context.Background()))
	require.Eventually(t, func() bool { return h.Snapshot().State == StateUnauthenticated }, waitFor, time.Millisecond)

	auth.mu.Lock()
	auth.session, auth.err = &Session{AccountID: "acc-2"}, nil
	auth.mu.Unlock()

	require.NoError(t, h.Reauthenticate())
	require.Eventually(t, func() bool { return h.Snapshot().State == StateAuthenticated }, waitFor, time.Millisecond)
	assert.Equal(t, "acc-2", h.Snapshot().Identity.AccountID)
	assert.Equal(t, 2, auth.callCount())

	h.Close()
}

func TestHolder_SingleFlight(t *testing.T) {
	endpoint := newFakeEndpoint()
	auth := newGatedAuthenticator(&Session{AccountID: "acc-1"}, nil)

	h := NewSessionHolder(auth, endpoint, zerolog.Nop())
	require.NoError(t, h.Start(context.Background()))
	require.Eventually(t, func() bool { return auth.callCount() == 1 }, waitFor, time.Millisecond)

	require.NoError(t, h.Reauthenticate())
	require.NoError(t, h.Reauthenticate())
	close(auth.release)

	require.Eventually(t, func() bool { return h.Snapshot().State == StateAuthenticated }, waitFor, time.Millisecond)
	assert.Equal(t, 1, auth.callCount())
	h.Close()
}

func TestHolder_FollowsSessionChanges(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.current = &Session{AccountID: "acc-1"}
	h := NewSessionHolder(newGatedAuthenticator(nil, nil), endpoint, zerolog.Nop())
	require.NoError(t, h.Start(context.Background()))

	endpoint.emit(&Session{AccountID: "acc-1", AccessToken: "rotated"})
	assert.Equal(t, "rotated", h.Snapshot().Identity.AccessToken)

	endpoint.emit(nil)
	assert.Equal(t, StateUnauthenticated, h.Snapshot().State)
	assert.Nil(t, h.Snapshot().Identity)

	h.Close()
}

func TestHolder_CloseDiscardsInFlightResult(t *testing.T) {
	endpoint := newFakeEndpoint()
	auth := newGatedAuthenticator(&Session{AccountID: "late"}, nil)

	h := NewSessionHolder(auth, endpoint, zerolog.Nop())
	notified := make(chan Snapshot, 4)
	h.Subscribe(func(s Snapshot) { notified <- s })

	require.NoError(t, h.Start(context.Background()))
	require.Eventually(t, func() bool { return auth.callCount() == 1 }, waitFor, time.Millisecond)
	<-notified // authenticating

	h.Close()
	h.Close()
	assert.Equal(t, 1, endpoint.unsubscribed)
	assert.Zero(t, endpoint.subscribers())

	close(auth.release)
	endpoint.emit(&Session{AccountID: "after-close"})

	assert.Never(t, func() bool { return len(notified) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, StateAuthenticating, h.Snapshot().State)

	assert.ErrorIs(t, h.Reauthenticate(), ErrHolderClosed)
	assert.ErrorIs(t, h.Start(context.Background()), ErrHolderClosed)
}

func TestHolder_StartTwice(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.current = &Session{}
	h := NewSessionHolder(newGatedAuthenticator(nil, nil), endpoint, zerolog.Nop())

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, errors.Is(h.Start(context.Background()), ErrHolderStarted))
	h.Close()
}

func TestSessionHolderFromContext(t *testing.T) {
	_, ok := SessionHolderFromContext(context.Background())
	assert.False(t, ok)

	h := NewSessionHolder(newGatedAuthenticator(nil, nil), newFakeEndpoint(), zerolog.Nop())
	got, ok := SessionHolderFromContext(WithSessionHolder(context.Background(), h))
	assert.True(t, ok)
	assert.Same(t, h, got)

	_, ok = SessionHolderFromContext(WithSessionHolder(context.Background(), nil))
	assert.False(t, ok)
}
