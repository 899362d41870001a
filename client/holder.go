package client

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrHolderStarted    = errors.New("session holder already started")
	ErrHolderNotStarted = errors.New("session holder not started")
	ErrHolderClosed     = errors.New("session holder closed")
)

// State is the authentication state of a SessionHolder
type State int

const (
	StateUninitialized State = iota
	StateAuthenticating
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a SessionHolder.
// Identity is set only in StateAuthenticated.
type Snapshot struct {
	State    State
	Identity *Session
}

// SessionAuthenticator runs a full sign-in
type SessionAuthenticator interface {
	Authenticate(ctx context.Context) (*Session, error)
}

// SessionHolder tracks the current identity. It adopts an existing session
// or signs in, and follows session changes until closed.
type SessionHolder struct {
	auth     SessionAuthenticator
	sessions SessionEndpoint
	logger   zerolog.Logger

	mu          sync.Mutex
	snapshot    Snapshot
	started     bool
	closed      bool
	subs        map[int]func(Snapshot)
	nextSub     int
	unsubscribe func()
	runCtx      context.Context

	closeOnce sync.Once
}

// NewSessionHolder creates a holder in StateUninitialized
func NewSessionHolder(auth SessionAuthenticator, sessions SessionEndpoint, logger zerolog.Logger) *SessionHolder {
	return &SessionHolder{
		auth:     auth,
		sessions: sessions,
		logger:   logger,
		subs:     make(map[int]func(Snapshot)),
	}
}

// Start subscribes to session changes, then adopts the current session or
// begins authenticating in the background
func (h *SessionHolder) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHolderClosed
	}
	if h.started {
		h.mu.Unlock()
		return ErrHolderStarted
	}
	h.started = true
	// Sign-ins outlive the caller's context; Close discards their results
	h.runCtx = context.WithoutCancel(ctx)
	h.mu.Unlock()

	unsubscribe := h.sessions.OnSessionChange(h.onSessionChange)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		unsubscribe()
		return ErrHolderClosed
	}
	h.unsubscribe = unsubscribe
	h.mu.Unlock()

	current, err := h.sessions.CurrentSession(ctx)
	if err != nil {
		h.logger.Debug().Err(err).Msg("no usable session, authenticating")
	}
	if current != nil {
		h.transition(Snapshot{State: StateAuthenticated, Identity: current})
		return nil
	}

	h.authenticate()
	return nil
}

// Reauthenticate starts a new sign-in unless one is already running
func (h *SessionHolder) Reauthenticate() error {
	h.mu.Lock()
	closed, started := h.closed, h.started
	h.mu.Unlock()

	if closed {
		return ErrHolderClosed
	}
	if !started {
		return ErrHolderNotStarted
	}
	h.authenticate()
	return nil
}

// Snapshot returns the current state
func (h *SessionHolder) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

// Subscribe registers fn for state changes; the returned func unsubscribes
func (h *SessionHolder) Subscribe(fn func(Snapshot)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Close releases the session subscription exactly once. In-flight sign-ins
// run to completion but their results are dropped.
func (h *SessionHolder) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		unsubscribe := h.unsubscribe
		h.unsubscribe = nil
		h.subs = make(map[int]func(Snapshot))
		h.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
	})
}

func (h *SessionHolder) authenticate() {
	h.mu.Lock()
	if h.closed || h.snapshot.State == StateAuthenticating {
		h.mu.Unlock()
		return
	}
	ctx := h.runCtx
	next := Snapshot{State: StateAuthenticating}
	subs := h.applyLocked(next)
	h.mu.Unlock()
	notify(subs, next)

	go func() {
		session, err := h.auth.Authenticate(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("sign-in failed")
			h.transition(Snapshot{State: StateUnauthenticated})
			return
		}
		h.transition(Snapshot{State: StateAuthenticated, Identity: session})
	}()
}

func (h *SessionHolder) onSessionChange(session *Session) {
	if session != nil {
		h.transition(Snapshot{State: StateAuthenticated, Identity: session})
		return
	}

	h.mu.Lock()
	wasAuthenticated := h.snapshot.State == StateAuthenticated
	h.mu.Unlock()
	if wasAuthenticated {
		h.transition(Snapshot{State: StateUnauthenticated})
	}
}

// transition is a no-op once the holder is closed
func (h *SessionHolder) transition(next Snapshot) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	subs := h.applyLocked(next)
	h.mu.Unlock()
	notify(subs, next)
}

func (h *SessionHolder) applyLocked(next Snapshot) []func(Snapshot) {
	h.snapshot = next
	subs := make([]func(Snapshot), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), next Snapshot) {
	for _, fn := range subs {
		fn(next)
	}
}

type holderKey struct{}

// WithSessionHolder attaches h to ctx
func WithSessionHolder(ctx context.Context, h *SessionHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// SessionHolderFromContext returns the holder attached to ctx, if any
func SessionHolderFromContext(ctx context.Context) (*SessionHolder, bool) {
	h, ok := ctx.Value(holderKey{}).(*SessionHolder)
	return h, ok && h != nil
}
