package client

import (
	"context"
	"sync"

	"github.com/layer-3/walletbridge/core"
)

type fakeBridge struct {
	mu        sync.Mutex
	grant     core.NonceGrant
	cred      *core.LoginCredential
	nonceErr  error
	signInErr error
	signIns   []core.SignInRequest
}

func (b *fakeBridge) IssueNonce(ctx context.Context) (core.NonceGrant, error) {
	return b.grant, b.nonceErr
}

func (b *fakeBridge) SignIn(ctx context.Context, req core.SignInRequest) (*core.LoginCredential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signIns = append(b.signIns, req)
	if b.signInErr != nil {
		return nil, b.signInErr
	}
	return b.cred, nil
}

type fakeSigner struct {
	mu      sync.Mutex
	payload string
	err     error
	reqs    []core.SignRequest
}

func (s *fakeSigner) Sign(ctx context.Context, req core.SignRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return s.payload, s.err
}

type fakeEndpoint struct {
	mu           sync.Mutex
	current      *Session
	issued       *Session
	exchangeErr  error
	exchanges    []core.LoginCredential
	subs         map[int]func(*Session)
	nextSub      int
	unsubscribed int
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{subs: make(map[int]func(*Session))}
}

func (e *fakeEndpoint) ExchangeCredential(ctx context.Context, cred core.LoginCredential) (*Session, error) {
	e.mu.Lock()
	e.exchanges = append(e.exchanges, cred)
	if e.exchangeErr != nil {
		e.mu.Unlock()
		return nil, e.exchangeErr
	}
	session := e.issued
	e.mu.Unlock()

	e.emit(session)
	return session, nil
}

func (e *fakeEndpoint) CurrentSession(ctx context.Context) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, nil
}

func (e *fakeEndpoint) OnSessionChange(fn func(*Session)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
		e.unsubscribed++
	}
}

func (e *fakeEndpoint) emit(session *Session) {
	e.mu.Lock()
	e.current = session
	subs := make([]func(*Session), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(session)
	}
}

func (e *fakeEndpoint) subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// gatedAuthenticator blocks each Authenticate call until released
type gatedAuthenticator struct {
	release chan struct{}
	session *Session
	err     error

	mu    sync.Mutex
	calls int
}

func newGatedAuthenticator(session *Session, err error) *gatedAuthenticator {
	return &gatedAuthenticator{release: make(chan struct{}), session: session, err: err}
}

func (a *gatedAuthenticator) Authenticate(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	<-a.release
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, a.err
}

func (a *gatedAuthenticator) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
