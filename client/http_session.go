package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/walletbridge/core"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// refreshLeeway renews access tokens slightly before they lapse
const refreshLeeway = 10 * time.Second

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	AccountID    string `json:"account_id"`
	Address      string `json:"address"`
}

// HTTPSessionEndpoint holds the current session against a walletbridge server
// and notifies subscribers whenever it changes
type HTTPSessionEndpoint struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	now     func() time.Time

	// refreshes collapses concurrent refreshes of one refresh token
	refreshes singleflight.Group

	mu      sync.Mutex
	current *Session
	subs    map[int]func(*Session)
	nextSub int
}

// NewHTTPSessionEndpoint creates a session endpoint; a nil httpClient gets a default
func NewHTTPSessionEndpoint(baseURL string, httpClient *http.Client, logger zerolog.Logger) *HTTPSessionEndpoint {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPSessionEndpoint{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  logger,
		now:     time.Now,
		subs:    make(map[int]func(*Session)),
	}
}

// ExchangeCredential trades a login credential for a session
func (e *HTTPSessionEndpoint) ExchangeCredential(ctx context.Context, cred core.LoginCredential) (*Session, error) {
	body := map[string]string{
		"loginIdentifier": cred.LoginIdentifier,
		"loginCredential": cred.Secret,
	}
	var resp tokenResponse
	if err := postJSON(ctx, e.client, e.baseURL+"/auth/session", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSessionExchange, err)
	}

	session := e.sessionFrom(resp)
	e.set(session)
	return session, nil
}

// CurrentSession returns the held session, refreshing it first if the access token lapsed.
// Concurrent callers share one refresh. A failed refresh clears the session unless it was
// replaced in the meantime.
func (e *HTTPSessionEndpoint) CurrentSession(ctx context.Context) (*Session, error) {
	e.mu.Lock()
	current := e.current
	e.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !current.Expired(e.now().Add(refreshLeeway)) {
		return current, nil
	}

	v, _, _ := e.refreshes.Do(current.RefreshToken, func() (interface{}, error) {
		return e.refresh(ctx, current), nil
	})
	return v.(*Session), nil
}

// refresh trades stale's refresh token for a new session and returns whatever is held afterwards
func (e *HTTPSessionEndpoint) refresh(ctx context.Context, stale *Session) *Session {
	e.mu.Lock()
	held := e.current
	e.mu.Unlock()
	if held != stale {
		return held
	}

	var resp tokenResponse
	err := postJSON(ctx, e.client, e.baseURL+"/auth/refresh",
		map[string]string{"refresh_token": stale.RefreshToken}, &resp)
	if err != nil {
		e.logger.Debug().Err(err).Msg("session refresh failed")
		return e.replace(stale, nil)
	}
	return e.replace(stale, e.sessionFrom(resp))
}

// SignOut revokes the held session on the server and clears it locally
func (e *HTTPSessionEndpoint) SignOut(ctx context.Context) error {
	e.mu.Lock()
	current := e.current
	e.mu.Unlock()

	if current == nil {
		return nil
	}

	err := postJSON(ctx, e.client, e.baseURL+"/auth/logout",
		map[string]string{"refresh_token": current.RefreshToken}, nil)
	e.set(nil)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// Me fetches the account behind the held session
func (e *HTTPSessionEndpoint) Me(ctx context.Context) (map[string]any, error) {
	session, err := e.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, core.ErrInvalidToken
	}

	var out map[string]any
	if err := doJSON(ctx, e.client, http.MethodGet, e.baseURL+"/api/me", session.AccessToken, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OnSessionChange registers fn for every session change; the returned func unsubscribes
func (e *HTTPSessionEndpoint) OnSessionChange(fn func(*Session)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

func (e *HTTPSessionEndpoint) set(session *Session) {
	e.mu.Lock()
	subs := e.storeLocked(session)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(session)
	}
}

// replace stores next only while stale is still held and returns the held session
func (e *HTTPSessionEndpoint) replace(stale, next *Session) *Session {
	e.mu.Lock()
	if e.current != stale {
		held := e.current
		e.mu.Unlock()
		return held
	}
	subs := e.storeLocked(next)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// storeLocked swaps the held session and returns the subscribers to notify
func (e *HTTPSessionEndpoint) storeLocked(session *Session) []func(*Session) {
	if e.current == nil && session == nil {
		return nil
	}
	e.current = session
	subs := make([]func(*Session), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (e *HTTPSessionEndpoint) sessionFrom(resp tokenResponse) *Session {
	return &Session{
		AccountID:    resp.AccountID,
		Address:      resp.Address,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    e.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
}
