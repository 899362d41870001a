package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/walletbridge/core"
)

const defaultHTTPTimeout = 15 * time.Second

// APIError is a non-2xx response from the bridge server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// HTTPBridge calls the bridge endpoints of a walletbridge server
type HTTPBridge struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBridge creates a bridge client; a nil httpClient gets a default with a timeout
func NewHTTPBridge(baseURL string, httpClient *http.Client) *HTTPBridge {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPBridge{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// IssueNonce requests a fresh nonce pair
func (b *HTTPBridge) IssueNonce(ctx context.Context) (core.NonceGrant, error) {
	var resp struct {
		Nonce       string `json:"nonce"`
		SignedNonce string `json:"signedNonce"`
	}
	if err := postJSON(ctx, b.client, b.baseURL+"/auth/nonce", nil, &resp); err != nil {
		return core.NonceGrant{}, err
	}
	return core.NonceGrant{Nonce: resp.Nonce, SignedNonce: resp.SignedNonce}, nil
}

// SignIn submits the signed payload and returns the issued login credential
func (b *HTTPBridge) SignIn(ctx context.Context, req core.SignInRequest) (*core.LoginCredential, error) {
	body := map[string]string{
		"nonce":            req.Nonce,
		"signedNonce":      req.SignedNonce,
		"finalPayloadJson": req.FinalPayloadJSON,
	}
	var resp struct {
		LoginIdentifier string `json:"loginIdentifier"`
		LoginCredential string `json:"loginCredential"`
	}
	if err := postJSON(ctx, b.client, b.baseURL+"/auth/sign-in-with-wallet", body, &resp); err != nil {
		return nil, err
	}
	return &core.LoginCredential{LoginIdentifier: resp.LoginIdentifier, Secret: resp.LoginCredential}, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	return doJSON(ctx, client, http.MethodPost, url, "", body, out)
}

func doJSON(ctx context.Context, client *http.Client, method, url, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
