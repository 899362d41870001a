package core

import "time"

// NonceGrant is a freshly issued nonce together with its server MAC
type NonceGrant struct {
	Nonce       string // Random value the wallet embeds in the signed message
	SignedNonce string // MAC over Nonce, keyed by the server secret
}

// SignInRequest carries everything the client returns after signing
type SignInRequest struct {
	Nonce            string
	SignedNonce      string
	FinalPayloadJSON string // Serialized wallet auth payload
}

// LoginCredential is a single-use secret exchanged for a session
type LoginCredential struct {
	LoginIdentifier string
	Secret          string
}

// Session represents an authenticated account session
type Session struct {
	ID            string    // Unique session identifier
	AccountID     string    // Account the session belongs to
	Address       string    // Canonical wallet address of the account
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// SignRequest is what the client asks a wallet to sign
type SignRequest struct {
	Nonce      string
	Statement  string
	NotBefore  time.Time
	Expiration time.Time
}
