package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"`  // ID of the refresh token
	Address   string `json:"addr"` // Wallet address of the account
}

// RefreshClaims carry the address so a refreshed session keeps it
type RefreshClaims struct {
	jwt.RegisteredClaims
	Address string `json:"addr"`
}
