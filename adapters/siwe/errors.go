package siwe

import "errors"

// Rejection reasons. Callers outside this package should not surface them to clients.
var (
	ErrMalformedPayload  = errors.New("malformed wallet auth payload")
	ErrPayloadNotSuccess = errors.New("wallet auth payload status is not success")
	ErrNonceMismatch     = errors.New("message nonce does not match")
	ErrDomainMismatch    = errors.New("message domain does not match")
	ErrNotYetValid       = errors.New("message is not yet valid")
	ErrExpired           = errors.New("message has expired")
	ErrMissingExpiration = errors.New("message has no expiration time")
	ErrLifetimeTooLong   = errors.New("message validity window is too long")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrAddressMismatch   = errors.New("signer does not match message address")
)
