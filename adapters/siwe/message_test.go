package siwe

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMessage = `app.example.com wants you to sign in with your Ethereum account:
0x2c7536E3605D9C16a7a3D7b1898e529396a65c23

Authenticate (0d3c9c1b9e4a4c5e).

URI: https://app.example.com
Version: 1
Chain ID: 480
Nonce: 9f8e7d6c5b4a39281706f5e4d3c2b1a0
Issued At: 2025-03-01T10:00:00.000Z
Expiration Time: 2025-03-01T10:15:00.000Z
Not Before: 2025-03-01T09:55:00.000Z
Request ID: req-1
Resources:
- https://app.example.com/terms
- ipfs://bafybeiemxf5abjwjbikoz4mc3a3dla6ual3jsgpdr4cjr3oz3evfyavhwq`

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(sampleMessage)
	require.NoError(t, err)

	assert.Equal(t, "app.example.com", msg.Domain)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), msg.Address)
	assert.Equal(t, "Authenticate (0d3c9c1b9e4a4c5e).", msg.Statement)
	assert.Equal(t, "https://app.example.com", msg.URI)
	assert.Equal(t, "1", msg.Version)
	assert.Equal(t, int64(480), msg.ChainID)
	assert.Equal(t, "9f8e7d6c5b4a39281706f5e4d3c2b1a0", msg.Nonce)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), msg.IssuedAt.UTC())
	require.NotNil(t, msg.ExpirationTime)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC), msg.ExpirationTime.UTC())
	require.NotNil(t, msg.NotBefore)
	assert.Equal(t, "req-1", msg.RequestID)
	assert.Len(t, msg.Resources, 2)
}

func TestMessage_StringRoundTrip(t *testing.T) {
	msg, err := ParseMessage(sampleMessage)
	require.NoError(t, err)
	assert.Equal(t, sampleMessage, msg.String())
}

func TestParseMessage_NoStatement(t *testing.T) {
	text := `app.example.com wants you to sign in with your Ethereum account:
0x2c7536E3605D9C16a7a3D7b1898e529396a65c23

URI: https://app.example.com
Version: 1
Chain ID: 1
Nonce: abcdefgh12345678
Issued At: 2025-03-01T10:00:00Z`

	msg, err := ParseMessage(text)
	require.NoError(t, err)
	assert.Empty(t, msg.Statement)
	assert.Nil(t, msg.ExpirationTime)
	assert.Equal(t, "abcdefgh12345678", msg.Nonce)
}

func TestParseMessage_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"bad header":  "hello\n0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		"bad address": "a.com wants you to sign in with your Ethereum account:\n0x1234\n\nURI: x\nVersion: 1\nChain ID: 1\nNonce: n\nIssued At: 2025-03-01T10:00:00Z",
		"no nonce":    "a.com wants you to sign in with your Ethereum account:\n0x2c7536E3605D9C16a7a3D7b1898e529396a65c23\n\nURI: x\nVersion: 1\nChain ID: 1\nIssued At: 2025-03-01T10:00:00Z",
		"bad time":    "a.com wants you to sign in with your Ethereum account:\n0x2c7536E3605D9C16a7a3D7b1898e529396a65c23\n\nURI: x\nVersion: 1\nChain ID: 1\nNonce: n\nIssued At: yesterday",
		"bad chain":   "a.com wants you to sign in with your Ethereum account:\n0x2c7536E3605D9C16a7a3D7b1898e529396a65c23\n\nURI: x\nVersion: 1\nChain ID: one\nNonce: n\nIssued At: 2025-03-01T10:00:00Z",
		"version 2":   "a.com wants you to sign in with your Ethereum account:\n0x2c7536E3605D9C16a7a3D7b1898e529396a65c23\n\nURI: x\nVersion: 2\nChain ID: 1\nNonce: n\nIssued At: 2025-03-01T10:00:00Z",
		"junk line":   "a.com wants you to sign in with your Ethereum account:\n0x2c7536E3605D9C16a7a3D7b1898e529396a65c23\n\nURI: x\nVersion: 1\nChain ID: 1\nNonce: n\nIssued At: 2025-03-01T10:00:00Z\nFoo: bar",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage(text)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}
