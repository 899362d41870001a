package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", false)

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	componentLogger := Component(logger, "bridge")
	componentLogger.Warn().Str("stage", "received").Msg("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "bridge", entry["component"])
	assert.Equal(t, "received", entry["stage"])
}

func TestNewWithWriter_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "chatty", false)

	logger.Debug().Msg("dropped")
	logger.Info().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestWatermillAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillAdapter(NewWithWriter(&buf, "debug", false)).
		With(watermill.LogFields{"topic": "walletbridge.logout"})

	adapter.Trace("dropped", nil)
	adapter.Error("publish failed", errors.New("broken pipe"), watermill.LogFields{"attempt": 2})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "publish failed", entry["message"])
	assert.Equal(t, "broken pipe", entry["error"])
	assert.Equal(t, "walletbridge.logout", entry["topic"])
	assert.EqualValues(t, 2, entry["attempt"])
}
