package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(Config{Level: "debug", Format: "json", Output: &buf, Service: "resolver"}), "cache")
	l.Debug().Str("key", "price:abc").Msg("hit")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "resolver", entry["service"])
	assert.Equal(t, "cache", entry["component"])
	assert.Equal(t, "price:abc", entry["key"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "chatty", Output: &buf})
	l.Debug().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.Info().Msg("kept")
	assert.NotZero(t, buf.Len())
}
