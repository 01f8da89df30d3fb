package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("source", "iris").Msg("shown")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "shown", event["message"])
	assert.Equal(t, "iris", event["source"])
	assert.Contains(t, event, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "console", &buf)
	log.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestWithRun(t *testing.T) {
	var buf bytes.Buffer
	log, id := WithRun(New("info", "json", &buf))
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	log.Info().Msg("x")
	assert.Contains(t, buf.String(), `"run_id":"`+id+`"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warning ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud", zerolog.InfoLevel))
}
