package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_JSONFormatWritesPlainLines(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(writer(&buf, " JSON ")).With().Str("wiki", "fi").Logger()

	logger.Info().Int64("rev_id", 42).Msg("evaluated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "fi", line["wiki"])
	assert.Equal(t, "evaluated", line["message"])
}

func TestWriter_DefaultsToConsole(t *testing.T) {
	var buf bytes.Buffer

	_, ok := writer(&buf, "").(zerolog.ConsoleWriter)
	assert.True(t, ok)
}

func TestInit_SetsDebugLevel(t *testing.T) {
	t.Cleanup(func() { Init(false, FormatConsole) })

	Init(true, FormatJSON)
	assert.True(t, DebugEnabled())
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Init(false, FormatJSON)
	assert.False(t, DebugEnabled())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
