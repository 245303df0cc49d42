package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger_FieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, zerolog.DebugLevel).With(Fields{"component": "test"})

	logger.Error(context.Background(), "boom", errors.New("kv down"), Fields{"site_id": "abc"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["message"])
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "kv down", line["error"])
	assert.Equal(t, "abc", line["site_id"])
	assert.Equal(t, "test", line["component"])
}

func TestWriterLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, zerolog.WarnLevel)

	logger.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	logger.Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	lvl, ok = ParseLevel("nonsense")
	assert.False(t, ok)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}
