package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_JSONRedactsImageFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithSink("info", false, zapcore.AddSync(&buf))

	logger.With(zap.String("image_data", "AAAA")).Info("uploaded",
		zap.String("user_id", "u1"),
		zap.String("base64", "BBBB"),
	)
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "uploaded", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, ServiceName, entry["service"])
	assert.NotContains(t, entry, "image_data")
	assert.NotContains(t, entry, "base64")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}
