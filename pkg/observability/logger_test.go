package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verenigingen/chapterkit/pkg/contextkeys"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Info("scopes resolved")

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "scopes resolved", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("not written")
	logger.Info("not written either")
	assert.Zero(t, buf.Len())

	logger.Warn("written")
	assert.NotZero(t, buf.Len())
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"user":    "chair@example.org",
		"chapter": "CH-NL-01",
	}).Info("board position assigned")

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "chair@example.org", entry["user"])
	assert.Equal(t, "CH-NL-01", entry["chapter"])
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(assert.AnError).Error("sync failed")

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, assert.AnError.Error(), entry["error"])

	// A nil error adds nothing.
	buf.Reset()
	logger.WithError(nil).Info("clean")
	entry = decodeLogLine(t, &buf)
	assert.NotContains(t, entry, "error")
}

func TestLoggerFormattedVariants(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Debugf("synced %d identities", 42)

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "synced 42 identities", entry["msg"])
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := contextkeys.WithRequestID(context.Background(), "req-123")
	ctx = contextkeys.WithActor(ctx, "operator@example.org")
	logger.FromContext(ctx).Info("validation started")

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "operator@example.org", entry["actor"])
}

func TestLoggerFromContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.FromContext(context.Background()).Info("plain")

	entry := decodeLogLine(t, &buf)
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "actor")
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}
