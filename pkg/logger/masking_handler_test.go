package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandler_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	log.Info("connecting",
		slog.String("bot_token", "123:abc"),
		slog.String("user", "alice"),
		slog.Group("db", slog.String("password", "hunter2"), slog.String("host", "localhost")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, maskedValue, entry["bot_token"])
	assert.Equal(t, "alice", entry["user"])

	db, ok := entry["db"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, maskedValue, db["password"])
	assert.Equal(t, "localhost", db["host"])
}

func TestMaskingHandler_WithAttrsAndCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil))).With(slog.String("dsn", "postgres://secret"))

	ctx := WithCorrelationID(context.Background())
	log.InfoContext(ctx, "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, maskedValue, entry["dsn"])
	assert.Equal(t, CorrelationIDFromContext(ctx), entry["correlation_id"])
	assert.NotEmpty(t, entry["correlation_id"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, Level())

	SetLevel("ERROR")
	assert.Equal(t, slog.LevelError, Level())

	SetLevel("nonsense")
	assert.Equal(t, slog.LevelInfo, Level())
}
