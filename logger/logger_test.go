package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Named("detector").Info("frame decoded", zap.Int("candidates", 3))
	S().Warnw("frame rejected", "format", "Softmax")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "detector", entries[0].LoggerName)
	assert.Equal(t, int64(3), entries[0].ContextMap()["candidates"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Same(t, zap.L(), Log())
}

func TestInitLevels(t *testing.T) {
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	require.NoError(t, InitDevelopment("debug"))
	assert.True(t, Log().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, InitProduction("warn"))
	assert.False(t, Log().Core().Enabled(zapcore.InfoLevel))

	assert.Error(t, InitProduction("chatty"))
}
