package zap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/datacache"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Logger{L: zap.New(core)}

	l.Debug("d", nil)
	l.Warn("regeneration failed", datacache.Fields{"key": "user:42", "err": errors.New("db down")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Empty(t, entries[0].Context)

	warn := entries[1]
	assert.Equal(t, zapcore.WarnLevel, warn.Level)
	ctx := warn.ContextMap()
	assert.Equal(t, "user:42", ctx["key"])
	assert.Equal(t, "db down", ctx["error"])
}
