package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"TRACE":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for level, want := range tests {
		t.Run(level, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(level))
		})
	}
}

func TestNew(t *testing.T) {
	logger, flush, err := New("debug", false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.WithField("kind", "artist").Info("merge committed")
	flush()
}
