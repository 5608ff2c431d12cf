package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGelfLevelMapping(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected int32
	}{
		{slog.LevelDebug, gelfLevelDebug},
		{slog.LevelInfo, gelfLevelInfo},
		{slog.LevelWarn, gelfLevelWarn},
		{slog.LevelError, gelfLevelError},
		{slog.LevelError + 4, gelfLevelError},
		{slog.LevelDebug - 4, gelfLevelDebug},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, gelfLevel(tt.level))
	}
}

func TestNewGelfHandler_BadAddress(t *testing.T) {
	_, err := NewGelfHandler("not-an-address", "info")
	assert.Error(t, err)
}
