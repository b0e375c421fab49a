package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", Debug},
		{"DEBUG", Debug},
		{"info", Info},
		{"warn", Warning},
		{"warning", Warning},
		{"error", Error},
		{"critical", Critical},
		{"", Info},
		{"verbose", Info},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.input))
		})
	}
}

func TestLogger_Enabled(t *testing.T) {
	logger := NewLogger("test", Warning)

	assert.False(t, logger.Enabled(Debug))
	assert.False(t, logger.Enabled(Info))
	assert.True(t, logger.Enabled(Warning))
	assert.True(t, logger.Enabled(Error))

	logger.SetLogLevel(Debug)
	assert.True(t, logger.Enabled(Debug))
}

func TestFormatMessage(t *testing.T) {
	t.Run("key value pairs", func(t *testing.T) {
		got := formatMessage("INFO", "request completed", "id", "abc", "cost", 12)
		assert.Equal(t, "[INFO] request completed id=abc cost=12", got)
	})

	t.Run("dangling key", func(t *testing.T) {
		got := formatMessage("WARN", "odd args", "model")
		assert.Equal(t, "[WARN] odd args model=<missing>", got)
	})
}
