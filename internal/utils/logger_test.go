package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"vr-datastreamer/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")
	logger, err := NewLogger(&config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     path,
		MaxSize:    1,
		MaxBackups: 1,
	})
	require.NoError(t, err)

	logger.Info("Recording started", zap.String("file", "trial.csv"))
	require.NoError(t, CloseLogger(logger))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"message":"Recording started"`)
	assert.Contains(t, string(content), `"file":"trial.csv"`)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stdout"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestLogAPIRequestLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewServiceLogger(zap.New(core), "http-server")

	logger.LogAPIRequest(RequestLog{Method: "GET", Path: "/api/v1/status", Status: 200, Duration: time.Millisecond})
	logger.LogAPIRequest(RequestLog{Method: "GET", Path: "/health", Status: 200, Quiet: true})
	logger.LogAPIRequest(RequestLog{Method: "GET", Path: "/live", Status: 404, Quiet: true})
	logger.LogAPIRequest(RequestLog{Method: "POST", Path: "/api/v1/recording/start", Status: 500})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "http-server", entries[0].ContextMap()["service"])
}
