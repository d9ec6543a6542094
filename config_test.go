package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 16333, cfg.Port)
	assert.False(t, cfg.Insecure)
	assert.False(t, cfg.DryRun)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"ephemeral port", func(c *Config) { c.Port = 0 }, false},
		{"max port", func(c *Config) { c.Port = 65535 }, false},
		{"negative port", func(c *Config) { c.Port = -1 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConfigLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Config{}.LogLevel())
	assert.Equal(t, slog.LevelDebug, Config{Verbosity: 2}.LogLevel())
	assert.Equal(t, slog.LevelWarn, Config{Quiet: true, Verbosity: 1}.LogLevel())
}

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Config{Quiet: true})

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
