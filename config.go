package main

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	defaultPort         = 16333
	defaultMaxBodyBytes = 32 << 20 // 32 MiB
)

// Config holds everything the command line can change
type Config struct {
	Port         int
	Insecure     bool
	DryRun       bool
	MaxBodyBytes int64
	MDNS         bool
	MetricsAddr  string // Empty disables the metrics endpoint
	Verbosity    int
	Quiet        bool
}

func defaultConfig() Config {
	return Config{
		Port:         defaultPort,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

// Validate checks ranges the flag parser cannot
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 0 and 65535", c.Port)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body size %d: must be positive", c.MaxBodyBytes)
	}
	return nil
}

// LogLevel maps -q and -v to a slog level
func (c Config) LogLevel() slog.Level {
	switch {
	case c.Quiet:
		return slog.LevelWarn
	case c.Verbosity > 0:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the text logger used for diagnostics
func newLogger(w io.Writer, cfg Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     cfg.LogLevel(),
		AddSource: cfg.Verbosity > 1,
	}))
}
