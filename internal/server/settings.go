package server

import (
	"time"

	"github.com/roach88/signbank/internal/config"
)

const (
	// DefaultMaxBodyBytes limits capture uploads to 16 MB.
	DefaultMaxBodyBytes int64 = 16 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout bounds a response, export included.
	DefaultWriteTimeout = 10 * time.Minute
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultHistoryLimit is the run count returned without ?limit=.
	DefaultHistoryLimit = 20
)

// Settings captures runtime configuration for the HTTP server.
type Settings struct {
	Addr         string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from the resolved configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		Addr:         config.Default().Listen,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil && cfg.Listen != "" {
		s.Addr = cfg.Listen
	}
	return s
}
