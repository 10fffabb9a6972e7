// Package logging provides the bridge's structured logger: a thin wrapper
// around zerolog that resolves an initial level from an environment
// variable and hands out context-scoped child loggers instead of a bare
// global.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// envLogLevel is the environment variable consulted when no level is passed
// to Init explicitly.
const envLogLevel = "CASTBRIDGE_LOG_LEVEL"

var (
	initOnce sync.Once
	global   zerolog.Logger
)

// Init builds the process-wide base logger. Safe to call multiple times;
// only the first call takes effect. level may be empty, in which case the
// CASTBRIDGE_LOG_LEVEL environment variable (default "info") is used.
func Init(level string) zerolog.Logger {
	initOnce.Do(func() {
		lvl := resolveLevel(level)
		zerolog.SetGlobalLevel(lvl)
		global = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
	return global
}

// Logger returns the process-wide base logger, initializing it with defaults
// if Init was never called.
func Logger() zerolog.Logger {
	initOnce.Do(func() {
		zerolog.SetGlobalLevel(resolveLevel(""))
		global = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
	return global
}

func resolveLevel(level string) zerolog.Level {
	if level == "" {
		level = os.Getenv(envLogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithConn returns a child logger tagged with a CastV2 connection's remote
// address and minted session id.
func WithConn(l zerolog.Logger, sessionID, remoteAddr string) zerolog.Logger {
	return l.With().Str("session_id", sessionID).Str("remote_addr", remoteAddr).Logger()
}

// WithSignaling returns a child logger tagged with a signaling session id.
func WithSignaling(l zerolog.Logger, sessionID string) zerolog.Logger {
	return l.With().Str("signaling_session", sessionID).Logger()
}

// WithComponent tags log lines with the owning component name (e.g.
// "castv2", "display", "signaling").
func WithComponent(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
