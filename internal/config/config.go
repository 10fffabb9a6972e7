// Package config carries the bridge's process-level settings as an explicit
// value that cmd/castbridge hands, field by field, to each component's
// constructor. Apart from FromEnv, the only environment read in this module
// is the logging package's fallback to CASTBRIDGE_LOG_LEVEL when it is given
// no level; other components take Config fields as constructor arguments,
// so tests get fresh state instead of shared package-level mutable globals
// (see spec.md §9's FRIENDLY_NAME note).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full set of knobs the core needs to boot. CLI flag parsing
// and file-based configuration are out of scope (spec.md §1); FromEnv is a
// minimal loader just sufficient to run the core standalone.
type Config struct {
	CastPort    int    // TLS CastV2 listener port, default 8009
	DisplayPort int    // Display WebSocket port, default 8010
	FriendlyName string // advertised device name (mDNS/DIAL are external; carried here for callers that need it)
	LogLevel    string

	HeartbeatInterval   time.Duration // display WS ping interval, default 30s
	SessionReapInterval time.Duration // signaling reaper tick, default 15s
	SessionIdleTimeout  time.Duration // signaling session TTL, default 60s

	MaxFrameLength   int // CastV2 frame length ceiling, default 1 MiB; not read by internal/frame, which enforces its own frame.MaxFrameLength
	MaxDisplayPayload int64 // display WS max message size, default 64 KiB
}

// Default returns the Config a bare `castbridge` invocation boots with.
func Default() Config {
	return Config{
		CastPort:            8009,
		DisplayPort:         8010,
		FriendlyName:        "Castbridge",
		LogLevel:            "info",
		HeartbeatInterval:   30 * time.Second,
		SessionReapInterval: 15 * time.Second,
		SessionIdleTimeout:  60 * time.Second,
		MaxFrameLength:      1 << 20,
		MaxDisplayPayload:   64 << 10,
	}
}

// FromEnv overlays CASTBRIDGE_* environment variables onto Default().
func FromEnv() Config {
	c := Default()
	if v := os.Getenv("CASTBRIDGE_CAST_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CastPort = n
		}
	}
	if v := os.Getenv("CASTBRIDGE_DISPLAY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DisplayPort = n
		}
	}
	if v := os.Getenv("CASTBRIDGE_FRIENDLY_NAME"); v != "" {
		c.FriendlyName = v
	}
	if v := os.Getenv("CASTBRIDGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return c
}

// Valid reports whether the config is sufficiently populated to boot the
// orchestrator. A zero-value Config (CastPort == 0) must never be handed to
// the listener.
func (c Config) Valid() bool {
	return c.CastPort > 0 && c.DisplayPort > 0
}
