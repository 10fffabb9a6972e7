// Command castbridge runs the CastV2-to-WebRTC bridge: a TLS listener that
// speaks the CastV2 protocol to generic Cast senders, a WebSocket transport
// that carries commands and status to the display client, and a signaling
// relay that brokers the WebRTC offer/answer/candidate exchange between
// them.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/n0remac/castv2-bridge/internal/castv2"
	"github.com/n0remac/castv2-bridge/internal/certissuer"
	"github.com/n0remac/castv2-bridge/internal/config"
	"github.com/n0remac/castv2-bridge/internal/display"
	"github.com/n0remac/castv2-bridge/internal/logging"
	"github.com/n0remac/castv2-bridge/internal/orchestrator"
	"github.com/n0remac/castv2-bridge/internal/signaling"
)

func main() {
	cfg := config.FromEnv()
	if !cfg.Valid() {
		fmt.Fprintln(os.Stderr, "castbridge: invalid configuration (CastPort/DisplayPort must be > 0)")
		os.Exit(1)
	}

	log := logging.Init(cfg.LogLevel)
	log.Info().
		Str("friendly_name", cfg.FriendlyName).
		Int("cast_port", cfg.CastPort).
		Int("display_port", cfg.DisplayPort).
		Msg("starting castbridge")

	issuer := certissuer.NewIssuer()
	keyPEM, certPEM, err := issuer.Issue()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint CastV2 TLS certificate")
	}

	displayTransport := display.New(
		logging.WithComponent(log, "display"),
		cfg.HeartbeatInterval,
		cfg.MaxDisplayPayload,
	)

	relay := signaling.New(
		logging.WithComponent(log, "signaling"),
		displayTransport.SendCommand,
		cfg.SessionReapInterval,
		cfg.SessionIdleTimeout,
	)
	relay.Start()
	defer relay.Stop()

	orch := orchestrator.New(logging.WithComponent(log, "orchestrator"), displayTransport, relay)

	castAddr := fmt.Sprintf(":%d", cfg.CastPort)
	listener, err := castv2.NewListener(castAddr, certPEM, keyPEM, logging.WithComponent(log, "castv2"), orch.CastCallbacks)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start CastV2 TLS listener")
	}
	defer listener.Close()

	go func() {
		if err := listener.Serve(); err != nil {
			log.Error().Err(err).Msg("castv2 listener stopped")
		}
	}()

	displayAddr := fmt.Sprintf(":%d", cfg.DisplayPort)
	go func() {
		if err := displayTransport.ListenAndServe(displayAddr); err != nil {
			log.Error().Err(err).Msg("display transport stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down castbridge")

	_ = displayTransport.Close()
}
