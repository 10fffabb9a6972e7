// Package orchestrator wires the CastV2 session layer, the signaling relay,
// and the display transport together. It is the only place in the bridge
// that holds references to all three (spec.md §4.7) and owns the two
// per-session callback maps: a one-shot answer map, consumed exactly once
// per session, and a persistent candidate map that lives for the session's
// whole lifetime.
package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/n0remac/castv2-bridge/internal/castv2"
	"github.com/n0remac/castv2-bridge/internal/display"
	"github.com/n0remac/castv2-bridge/internal/signaling"
)

// Orchestrator is constructed once at startup and shared by every CastV2
// session the listener accepts.
type Orchestrator struct {
	log     zerolog.Logger
	display *display.Transport
	relay   *signaling.Relay

	mu           sync.Mutex
	answerFns    map[string]func(sdp string, seqNum int64)
	candidateFns map[string]func(candidate interface{}, seqNum int64)
	seqNums      map[string]int64
}

// New constructs an Orchestrator and subscribes it to the relay and
// display callback streams. It does not itself start any listener.
func New(log zerolog.Logger, disp *display.Transport, relay *signaling.Relay) *Orchestrator {
	o := &Orchestrator{
		log:          log,
		display:      disp,
		relay:        relay,
		answerFns:    make(map[string]func(string, int64)),
		candidateFns: make(map[string]func(interface{}, int64)),
		seqNums:      make(map[string]int64),
	}
	relay.OnAnswerReady(o.handleAnswerReady)
	relay.OnDisplayCandidate(o.handleDisplayCandidate)
	disp.OnStatus(o.handleDisplayStatus)
	disp.OnSenderMessage(o.handleSenderMessage)
	return o
}

// CastCallbacks returns the castv2.Callbacks every accepted CastV2 session
// should be constructed with. The same value is reused across sessions;
// every handler is keyed by the sessionID argument it receives.
func (o *Orchestrator) CastCallbacks() castv2.Callbacks {
	return castv2.Callbacks{
		OnWebRTCOffer:    o.handleCastOffer,
		OnICECandidate:   o.handleCastCandidate,
		OnMirroringStop:  o.handleMirroringStop,
		OnSessionClosed:  o.handleSessionClosed,
		EmitMediaCommand: o.display.SendCommand,
	}
}

func (o *Orchestrator) handleCastOffer(sessionID, sdp string, seqNum int64, sendAnswer func(string, int64), sendCandidate func(interface{}, int64)) {
	o.mu.Lock()
	o.answerFns[sessionID] = sendAnswer
	o.candidateFns[sessionID] = sendCandidate
	o.seqNums[sessionID] = seqNum
	o.mu.Unlock()

	o.relay.HandleOffer(sessionID, sdp, "cast")
}

func (o *Orchestrator) handleCastCandidate(sessionID string, candidate interface{}) {
	o.relay.HandleSenderCandidate(sessionID, candidate)
}

// handleMirroringStop fires when a CastV2 sender tears down remoting
// explicitly with a remoting STOP. It notifies the display and
// drops all per-session bookkeeping.
func (o *Orchestrator) handleMirroringStop(sessionID string) {
	o.display.SendCommand(map[string]interface{}{
		"type":      "mirror-stop",
		"sessionId": sessionID,
	})
	o.relay.CloseSession(sessionID)
	o.forget(sessionID)
}

// handleSessionClosed fires when the underlying TCP connection goes away
// for any reason (explicit STOP or otherwise); it's the backstop that
// guarantees a dead sender never leaves a live signaling session or
// dangling callback entries behind.
func (o *Orchestrator) handleSessionClosed(sessionID string) {
	o.relay.CloseSession(sessionID)
	o.forget(sessionID)
}

func (o *Orchestrator) forget(sessionID string) {
	o.mu.Lock()
	delete(o.answerFns, sessionID)
	delete(o.candidateFns, sessionID)
	delete(o.seqNums, sessionID)
	o.mu.Unlock()
}

// handleAnswerReady is the relay's one-shot-per-session answer callback. It
// consumes (and deletes) the session's answer function so a second,
// spurious answer for the same session is never forwarded twice.
func (o *Orchestrator) handleAnswerReady(sessionID, sdp string) {
	o.mu.Lock()
	fn, ok := o.answerFns[sessionID]
	seq := o.seqNums[sessionID]
	if ok {
		delete(o.answerFns, sessionID)
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	fn(sdp, seq)
}

// handleDisplayCandidate is the relay's persistent candidate callback: it
// fires once per display-side ICE candidate for the session's whole
// lifetime, so the candidate function is never deleted here.
func (o *Orchestrator) handleDisplayCandidate(sessionID string, candidate interface{}) {
	o.mu.Lock()
	fn, ok := o.candidateFns[sessionID]
	seq := o.seqNums[sessionID]
	o.mu.Unlock()
	if !ok {
		return
	}
	fn(candidate, seq)
}

// handleDisplayStatus forwards every non-hello display message to the
// relay, which filters for webrtc-answer / ice-candidate and ignores the
// rest (spec.md §4.4).
func (o *Orchestrator) handleDisplayStatus(msg map[string]interface{}) {
	o.relay.HandleDisplayMessage(msg)
}

// handleSenderMessage handles a "custom" (non-CastV2, direct WebSocket)
// mirroring sender's webrtc-offer / ice-candidate messages (spec.md §4.4:
// signaling sessions can originate from either a CastV2 connection or a
// raw WebSocket sender).
func (o *Orchestrator) handleSenderMessage(sessionID string, msg map[string]interface{}) {
	typ, _ := msg["type"].(string)
	switch typ {
	case "webrtc-offer":
		sdp, _ := msg["sdp"].(string)
		o.relay.HandleOffer(sessionID, sdp, "custom")
	case "ice-candidate":
		cand, ok := msg["candidate"]
		if !ok || cand == nil {
			return
		}
		o.relay.HandleSenderCandidate(sessionID, cand)
	}
}
