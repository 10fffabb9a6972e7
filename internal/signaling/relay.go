// Package signaling implements the half-duplex SDP/ICE broker that bridges
// CastV2 mirroring offers to the display over the display WebSocket. It
// buffers sender-side ICE candidates until the display answers, and reaps
// stale sessions (spec.md §4.4).
package signaling

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/n0remac/castv2-bridge/internal/bridgeerr"
)

// AnswerReadyFunc is invoked every time a webrtc-answer for a known session
// arrives from the display, including repeated answers for the same session.
type AnswerReadyFunc func(sessionID, sdp string)

// DisplayCandidateFunc is invoked for every ice-candidate the display sends
// back toward a given session; unlike AnswerReadyFunc this fires repeatedly
// for the session's lifetime.
type DisplayCandidateFunc func(sessionID string, candidate interface{})

// SendToDisplay is the one-way channel the relay uses to push JSON commands
// toward the display transport (webrtc-offer, ice-candidate forwards).
type SendToDisplay func(cmd map[string]interface{})

// session is the (offer, answer, candidate queue) tuple described in
// spec.md §3.
type session struct {
	id           string
	origin       string // "cast" or "custom"
	offerSDP     string
	answerSDP    string
	hasAnswer    bool
	pending      []interface{} // buffered sender ICE candidates, FIFO
	lastActivity time.Time
}

// Relay is the signaling session broker. All session-map mutation is
// serialized on a single mutex per spec.md §5 — concurrent mutation of a
// session's candidate queue from two goroutines is forbidden.
type Relay struct {
	log zerolog.Logger

	sendToDisplay SendToDisplay
	reapInterval  time.Duration
	idleTimeout   time.Duration

	mu       sync.Mutex
	sessions map[string]*session

	answerCbsMu sync.Mutex
	answerCbs   []AnswerReadyFunc
	candCbsMu   sync.Mutex
	candCbs     []DisplayCandidateFunc

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New constructs a Relay. reapInterval and idleTimeout default to spec.md's
// 15s / 60s when zero.
func New(log zerolog.Logger, sendToDisplay SendToDisplay, reapInterval, idleTimeout time.Duration) *Relay {
	if reapInterval <= 0 {
		reapInterval = 15 * time.Second
	}
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}
	return &Relay{
		log:           log,
		sendToDisplay: sendToDisplay,
		reapInterval:  reapInterval,
		idleTimeout:   idleTimeout,
		sessions:      make(map[string]*session),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the session reaper. Call once.
func (r *Relay) Start() {
	go r.reapLoop()
}

// Stop halts the reaper.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// OnAnswerReady registers an answer callback. The Relay fires it for every
// answer it handles; one-shot consumption per session is left to the
// callback's owner (the orchestrator resolves its per-session one-shot
// answer map from here).
func (r *Relay) OnAnswerReady(cb AnswerReadyFunc) {
	r.answerCbsMu.Lock()
	defer r.answerCbsMu.Unlock()
	r.answerCbs = append(r.answerCbs, cb)
}

// OnDisplayCandidate registers a persistent candidate callback, fired for
// the session's whole lifetime.
func (r *Relay) OnDisplayCandidate(cb DisplayCandidateFunc) {
	r.candCbsMu.Lock()
	defer r.candCbsMu.Unlock()
	r.candCbs = append(r.candCbs, cb)
}

// HandleOffer creates or touches the session identified by sessionID,
// stores the offer (idempotent: repeated calls overwrite it), and forwards
// a webrtc-offer to the display (spec.md §4.4).
func (r *Relay) HandleOffer(sessionID, sdp, origin string) {
	r.mu.Lock()
	s := r.getOrCreate(sessionID, origin)
	s.offerSDP = sdp
	s.lastActivity = time.Now()
	r.mu.Unlock()

	r.sendToDisplay(map[string]interface{}{
		"type":      "webrtc-offer",
		"sessionId": sessionID,
		"sdp":       sdp,
	})
}

// HandleSenderCandidate forwards the candidate immediately if the session
// already has an answer, otherwise buffers it in FIFO order. Unknown
// session ids are dropped silently (spec.md §4.4, §7).
func (r *Relay) HandleSenderCandidate(sessionID string, candidate interface{}) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		r.log.Debug().Err(bridgeerr.NewSignalingError("handle_sender_candidate.unknown_session", nil)).
			Str("signaling_session", sessionID).Msg("dropping candidate for unknown session")
		return
	}
	s.lastActivity = time.Now()
	ready := s.hasAnswer
	if !ready {
		s.pending = append(s.pending, candidate)
	}
	r.mu.Unlock()

	if ready {
		r.sendToDisplay(map[string]interface{}{
			"type":      "ice-candidate",
			"sessionId": sessionID,
			"candidate": candidate,
		})
	}
}

// HandleDisplayMessage is wired to the display transport's status callback
// stream; it filters by msg["type"] and reacts to webrtc-answer and
// ice-candidate messages, ignoring anything malformed or unrelated
// (spec.md §4.4, §7).
func (r *Relay) HandleDisplayMessage(msg map[string]interface{}) {
	if msg == nil {
		r.logMalformed("handle_display_message.nil")
		return
	}
	typ, _ := msg["type"].(string)
	sessionID, hasSession := msg["sessionId"].(string)
	if !hasSession {
		r.logMalformed("handle_display_message.missing_session_id")
		return
	}

	switch typ {
	case "webrtc-answer":
		sdp, ok := msg["sdp"].(string)
		if !ok {
			r.logMalformed("handle_display_message.webrtc_answer.missing_sdp")
			return
		}
		r.handleAnswer(sessionID, sdp)
	case "ice-candidate":
		candidate, ok := msg["candidate"]
		if !ok || candidate == nil {
			r.logMalformed("handle_display_message.ice_candidate.missing_candidate")
			return
		}
		r.handleDisplayCandidate(sessionID, candidate)
	}
}

func (r *Relay) logMalformed(op string) {
	r.log.Debug().Err(bridgeerr.NewSignalingError(op, nil)).Msg("ignoring malformed display message")
}

func (r *Relay) handleAnswer(sessionID, sdp string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	s.answerSDP = sdp
	s.hasAnswer = true
	s.lastActivity = time.Now()
	flush := s.pending
	s.pending = nil
	r.mu.Unlock()

	// Flush buffered candidates in insertion order before firing
	// answer-ready callbacks, so the display never sees a candidate arrive
	// before the offer/answer exchange it depends on has settled.
	for _, c := range flush {
		r.sendToDisplay(map[string]interface{}{
			"type":      "ice-candidate",
			"sessionId": sessionID,
			"candidate": c,
		})
	}

	r.answerCbsMu.Lock()
	cbs := append([]AnswerReadyFunc(nil), r.answerCbs...)
	r.answerCbsMu.Unlock()
	for _, cb := range cbs {
		cb(sessionID, sdp)
	}
}

func (r *Relay) handleDisplayCandidate(sessionID string, candidate interface{}) {
	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		s.lastActivity = time.Now()
	}
	r.mu.Unlock()

	r.candCbsMu.Lock()
	cbs := append([]DisplayCandidateFunc(nil), r.candCbs...)
	r.candCbsMu.Unlock()
	for _, cb := range cbs {
		cb(sessionID, candidate)
	}
}

// CloseSession removes the session; any buffered candidates are dropped
// without being re-emitted (spec.md §3, §4.4).
func (r *Relay) CloseSession(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

func (r *Relay) getOrCreate(sessionID, origin string) *session {
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &session{id: sessionID, origin: origin, lastActivity: time.Now()}
		r.sessions[sessionID] = s
	}
	return s
}

func (r *Relay) reapLoop() {
	ticker := time.NewTicker(r.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *Relay) reapOnce() {
	now := time.Now()
	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.lastActivity) > r.idleTimeout {
			delete(r.sessions, id)
			r.log.Debug().Str("signaling_session", id).Msg("reaped idle signaling session")
		}
	}
	r.mu.Unlock()
}
