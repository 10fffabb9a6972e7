// Package display implements the WebSocket server the display client (the
// TV-side HTML player) and mirroring senders connect to. It is a
// single-writer broadcast channel to the display slot and a fan-in from
// senders: there is no per-sender addressing on outbound commands (spec.md
// §4.3).
package display

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// StatusCallback receives every message the display connection sends that
// isn't a sender-hello (treated as a PlayerStatus per spec.md §4.3, or a
// webrtc-answer / ice-candidate the signaling relay subscribes to).
type StatusCallback func(msg map[string]interface{})

// SenderCallback receives a message from a classified sender connection,
// tagged with the session id it announced in its sender-hello.
type SenderCallback func(sessionID string, msg map[string]interface{})

// Transport owns the display slot, the sender map, and the heartbeat timer.
// The display slot and sender map are guarded by the single mutex mu,
// matching spec.md §5's single-lock-per-shared-resource rule; the callback
// lists have their own mutexes.
type Transport struct {
	log zerolog.Logger

	heartbeatInterval time.Duration
	maxPayloadBytes   int64

	upgrader websocket.Upgrader

	mu      sync.Mutex
	display *clientConn
	senders map[string]*clientConn

	statusCbsMu sync.Mutex
	statusCbs   []StatusCallback
	senderCbsMu sync.Mutex
	senderCbs   []SenderCallback

	httpServer *http.Server
	stopHB     chan struct{}
	stopOnce   sync.Once
}

type clientConn struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string // set once a sender-hello is received
	isSender  bool

	mu    sync.Mutex
	alive bool
}

// New constructs a Transport. heartbeatInterval and maxPayloadBytes default
// to spec.md's 30s / 64 KiB when zero.
func New(log zerolog.Logger, heartbeatInterval time.Duration, maxPayloadBytes int64) *Transport {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = 64 << 10
	}
	return &Transport{
		log:               log,
		heartbeatInterval: heartbeatInterval,
		maxPayloadBytes:   maxPayloadBytes,
		senders:           make(map[string]*clientConn),
		stopHB:            make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// OnStatus registers a callback invoked for every non-hello message the
// display connection sends.
func (t *Transport) OnStatus(cb StatusCallback) {
	t.statusCbsMu.Lock()
	defer t.statusCbsMu.Unlock()
	t.statusCbs = append(t.statusCbs, cb)
}

// OnSenderMessage registers a callback invoked for every message a
// classified sender connection sends.
func (t *Transport) OnSenderMessage(cb SenderCallback) {
	t.senderCbsMu.Lock()
	defer t.senderCbsMu.Unlock()
	t.senderCbs = append(t.senderCbs, cb)
}

// ListenAndServe starts the WebSocket listener on addr (e.g. ":8010") and
// the heartbeat loop. It blocks until the server stops.
func (t *Transport) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleUpgrade)
	t.httpServer = &http.Server{Addr: addr, Handler: mux}

	go t.heartbeatLoop()

	t.log.Info().Str("addr", addr).Msg("display transport listening")
	err := t.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close stops the heartbeat loop and the HTTP server.
func (t *Transport) Close() error {
	t.stopOnce.Do(func() { close(t.stopHB) })
	if t.httpServer != nil {
		return t.httpServer.Close()
	}
	return nil
}

func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(t.maxPayloadBytes)

	c := &clientConn{conn: conn, send: make(chan []byte, 64), alive: true}
	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.alive = true
		c.mu.Unlock()
		return nil
	})

	t.assignDisplaySlot(c)

	go t.writePump(c)
	t.readPump(c)
}

// assignDisplaySlot provisionally takes the display slot for a newly
// connected socket, displacing and normal-closing any prior display (spec.md
// §3 Display Slot & Sender Map invariants, §8 scenario 6).
func (t *Transport) assignDisplaySlot(c *clientConn) {
	t.mu.Lock()
	prev := t.display
	t.display = c
	t.mu.Unlock()

	if prev != nil {
		t.closeClient(prev)
	}
}

func (t *Transport) readPump(c *clientConn) {
	defer func() {
		t.removeClient(c)
		close(c.send)
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		t.handleMessage(c, raw)
	}
}

func (t *Transport) writePump(c *clientConn) {
	defer func() {
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (t *Transport) handleMessage(c *clientConn, raw []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.log.Debug().Err(err).Msg("dropping malformed display/sender JSON")
		return
	}

	if typ, _ := msg["type"].(string); typ == "sender-hello" {
		sessionID, _ := msg["sessionId"].(string)
		t.reclassifyAsSender(c, sessionID)
		return
	}

	if c.isSender {
		t.senderCbsMu.Lock()
		cbs := append([]SenderCallback(nil), t.senderCbs...)
		t.senderCbsMu.Unlock()
		for _, cb := range cbs {
			cb(c.sessionID, msg)
		}
		return
	}

	t.statusCbsMu.Lock()
	cbs := append([]StatusCallback(nil), t.statusCbs...)
	t.statusCbsMu.Unlock()
	for _, cb := range cbs {
		cb(msg)
	}
}

// reclassifyAsSender moves a connection out of the display slot (if it
// holds it) and into the sender map, keyed by the session id it announced.
func (t *Transport) reclassifyAsSender(c *clientConn, sessionID string) {
	t.mu.Lock()
	if t.display == c {
		t.display = nil
	}
	c.sessionID = sessionID
	c.isSender = true
	t.senders[sessionID] = c
	t.mu.Unlock()
}

func (t *Transport) removeClient(c *clientConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.display == c {
		t.display = nil
	}
	if c.isSender {
		if cur, ok := t.senders[c.sessionID]; ok && cur == c {
			delete(t.senders, c.sessionID)
		}
	}
}

func (t *Transport) closeClient(c *clientConn) {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// SendCommand serializes cmd as JSON and writes it to the display
// connection. If no display is currently assigned and open, the command is
// dropped silently (spec.md §4.3, §7) — command loss is preferred over
// blocking or crashing.
func (t *Transport) SendCommand(cmd map[string]interface{}) {
	t.mu.Lock()
	d := t.display
	t.mu.Unlock()
	if d == nil {
		return
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		t.log.Warn().Err(err).Msg("failed to marshal outbound display command")
		return
	}
	select {
	case d.send <- data:
	default:
		t.log.Warn().Msg("display send channel full, dropping command")
	}
}

func (t *Transport) heartbeatLoop() {
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopHB:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick terminates any connection that failed to respond to the previous
// ping, then sends a fresh ping to every remaining client (spec.md §4.3).
func (t *Transport) tick() {
	t.mu.Lock()
	clients := make([]*clientConn, 0, len(t.senders)+1)
	if t.display != nil {
		clients = append(clients, t.display)
	}
	for _, s := range t.senders {
		clients = append(clients, s)
	}
	t.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		wasAlive := c.alive
		c.alive = false
		c.mu.Unlock()

		if !wasAlive {
			t.closeClient(c)
			t.removeClient(c)
			continue
		}
		_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
	}
}
