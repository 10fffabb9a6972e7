package display

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, tr *Transport) (*httptest.Server, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", tr.handleUpgrade)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSecondDisplayConnectionDisplacesFirst(t *testing.T) {
	tr := New(zerolog.Nop(), time.Hour, 0)
	_, url := newTestServer(t, tr)

	first := dial(t, url)
	second := dial(t, url)

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	if err == nil {
		t.Fatalf("expected the displaced first display connection to be closed")
	}

	tr.mu.Lock()
	current := tr.display
	tr.mu.Unlock()
	if current == nil {
		t.Fatalf("expected the second connection to hold the display slot")
	}
	_ = second
}

func TestSenderHelloReclassifiesConnectionOutOfDisplaySlot(t *testing.T) {
	tr := New(zerolog.Nop(), time.Hour, 0)
	_, url := newTestServer(t, tr)

	var gotSessionID string
	var gotMsg map[string]interface{}
	done := make(chan struct{})
	tr.OnSenderMessage(func(sessionID string, msg map[string]interface{}) {
		gotSessionID, gotMsg = sessionID, msg
		close(done)
	})

	conn := dial(t, url)
	if err := conn.WriteJSON(map[string]interface{}{"type": "sender-hello", "sessionId": "abc"}); err != nil {
		t.Fatalf("write sender-hello: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"type": "webrtc-offer", "sdp": "v=0"}); err != nil {
		t.Fatalf("write offer: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sender callback")
	}

	if gotSessionID != "abc" {
		t.Fatalf("expected sessionId abc, got %q", gotSessionID)
	}
	if gotMsg["type"] != "webrtc-offer" {
		t.Fatalf("expected webrtc-offer forwarded, got %+v", gotMsg)
	}

	tr.mu.Lock()
	_, stillSender := tr.senders["abc"]
	isDisplay := tr.display != nil
	tr.mu.Unlock()
	if !stillSender {
		t.Fatalf("expected connection to remain classified as a sender")
	}
	if isDisplay {
		t.Fatalf("expected reclassified connection to no longer hold the display slot")
	}
}

func TestSendCommandDropsSilentlyWithNoDisplay(t *testing.T) {
	tr := New(zerolog.Nop(), time.Hour, 0)
	tr.SendCommand(map[string]interface{}{"type": "load"})
}

func TestSendCommandDeliversToDisplay(t *testing.T) {
	tr := New(zerolog.Nop(), time.Hour, 0)
	_, url := newTestServer(t, tr)
	conn := dial(t, url)

	// allow the server-side handleUpgrade goroutine to assign the slot
	time.Sleep(50 * time.Millisecond)
	tr.SendCommand(map[string]interface{}{"type": "load", "url": "http://example.com"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read command: %v", err)
	}
	if msg["type"] != "load" {
		t.Fatalf("expected load command, got %+v", msg)
	}
}
