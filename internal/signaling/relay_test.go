package signaling

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRelay(t *testing.T) (*Relay, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := New(zerolog.Nop(), rec.send, time.Hour, time.Hour)
	return r, rec
}

type recorder struct {
	mu   sync.Mutex
	sent []map[string]interface{}
}

func (r *recorder) send(cmd map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, cmd)
}

func (r *recorder) snapshot() []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]interface{}, len(r.sent))
	copy(out, r.sent)
	return out
}

func TestBufferAndFlushOnAnswer(t *testing.T) {
	r, rec := newTestRelay(t)

	r.HandleOffer("s1", "v=0\r\n", "cast")
	r.HandleSenderCandidate("s1", "cand-1")
	r.HandleSenderCandidate("s1", "cand-2")

	sent := rec.snapshot()
	if len(sent) != 1 || sent[0]["type"] != "webrtc-offer" {
		t.Fatalf("expected only the offer to have been sent, got %+v", sent)
	}

	r.HandleDisplayMessage(map[string]interface{}{
		"type":      "webrtc-answer",
		"sessionId": "s1",
		"sdp":       "v=0\r\n...answer",
	})

	sent = rec.snapshot()
	if len(sent) != 3 {
		t.Fatalf("expected offer + 2 candidates, got %d: %+v", len(sent), sent)
	}
	if sent[1]["type"] != "ice-candidate" || sent[1]["candidate"] != "cand-1" {
		t.Fatalf("candidate 1 out of order: %+v", sent[1])
	}
	if sent[2]["type"] != "ice-candidate" || sent[2]["candidate"] != "cand-2" {
		t.Fatalf("candidate 2 out of order: %+v", sent[2])
	}
}

func TestCandidateForwardedImmediatelyAfterAnswer(t *testing.T) {
	r, rec := newTestRelay(t)
	r.HandleOffer("s1", "offer-sdp", "cast")
	r.HandleDisplayMessage(map[string]interface{}{
		"type": "webrtc-answer", "sessionId": "s1", "sdp": "answer-sdp",
	})
	r.HandleSenderCandidate("s1", "late-cand")

	sent := rec.snapshot()
	last := sent[len(sent)-1]
	if last["type"] != "ice-candidate" || last["candidate"] != "late-cand" {
		t.Fatalf("expected immediate forward of post-answer candidate, got %+v", last)
	}
}

func TestUnknownSessionCandidateDroppedSilently(t *testing.T) {
	r, rec := newTestRelay(t)
	r.HandleSenderCandidate("unknown", "cand")
	if len(rec.snapshot()) != 0 {
		t.Fatalf("expected nothing sent for unknown session")
	}
}

func TestMalformedDisplayMessageIgnored(t *testing.T) {
	r, rec := newTestRelay(t)
	r.HandleOffer("s1", "offer-sdp", "cast")
	r.HandleDisplayMessage(nil)
	r.HandleDisplayMessage(map[string]interface{}{"type": "webrtc-answer"}) // missing sessionId
	r.HandleDisplayMessage(map[string]interface{}{"type": "ice-candidate", "sessionId": "s1"})

	sent := rec.snapshot()
	if len(sent) != 1 {
		t.Fatalf("expected only the original offer to have been sent, got %+v", sent)
	}
}

func TestCloseSessionDropsBufferedCandidates(t *testing.T) {
	r, rec := newTestRelay(t)
	r.HandleOffer("s1", "offer-sdp", "cast")
	r.HandleSenderCandidate("s1", "cand-1")
	r.CloseSession("s1")

	r.HandleDisplayMessage(map[string]interface{}{
		"type": "webrtc-answer", "sessionId": "s1", "sdp": "answer-sdp",
	})

	sent := rec.snapshot()
	if len(sent) != 1 {
		t.Fatalf("expected closed session's buffered candidate to be dropped, got %+v", sent)
	}
}

func TestAnswerReadyFiresOnEveryAnswer(t *testing.T) {
	r, _ := newTestRelay(t)
	var calls int
	r.OnAnswerReady(func(sessionID, sdp string) { calls++ })

	r.HandleOffer("s1", "offer", "cast")
	r.HandleDisplayMessage(map[string]interface{}{"type": "webrtc-answer", "sessionId": "s1", "sdp": "a1"})
	r.HandleDisplayMessage(map[string]interface{}{"type": "webrtc-answer", "sessionId": "s1", "sdp": "a2"})

	if calls != 2 {
		t.Fatalf("the Relay itself fires on every answer; one-shot consumption is the orchestrator's responsibility, got %d calls", calls)
	}
}

func TestReapRemovesIdleSessions(t *testing.T) {
	r := New(zerolog.Nop(), func(map[string]interface{}) {}, time.Hour, time.Millisecond)
	r.HandleOffer("s1", "offer", "cast")
	time.Sleep(5 * time.Millisecond)
	r.reapOnce()

	r.mu.Lock()
	_, exists := r.sessions["s1"]
	r.mu.Unlock()
	if exists {
		t.Fatalf("expected idle session to be reaped")
	}
}
