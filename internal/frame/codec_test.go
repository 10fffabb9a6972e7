package frame

import (
	"math/rand"
	"testing"
)

func sampleMessage(i int) *CastMessage {
	return &CastMessage{
		ProtocolVersion: CastV21_0,
		SourceID:        "sender-0",
		DestinationID:   "receiver-0",
		Namespace:       "urn:x-cast:com.google.cast.tp.heartbeat",
		PayloadType:     PayloadString,
		PayloadUTF8:     `{"type":"PING","n":` + itoa(i) + `}`,
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := sampleMessage(1)
	encoded := Encode(msg)

	d := NewStreamDecoder()
	d.Feed(encoded)
	got, ok, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatalf("expected a decoded message")
	}
	if got.SourceID != msg.SourceID || got.DestinationID != msg.DestinationID ||
		got.Namespace != msg.Namespace || got.PayloadUTF8 != msg.PayloadUTF8 ||
		got.ProtocolVersion != msg.ProtocolVersion || got.PayloadType != msg.PayloadType {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestStreamResyncArbitraryChunkBoundaries(t *testing.T) {
	const n = 25
	var all []byte
	for i := 0; i < n; i++ {
		all = append(all, Encode(sampleMessage(i))...)
	}

	rng := rand.New(rand.NewSource(42))
	d := NewStreamDecoder()
	var decoded []*CastMessage
	pos := 0
	for pos < len(all) {
		chunkLen := 1 + rng.Intn(7)
		if pos+chunkLen > len(all) {
			chunkLen = len(all) - pos
		}
		d.Feed(all[pos : pos+chunkLen])
		pos += chunkLen
		for {
			msg, ok, err := d.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if !ok {
				break
			}
			decoded = append(decoded, msg)
		}
	}

	if len(decoded) != n {
		t.Fatalf("expected %d messages, got %d", n, len(decoded))
	}
	for i, msg := range decoded {
		want := sampleMessage(i)
		if msg.PayloadUTF8 != want.PayloadUTF8 {
			t.Fatalf("message %d out of order or corrupted: got %q want %q", i, msg.PayloadUTF8, want.PayloadUTF8)
		}
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	d := NewStreamDecoder()
	oversized := make([]byte, 4)
	oversized[0] = 0x00
	oversized[1] = 0x20 // 0x00200000 = 2 MiB > 1 MiB ceiling
	d.Feed(oversized)
	_, _, err := d.Next()
	if err == nil {
		t.Fatalf("expected oversized frame error")
	}
}

func TestMalformedPayloadSkippedWithoutDesync(t *testing.T) {
	d := NewStreamDecoder()

	// A structurally-valid frame whose payload is garbage protobuf bytes
	// (an invalid varint tag that runs past the declared length).
	garbage := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	framedGarbage := make([]byte, 4+len(garbage))
	framedGarbage[3] = byte(len(garbage))
	copy(framedGarbage[4:], garbage)

	good := Encode(sampleMessage(7))

	d.Feed(framedGarbage)
	d.Feed(good)

	msg, ok, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatalf("expected the good frame to still decode after the garbage frame")
	}
	if msg.PayloadUTF8 != sampleMessage(7).PayloadUTF8 {
		t.Fatalf("stream desynced: got %+v", msg)
	}
}
