package frame

import (
	"encoding/binary"

	"github.com/n0remac/castv2-bridge/internal/bridgeerr"
)

const lengthPrefixSize = 4

// Encode serializes msg and prepends the 4-byte big-endian length, returning
// a single contiguous buffer sized exactly 4+len(payload) in one allocation.
func Encode(msg *CastMessage) []byte {
	payload := Marshal(msg)
	buf := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[lengthPrefixSize:], payload)
	return buf
}

// StreamDecoder reassembles CastMessages from a byte stream arriving in
// arbitrary chunks. It is not safe for concurrent use; each CastV2
// connection owns exactly one decoder on its read goroutine.
//
// The rolling buffer retains only the unread tail: each Feed appends the
// new chunk, and every successful frame extraction advances a read offset
// that is compacted away once it grows past half the buffer, so long-lived
// connections don't accumulate unbounded slack.
type StreamDecoder struct {
	buf    []byte
	offset int
}

// NewStreamDecoder returns an empty decoder ready to receive chunks.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

// Feed appends a newly-read chunk to the decoder's buffer.
func (d *StreamDecoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Next extracts and decodes the next complete frame from the buffered
// bytes, if any. It returns (msg, true, nil) when a frame was available,
// (nil, false, nil) when more data must be fed before a frame is complete,
// and (nil, false, err) when the declared frame length exceeds
// MaxFrameLength — callers MUST treat a non-nil error as fatal for the
// connection (spec.md §4.1, §7).
//
// Malformed protobuf within a structurally valid frame is NOT an error
// here: the frame's byte range is already known from its length prefix, so
// the codec consumes and discards it, then continues — the framing layer
// never desyncs on a content-layer decode failure (spec.md §4.1).
func (d *StreamDecoder) Next() (*CastMessage, bool, error) {
	for {
		unread := d.buf[d.offset:]
		if len(unread) < lengthPrefixSize {
			d.compact()
			return nil, false, nil
		}
		declared := binary.BigEndian.Uint32(unread[:lengthPrefixSize])
		if declared > MaxFrameLength {
			return nil, false, bridgeerr.NewFrameError("decode.oversized_frame", errOversized)
		}
		frameEnd := lengthPrefixSize + int(declared)
		if len(unread) < frameEnd {
			d.compact()
			return nil, false, nil
		}
		payload := unread[lengthPrefixSize:frameEnd]
		d.offset += frameEnd

		msg, err := Unmarshal(payload)
		if err != nil {
			// Skip this frame silently and keep scanning for the next one.
			continue
		}
		return msg, true, nil
	}
}

// compact drops already-consumed bytes once they account for more than half
// the buffer, so Feed doesn't grow the slice unbounded on a long session.
func (d *StreamDecoder) compact() {
	if d.offset == 0 {
		return
	}
	if d.offset*2 < len(d.buf) {
		return
	}
	remaining := len(d.buf) - d.offset
	copy(d.buf, d.buf[d.offset:])
	d.buf = d.buf[:remaining]
	d.offset = 0
}
