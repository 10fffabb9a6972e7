package castv2

import (
	"encoding/json"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/n0remac/castv2-bridge/internal/frame"
)

// WebRTCOfferFunc is invoked when a mirroring sender submits an SDP offer.
// sendAnswer and sendCandidate are closures the Session hands back so the
// orchestrator can reply asynchronously once the display has answered and
// while ICE candidates keep trickling in, without holding a reference to
// the Session itself.
type WebRTCOfferFunc func(sessionID, sdp string, seqNum int64, sendAnswer func(sdp string, seqNum int64), sendCandidate func(candidate interface{}, seqNum int64))

// ICECandidateFunc is invoked for every sender ICE_CANDIDATE message.
type ICECandidateFunc func(sessionID string, candidate interface{})

// MirroringStopFunc is invoked when the sender tears down remoting.
type MirroringStopFunc func(sessionID string)

// EmitMediaCommandFunc pushes an external media command (spec.md §4.5's
// third table column) toward the display, independent of the MEDIA_STATUS
// reply sent back to the CastV2 sender.
type EmitMediaCommandFunc func(cmd map[string]interface{})

// Callbacks wires a Session to the rest of the bridge (orchestrator, §4.7).
type Callbacks struct {
	OnWebRTCOffer    WebRTCOfferFunc
	OnICECandidate   ICECandidateFunc
	OnMirroringStop  MirroringStopFunc
	OnSessionClosed  func(sessionID string)
	EmitMediaCommand EmitMediaCommandFunc
}

// Session owns a single accepted CastV2 TCP/TLS connection. Its media
// state and transport id belong exclusively to the goroutine running
// Serve; writes are serialized by writeMu because the webrtc
// sendAnswer/sendCandidate closures may write from other goroutines.
// Nothing here is shared across connections.
type Session struct {
	conn net.Conn
	log  zerolog.Logger
	cb   Callbacks

	sessionID   string
	transportID string

	media  mediaState
	volume Volume

	writeMu sync.Mutex
}

// NewSession mints a session id, derives its transport id, and seeds
// default media/volume state (spec.md §3).
func NewSession(conn net.Conn, log zerolog.Logger, cb Callbacks) *Session {
	id := uuid.NewString()
	return &Session{
		conn:        conn,
		log:         log.With().Str("cast_session", id).Logger(),
		cb:          cb,
		sessionID:   id,
		transportID: deriveTransportID(id),
		media:       newMediaState(),
		volume:      defaultVolume(),
	}
}

// Serve blocks, decoding and dispatching frames until the connection
// closes or a fatal framing error occurs (spec.md §4.1, §4.6).
func (s *Session) Serve() {
	defer s.conn.Close()
	defer func() {
		if s.cb.OnSessionClosed != nil {
			s.cb.OnSessionClosed(s.sessionID)
		}
	}()

	dec := frame.NewStreamDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				msg, ok, decErr := dec.Next()
				if decErr != nil {
					s.log.Warn().Err(decErr).Msg("oversized frame, closing connection")
					return
				}
				if !ok {
					break
				}
				s.dispatch(msg)
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch routes an inbound message to its namespace handler. Requests
// are processed strictly in arrival order and every reply is written
// before the next request is read, per spec.md §5's ordering guarantee.
func (s *Session) dispatch(msg *frame.CastMessage) {
	parsed := gjson.Parse(msg.PayloadUTF8)
	typ := parsed.Get("type").String()
	requestID := int(parsed.Get("requestId").Int())

	switch msg.Namespace {
	case NamespaceConnection:
		s.handleConnection(msg, typ, requestID)
	case NamespaceHeartbeat:
		s.handleHeartbeat(msg, typ)
	case NamespaceReceiver:
		s.handleReceiver(msg, typ, requestID)
	case NamespaceMedia:
		s.handleMedia(msg, typ, requestID, parsed)
	case NamespaceWebRTC:
		s.handleWebRTC(msg, typ, parsed)
	case NamespaceRemoting:
		s.handleRemoting(msg, typ, requestID)
	default:
		s.logUnhandled("dispatch.unhandled_namespace", msg.Namespace, typ)
	}
}

// reply writes a response on the same namespace as req, with source and
// destination swapped relative to req (spec.md §4.1: "the reply's
// sourceId is the request's destinationId and vice versa").
func (s *Session) reply(req *frame.CastMessage, namespace string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal reply payload")
		return
	}
	out := &frame.CastMessage{
		ProtocolVersion: frame.CastV21_0,
		SourceID:        req.DestinationID,
		DestinationID:   req.SourceID,
		Namespace:       namespace,
		PayloadType:     frame.PayloadString,
		PayloadUTF8:     string(data),
	}
	s.write(out)
}

func (s *Session) write(m *frame.CastMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(frame.Encode(m)); err != nil {
		s.log.Debug().Err(err).Msg("write failed, connection likely closed")
	}
}
