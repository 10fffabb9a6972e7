package castv2

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/n0remac/castv2-bridge/internal/bridgeerr"
	"github.com/n0remac/castv2-bridge/internal/frame"
)

// logUnhandled records an unrecognized namespace/type combination as a
// CastProtocolError at debug level. spec.md §7: unknown namespace/type gets
// no reply and no escalation — this only adds diagnostic context.
func (s *Session) logUnhandled(op, namespace, typ string) {
	s.log.Debug().Err(bridgeerr.NewCastProtocolError(op, nil)).
		Str("namespace", namespace).Str("type", typ).Msg("unhandled cast message, ignoring")
}

func marshalOrNil(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type typedReply struct {
	Type      string `json:"type"`
	RequestID int    `json:"requestId"`
}

func (s *Session) handleConnection(msg *frame.CastMessage, typ string, requestID int) {
	switch typ {
	case "CONNECT":
		s.reply(msg, NamespaceConnection, typedReply{Type: "CONNECTED", RequestID: requestID})
	case "CLOSE":
		// No reply; the peer is tearing down its virtual connection. The
		// physical socket is closed by Serve's read loop once the TCP
		// connection itself goes away.
	default:
		s.logUnhandled("handle_connection.unhandled_type", NamespaceConnection, typ)
	}
}

func (s *Session) handleHeartbeat(msg *frame.CastMessage, typ string) {
	if typ == "PING" {
		s.reply(msg, NamespaceHeartbeat, map[string]string{"type": "PONG"})
	}
}

func (s *Session) handleReceiver(msg *frame.CastMessage, typ string, requestID int) {
	switch typ {
	case "GET_STATUS", "LAUNCH":
		status := buildReceiverStatus(s.sessionID, s.transportID, s.volume)
		s.reply(msg, NamespaceReceiver, receiverStatusPayload{Type: "RECEIVER_STATUS", RequestID: requestID, Status: status})
	case "STOP":
		// spec.md §4.5 only ties mirroringStop to remoting STOP; receiver
		// STOP resets media state, emits an external stop command, and
		// reports the receiver status.
		s.media = newMediaState()
		s.emitMediaCommand(map[string]interface{}{"type": "stop", "requestId": requestID})
		status := buildReceiverStatus(s.sessionID, s.transportID, s.volume)
		s.reply(msg, NamespaceReceiver, receiverStatusPayload{Type: "RECEIVER_STATUS", RequestID: requestID, Status: status})
	default:
		s.logUnhandled("handle_receiver.unhandled_type", NamespaceReceiver, typ)
	}
}

// handleMedia implements the LOAD/PLAY/PAUSE/SEEK/STOP/SET_VOLUME table of
// spec.md §4.5: those types mutate the connection-local mediaState, and
// every recognized type (GET_STATUS included, which mutates nothing) replies
// with the resulting MEDIA_STATUS. Unrecognized types get no reply.
func (s *Session) handleMedia(msg *frame.CastMessage, typ string, requestID int, body gjson.Result) {
	var external map[string]interface{}

	switch typ {
	case "GET_STATUS":
		// no mutation, no external command
	case "LOAD":
		s.media.mediaSessionID++
		s.media.playerState = PlayerPlaying
		var contentID, contentType string
		if m := body.Get("media"); m.Exists() {
			contentID = m.Get("contentId").String()
			contentType = m.Get("contentType").String()
			s.media.media = &mediaDescriptor{
				ContentID:   contentID,
				ContentType: contentType,
				StreamType:  m.Get("streamType").String(),
			}
		}
		if ct := body.Get("currentTime"); ct.Exists() {
			s.media.currentTime = ct.Float()
		} else {
			s.media.currentTime = 0
		}
		external = map[string]interface{}{
			"type": "load", "url": contentID, "contentType": contentType,
			"currentTime": s.media.currentTime, "requestId": requestID,
		}
	case "PLAY":
		s.media.playerState = PlayerPlaying
		external = map[string]interface{}{"type": "play", "requestId": requestID}
	case "PAUSE":
		s.media.playerState = PlayerPaused
		external = map[string]interface{}{"type": "pause", "requestId": requestID}
	case "SEEK":
		if ct := body.Get("currentTime"); ct.Exists() {
			s.media.currentTime = ct.Float()
		}
		external = map[string]interface{}{"type": "seek", "currentTime": s.media.currentTime, "requestId": requestID}
	case "STOP":
		s.media.playerState = PlayerIdle
		s.media.media = nil
		external = map[string]interface{}{"type": "stop", "requestId": requestID}
	case "SET_VOLUME", "VOLUME":
		if l := body.Get("volume.level"); l.Exists() {
			s.media.volume.Level = l.Float()
		}
		if m := body.Get("volume.muted"); m.Exists() {
			s.media.volume.Muted = m.Bool()
		}
		external = map[string]interface{}{"type": "volume", "volume": s.media.volume.Level, "requestId": requestID}
	default:
		s.logUnhandled("handle_media.unhandled_type", NamespaceMedia, typ)
		return
	}

	if external != nil {
		s.emitMediaCommand(external)
	}
	s.reply(msg, NamespaceMedia, buildMediaStatus(requestID, s.media))
}

func (s *Session) emitMediaCommand(cmd map[string]interface{}) {
	if s.cb.EmitMediaCommand != nil {
		s.cb.EmitMediaCommand(cmd)
	}
}

func (s *Session) handleWebRTC(msg *frame.CastMessage, typ string, body gjson.Result) {
	switch typ {
	case "OFFER":
		if s.cb.OnWebRTCOffer == nil {
			return
		}
		sdp := body.Get("offer.sdp").String()
		seqNum := body.Get("seqNum").Int()
		// The reply destination is fixed for the lifetime of this offer: the
		// sourceId the sender used to submit it, not a literal constant
		// (spec.md §4.5: sendAnswer/sendCandidate go out "on this connection
		// with swapped source/dest").
		sourceID, destinationID := msg.DestinationID, msg.SourceID
		sendAnswer := func(sdp string, seqNum int64) { s.sendAnswer(sourceID, destinationID, sdp, seqNum) }
		sendCandidate := func(candidate interface{}, seqNum int64) { s.sendCandidate(sourceID, destinationID, candidate, seqNum) }
		s.cb.OnWebRTCOffer(s.sessionID, sdp, seqNum, sendAnswer, sendCandidate)
	case "ICE_CANDIDATE":
		if s.cb.OnICECandidate == nil {
			return
		}
		cand := body.Get("candidate")
		if !cand.Exists() {
			return
		}
		s.cb.OnICECandidate(s.sessionID, cand.Value())
	default:
		s.logUnhandled("handle_webrtc.unhandled_type", NamespaceWebRTC, typ)
	}
}

func (s *Session) sendAnswer(sourceID, destinationID, sdp string, seqNum int64) {
	data := map[string]interface{}{"type": "ANSWER", "seqNum": seqNum, "answer": map[string]string{"sdp": sdp}}
	s.writeNamespaceMessage(sourceID, destinationID, NamespaceWebRTC, data)
}

func (s *Session) sendCandidate(sourceID, destinationID string, candidate interface{}, seqNum int64) {
	data := map[string]interface{}{"type": "ICE_CANDIDATE", "seqNum": seqNum, "candidate": candidate}
	s.writeNamespaceMessage(sourceID, destinationID, NamespaceWebRTC, data)
}

// writeNamespaceMessage sends an unsolicited (non-reply) message from
// sourceID toward destinationID, used for the webrtc ANSWER/ICE_CANDIDATE
// pushes that aren't direct replies to an inbound request.
func (s *Session) writeNamespaceMessage(sourceID, destinationID, namespace string, payload interface{}) {
	data, err := marshalOrNil(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal outbound message")
		return
	}
	s.write(&frame.CastMessage{
		ProtocolVersion: frame.CastV21_0,
		SourceID:        sourceID,
		DestinationID:   destinationID,
		Namespace:       namespace,
		PayloadType:     frame.PayloadString,
		PayloadUTF8:     data,
	})
}

func (s *Session) handleRemoting(msg *frame.CastMessage, typ string, requestID int) {
	switch typ {
	case "SETUP":
		s.reply(msg, NamespaceRemoting, typedReply{Type: "SETUP_OK", RequestID: requestID})
	case "START":
		s.reply(msg, NamespaceRemoting, typedReply{Type: "START_OK", RequestID: requestID})
	case "STOP":
		s.reply(msg, NamespaceRemoting, typedReply{Type: "STOP_OK", RequestID: requestID})
		if s.cb.OnMirroringStop != nil {
			s.cb.OnMirroringStop(s.sessionID)
		}
	default:
		s.logUnhandled("handle_remoting.unhandled_type", NamespaceRemoting, typ)
	}
}
