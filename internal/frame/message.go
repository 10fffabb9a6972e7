// Package frame implements the CastV2 wire format: a fixed, seven-field
// protobuf message (CastMessage) and the 4-byte big-endian length framing
// that precedes it on the TLS stream.
//
// The protobuf encoding here is hand-rolled rather than routed through
// google.golang.org/protobuf's generated-code runtime: CastMessage is a
// small, fixed schema known in full at compile time, and this module has no
// protoc toolchain available to generate the usual *.pb.go. The same
// judgment call shows up elsewhere in the ecosystem for fixed wire schemas
// (see the hand-rolled AMF0 codec this package's framing style is modeled
// on); see DESIGN.md for the full justification.
package frame

import (
	"github.com/n0remac/castv2-bridge/internal/bridgeerr"
)

// ProtocolVersion mirrors CastMessage.ProtocolVersion.
type ProtocolVersion int32

// CastV21_0 is the only defined protocol version.
const CastV21_0 ProtocolVersion = 0

// PayloadType mirrors CastMessage.PayloadType.
type PayloadType int32

const (
	PayloadString PayloadType = 0
	PayloadBinary PayloadType = 1
)

// MaxFrameLength is the hard ceiling on a single declared frame length.
// Declared lengths beyond this abort the connection (spec.md §4.1, §7).
const MaxFrameLength = 1 << 20 // 1 MiB

// CastMessage is the single envelope exchanged on the CastV2 stream.
type CastMessage struct {
	ProtocolVersion ProtocolVersion
	SourceID        string
	DestinationID   string
	Namespace       string
	PayloadType     PayloadType
	PayloadUTF8     string
	PayloadBinary   []byte
}

// wire field numbers / tags, precomputed (field_number<<3 | wire_type).
const (
	tagProtocolVersion = 1<<3 | 0 // varint
	tagSourceID        = 2<<3 | 2 // length-delimited
	tagDestinationID   = 3<<3 | 2
	tagNamespace       = 4<<3 | 2
	tagPayloadType     = 5<<3 | 0
	tagPayloadUTF8     = 6<<3 | 2
	tagPayloadBinary   = 7<<3 | 2
)

// Marshal serializes m into its protobuf wire representation.
func Marshal(m *CastMessage) []byte {
	size := sizeVarintField(tagProtocolVersion, uint64(m.ProtocolVersion)) +
		sizeStringField(tagSourceID, m.SourceID) +
		sizeStringField(tagDestinationID, m.DestinationID) +
		sizeStringField(tagNamespace, m.Namespace) +
		sizeVarintField(tagPayloadType, uint64(m.PayloadType))
	if m.PayloadUTF8 != "" {
		size += sizeStringField(tagPayloadUTF8, m.PayloadUTF8)
	}
	if len(m.PayloadBinary) > 0 {
		size += sizeBytesField(tagPayloadBinary, m.PayloadBinary)
	}

	buf := make([]byte, 0, size)
	buf = appendVarintField(buf, tagProtocolVersion, uint64(m.ProtocolVersion))
	buf = appendStringField(buf, tagSourceID, m.SourceID)
	buf = appendStringField(buf, tagDestinationID, m.DestinationID)
	buf = appendStringField(buf, tagNamespace, m.Namespace)
	buf = appendVarintField(buf, tagPayloadType, uint64(m.PayloadType))
	if m.PayloadUTF8 != "" {
		buf = appendStringField(buf, tagPayloadUTF8, m.PayloadUTF8)
	}
	if len(m.PayloadBinary) > 0 {
		buf = appendBytesField(buf, tagPayloadBinary, m.PayloadBinary)
	}
	return buf
}

// Unmarshal parses the protobuf wire representation of a CastMessage.
// Malformed input returns a *bridgeerr.FrameError describing the failure;
// callers that are inside a length-delimited frame already know the byte
// range consumed and should skip the frame, not desync the stream (spec.md
// §4.1, §7).
func Unmarshal(data []byte) (*CastMessage, error) {
	m := &CastMessage{}
	i := 0
	for i < len(data) {
		tag, n, ok := readVarint(data[i:])
		if !ok {
			return nil, bridgeerr.NewFrameError("unmarshal.tag", errTruncated)
		}
		i += n
		wireType := tag & 0x7
		field := tag >> 3

		switch {
		case field == tagProtocolVersion>>3 && wireType == 0:
			v, n, ok := readVarint(data[i:])
			if !ok {
				return nil, bridgeerr.NewFrameError("unmarshal.protocol_version", errTruncated)
			}
			i += n
			m.ProtocolVersion = ProtocolVersion(v)
		case field == tagSourceID>>3 && wireType == 2:
			s, n, err := readString(data[i:])
			if err != nil {
				return nil, err
			}
			i += n
			m.SourceID = s
		case field == tagDestinationID>>3 && wireType == 2:
			s, n, err := readString(data[i:])
			if err != nil {
				return nil, err
			}
			i += n
			m.DestinationID = s
		case field == tagNamespace>>3 && wireType == 2:
			s, n, err := readString(data[i:])
			if err != nil {
				return nil, err
			}
			i += n
			m.Namespace = s
		case field == tagPayloadType>>3 && wireType == 0:
			v, n, ok := readVarint(data[i:])
			if !ok {
				return nil, bridgeerr.NewFrameError("unmarshal.payload_type", errTruncated)
			}
			i += n
			m.PayloadType = PayloadType(v)
		case field == tagPayloadUTF8>>3 && wireType == 2:
			s, n, err := readString(data[i:])
			if err != nil {
				return nil, err
			}
			i += n
			m.PayloadUTF8 = s
		case field == tagPayloadBinary>>3 && wireType == 2:
			b, n, err := readBytes(data[i:])
			if err != nil {
				return nil, err
			}
			i += n
			m.PayloadBinary = b
		default:
			// Unknown field or wire-type mismatch: skip it by wire type so a
			// sender on a newer protocol revision doesn't desync us.
			n, err := skipField(data[i:], wireType)
			if err != nil {
				return nil, err
			}
			i += n
		}
	}
	return m, nil
}
