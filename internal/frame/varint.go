package frame

import (
	"errors"

	"github.com/n0remac/castv2-bridge/internal/bridgeerr"
)

var errTruncated = errors.New("truncated field")
var errOversized = errors.New("declared frame length exceeds maximum")

func sizeVarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func readVarint(data []byte) (uint64, int, bool) {
	var v uint64
	var shift uint
	for i, b := range data {
		if i > 9 {
			return 0, 0, false
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1, true
		}
		shift += 7
	}
	return 0, 0, false
}

func sizeVarintField(tag int, v uint64) int {
	return sizeVarint(uint64(tag)) + sizeVarint(v)
}

func appendVarintField(buf []byte, tag int, v uint64) []byte {
	buf = appendVarint(buf, uint64(tag))
	return appendVarint(buf, v)
}

func sizeStringField(tag int, s string) int {
	return sizeVarint(uint64(tag)) + sizeVarint(uint64(len(s))) + len(s)
}

func appendStringField(buf []byte, tag int, s string) []byte {
	buf = appendVarint(buf, uint64(tag))
	buf = appendVarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func sizeBytesField(tag int, b []byte) int {
	return sizeVarint(uint64(tag)) + sizeVarint(uint64(len(b))) + len(b)
}

func appendBytesField(buf []byte, tag int, b []byte) []byte {
	buf = appendVarint(buf, uint64(tag))
	buf = appendVarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readString(data []byte) (string, int, error) {
	l, n, ok := readVarint(data)
	if !ok {
		return "", 0, bridgeerr.NewFrameError("read_string.length", errTruncated)
	}
	end := n + int(l)
	if end > len(data) || int(l) < 0 {
		return "", 0, bridgeerr.NewFrameError("read_string.body", errTruncated)
	}
	return string(data[n:end]), end, nil
}

func readBytes(data []byte) ([]byte, int, error) {
	l, n, ok := readVarint(data)
	if !ok {
		return nil, 0, bridgeerr.NewFrameError("read_bytes.length", errTruncated)
	}
	end := n + int(l)
	if end > len(data) || int(l) < 0 {
		return nil, 0, bridgeerr.NewFrameError("read_bytes.body", errTruncated)
	}
	out := make([]byte, l)
	copy(out, data[n:end])
	return out, end, nil
}

func skipField(data []byte, wireType uint64) (int, error) {
	switch wireType {
	case 0: // varint
		_, n, ok := readVarint(data)
		if !ok {
			return 0, bridgeerr.NewFrameError("skip_field.varint", errTruncated)
		}
		return n, nil
	case 2: // length-delimited
		l, n, ok := readVarint(data)
		if !ok {
			return 0, bridgeerr.NewFrameError("skip_field.length", errTruncated)
		}
		end := n + int(l)
		if end > len(data) || int(l) < 0 {
			return 0, bridgeerr.NewFrameError("skip_field.body", errTruncated)
		}
		return end, nil
	default:
		return 0, bridgeerr.NewFrameError("skip_field.wire_type", errTruncated)
	}
}
