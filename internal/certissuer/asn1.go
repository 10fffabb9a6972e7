package certissuer

// Minimal hand-rolled DER/ASN.1 TLV helpers. CastV2 senders never validate
// the certificate chain (spec.md §4.2), so the bridge avoids pulling in
// crypto/x509.CreateCertificate's full machinery and instead emits just
// enough DER to produce a syntactically valid self-signed v3 certificate.

const (
	tagInteger      = 0x02
	tagBitString    = 0x03
	tagOctetString  = 0x04
	tagNull         = 0x05
	tagOID          = 0x06
	tagUTF8String   = 0x0C
	tagPrintable    = 0x13
	tagUTCTime      = 0x17
	tagGeneralTime  = 0x18
	tagSequence     = 0x30
	tagSet          = 0x31
	ctxConstructed0 = 0xA0
	ctxConstructed3 = 0xA3
)

// asn1Length encodes a DER length in short, 1-byte-long, or 2-byte-long
// form. Lengths of 65536 or more are rejected (spec.md §4.2) since nothing
// this issuer emits ever needs to express one.
func asn1Length(n int) ([]byte, error) {
	switch {
	case n < 0x80:
		return []byte{byte(n)}, nil
	case n < 0x100:
		return []byte{0x81, byte(n)}, nil
	case n < 0x10000:
		return []byte{0x82, byte(n >> 8), byte(n)}, nil
	default:
		return nil, errLengthTooLarge
	}
}

// asn1TLV wraps value in a tag-length-value triple.
func asn1TLV(tag byte, value []byte) ([]byte, error) {
	lenBytes, err := asn1Length(len(value))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(lenBytes)+len(value))
	out = append(out, tag)
	out = append(out, lenBytes...)
	out = append(out, value...)
	return out, nil
}

// asn1Sequence concatenates parts and wraps them in a SEQUENCE.
func asn1Sequence(parts ...[]byte) ([]byte, error) {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	return asn1TLV(tagSequence, body)
}

// asn1Set concatenates parts and wraps them in a SET.
func asn1Set(parts ...[]byte) ([]byte, error) {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	return asn1TLV(tagSet, body)
}

// asn1Integer encodes a small non-negative integer (serial numbers in this
// issuer are always 1).
func asn1Integer(v int64) ([]byte, error) {
	if v == 0 {
		return asn1TLV(tagInteger, []byte{0x00})
	}
	var b []byte
	n := v
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	// Prepend a zero byte if the high bit of the first byte is set, so the
	// integer isn't misread as negative.
	if b[0]&0x80 != 0 {
		b = append([]byte{0x00}, b...)
	}
	return asn1TLV(tagInteger, b)
}

// asn1OID encodes a dotted OID string's component integers directly (no
// string parsing — the OIDs this issuer needs are given as []int).
func asn1OID(components []int) ([]byte, error) {
	if len(components) < 2 {
		return nil, errInvalidOID
	}
	body := []byte{byte(components[0]*40 + components[1])}
	for _, c := range components[2:] {
		body = append(body, encodeOIDComponent(c)...)
	}
	return asn1TLV(tagOID, body)
}

func encodeOIDComponent(v int) []byte {
	if v == 0 {
		return []byte{0x00}
	}
	var stack []byte
	for v > 0 {
		stack = append([]byte{byte(v & 0x7f)}, stack...)
		v >>= 7
	}
	for i := 0; i < len(stack)-1; i++ {
		stack[i] |= 0x80
	}
	return stack
}

// asn1UTCTime encodes a YYMMDDHHMMSSZ UTCTime value.
func asn1UTCTime(s string) ([]byte, error) {
	return asn1TLV(tagUTCTime, []byte(s))
}

// asn1PrintableString encodes an ASN.1 PrintableString.
func asn1PrintableString(s string) ([]byte, error) {
	return asn1TLV(tagPrintable, []byte(s))
}

// asn1Null encodes the ASN.1 NULL value.
func asn1Null() []byte {
	return []byte{tagNull, 0x00}
}

// asn1BitString wraps raw bits with a zero "unused bits" prefix byte (every
// use in this issuer is byte-aligned).
func asn1BitString(raw []byte) ([]byte, error) {
	body := make([]byte, 0, 1+len(raw))
	body = append(body, 0x00)
	body = append(body, raw...)
	return asn1TLV(tagBitString, body)
}

// asn1ContextConstructed wraps value in an explicit context-specific
// constructed tag (e.g. [0] for the version field, [3] for extensions).
func asn1ContextConstructed(tagNum byte, value []byte) ([]byte, error) {
	return asn1TLV(0xA0|tagNum, value)
}
