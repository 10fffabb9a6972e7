// Package certissuer generates the ephemeral RSA keypair and minimal
// self-signed v3 X.509 certificate CastV2 requires for its TLS listener.
// Cast senders do not validate the certificate chain, so this avoids any
// disk footprint or trust-store dependency: the pair is minted once per
// process and cached (spec.md §4.2).
package certissuer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
)

var (
	oidRSAEncryption        = []int{1, 2, 840, 113549, 1, 1, 1}
	oidSHA256WithRSAEncrypt = []int{1, 2, 840, 113549, 1, 1, 11}
	oidCommonName           = []int{2, 5, 4, 3}
)

const (
	commonName   = "CastV2"
	notBefore    = "250101000000Z"
	notAfter     = "350101000000Z"
	rsaKeyBits   = 2048
	serialNumber = 1
)

// Issuer mints and caches the (privateKeyPEM, certPEM) pair for a process.
// Unlike the source this bridge is modeled after, the cache lives on an
// explicit Issuer value rather than a package-level var, so tests and
// multi-instance callers each get independent state (spec.md §9).
type Issuer struct {
	once    sync.Once
	keyPEM  []byte
	certPEM []byte
	err     error
}

// NewIssuer returns an Issuer with no keypair generated yet; generation
// happens lazily on first Issue() call and is cached thereafter.
func NewIssuer() *Issuer {
	return &Issuer{}
}

// Issue returns the cached (privateKeyPEM, certPEM) pair, generating it on
// the first call. Key generation failure is the one error in this module
// that should propagate to process startup (spec.md §7) — it's
// deterministic-in-practice but not a recoverable runtime condition.
func (iss *Issuer) Issue() (keyPEM, certPEM []byte, err error) {
	iss.once.Do(func() {
		iss.keyPEM, iss.certPEM, iss.err = generate()
	})
	return iss.keyPEM, iss.certPEM, iss.err
}

func generate() (keyPEM, certPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("certissuer: generate RSA key: %w", err)
	}

	tbs, err := buildTBSCertificate(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("certissuer: build tbsCertificate: %w", err)
	}

	digest := sha256.Sum256(tbs)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, nil, fmt.Errorf("certissuer: sign tbsCertificate: %w", err)
	}

	sigAlg, err := algorithmIdentifier(oidSHA256WithRSAEncrypt)
	if err != nil {
		return nil, nil, err
	}
	sigBitString, err := asn1BitString(sig)
	if err != nil {
		return nil, nil, err
	}
	cert, err := asn1Sequence(tbs, sigAlg, sigBitString)
	if err != nil {
		return nil, nil, err
	}

	// Private key encoding is a standard, well-defined DER shape (PKCS#1);
	// only the certificate itself needs the hand-rolled emitter above, so
	// the key uses the stdlib marshaler.
	keyDER := x509.MarshalPKCS1PrivateKey(key)

	return pemEncode("RSA PRIVATE KEY", keyDER), pemEncode("CERTIFICATE", cert), nil
}

func buildTBSCertificate(pub *rsa.PublicKey) ([]byte, error) {
	// [0] EXPLICIT version INTEGER { v3(2) }
	versionInt, err := asn1Integer(2)
	if err != nil {
		return nil, err
	}
	version, err := asn1ContextConstructed(0, versionInt)
	if err != nil {
		return nil, err
	}

	serial, err := asn1Integer(serialNumber)
	if err != nil {
		return nil, err
	}

	sigAlg, err := algorithmIdentifier(oidSHA256WithRSAEncrypt)
	if err != nil {
		return nil, err
	}

	issuer, err := rdnCommonName(commonName)
	if err != nil {
		return nil, err
	}
	subject := issuer

	notBeforeTLV, err := asn1UTCTime(notBefore)
	if err != nil {
		return nil, err
	}
	notAfterTLV, err := asn1UTCTime(notAfter)
	if err != nil {
		return nil, err
	}
	validity, err := asn1Sequence(notBeforeTLV, notAfterTLV)
	if err != nil {
		return nil, err
	}

	spki, err := subjectPublicKeyInfo(pub)
	if err != nil {
		return nil, err
	}

	return asn1Sequence(version, serial, sigAlg, issuer, validity, subject, spki)
}

// algorithmIdentifier encodes SEQUENCE { OID, NULL }, the shape every
// AlgorithmIdentifier in this certificate uses.
func algorithmIdentifier(oid []int) ([]byte, error) {
	oidTLV, err := asn1OID(oid)
	if err != nil {
		return nil, err
	}
	return asn1Sequence(oidTLV, asn1Null())
}

// rdnCommonName encodes a single-RDN Name: SEQUENCE OF SET OF { OID, value }.
func rdnCommonName(value string) ([]byte, error) {
	oidTLV, err := asn1OID(oidCommonName)
	if err != nil {
		return nil, err
	}
	cnValue, err := asn1PrintableString(value)
	if err != nil {
		return nil, err
	}
	attr, err := asn1Sequence(oidTLV, cnValue)
	if err != nil {
		return nil, err
	}
	rdn, err := asn1Set(attr)
	if err != nil {
		return nil, err
	}
	return asn1Sequence(rdn)
}

// subjectPublicKeyInfo encodes SEQUENCE { AlgorithmIdentifier(rsaEncryption),
// BIT STRING { SEQUENCE { modulus INTEGER, publicExponent INTEGER } } }.
func subjectPublicKeyInfo(pub *rsa.PublicKey) ([]byte, error) {
	alg, err := algorithmIdentifier(oidRSAEncryption)
	if err != nil {
		return nil, err
	}
	modBytes := pub.N.Bytes()
	if len(modBytes) > 0 && modBytes[0]&0x80 != 0 {
		modBytes = append([]byte{0x00}, modBytes...)
	}
	modTLV, err := asn1TLV(tagInteger, modBytes)
	if err != nil {
		return nil, err
	}
	expTLV, err := asn1Integer(int64(pub.E))
	if err != nil {
		return nil, err
	}
	pubKeySeq, err := asn1Sequence(modTLV, expTLV)
	if err != nil {
		return nil, err
	}
	pubKeyBits, err := asn1BitString(pubKeySeq)
	if err != nil {
		return nil, err
	}
	return asn1Sequence(alg, pubKeyBits)
}

func pemEncode(blockType string, der []byte) []byte {
	var buf bytes.Buffer
	_ = pem.Encode(&buf, &pem.Block{Type: blockType, Bytes: der})
	return buf.Bytes()
}
