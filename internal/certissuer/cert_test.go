package certissuer

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestIssueProducesParseableCertificate(t *testing.T) {
	iss := NewIssuer()
	keyPEM, certPEM, err := iss.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		t.Fatalf("expected a CERTIFICATE PEM block")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	if cert.Subject.CommonName != "CastV2" {
		t.Fatalf("CommonName = %q, want CastV2", cert.Subject.CommonName)
	}
	if cert.Issuer.CommonName != "CastV2" {
		t.Fatalf("Issuer CommonName = %q, want CastV2", cert.Issuer.CommonName)
	}
	if cert.SerialNumber.Int64() != 1 {
		t.Fatalf("SerialNumber = %v, want 1", cert.SerialNumber)
	}
	if cert.Version != 3 {
		t.Fatalf("Version = %d, want 3", cert.Version)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil || keyBlock.Type != "RSA PRIVATE KEY" {
		t.Fatalf("expected an RSA PRIVATE KEY PEM block")
	}
	if _, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes); err != nil {
		t.Fatalf("ParsePKCS1PrivateKey: %v", err)
	}
}

func TestIssueCachesAcrossCalls(t *testing.T) {
	iss := NewIssuer()
	key1, cert1, err := iss.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	key2, cert2, err := iss.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if string(key1) != string(key2) || string(cert1) != string(cert2) {
		t.Fatalf("expected cached keypair to be returned on second call")
	}
}

func TestTwoIssuersAreIndependent(t *testing.T) {
	a, b := NewIssuer(), NewIssuer()
	keyA, _, err := a.Issue()
	if err != nil {
		t.Fatalf("Issue a: %v", err)
	}
	keyB, _, err := b.Issue()
	if err != nil {
		t.Fatalf("Issue b: %v", err)
	}
	if string(keyA) == string(keyB) {
		t.Fatalf("expected independent Issuer instances to mint distinct keys")
	}
}
