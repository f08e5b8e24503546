package vault

import (
	"crypto/x509"
	"testing"
	"time"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("Failed to generate self-signed cert: %v", err)
	}

	if len(cert.Certificate) == 0 {
		t.Fatal("Generated certificate is empty")
	}

	if cert.PrivateKey == nil {
		t.Fatal("Generated private key is nil")
	}

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("Generated certificate does not parse: %v", err)
	}
	if err := parsed.VerifyHostname("localhost"); err != nil {
		t.Errorf("Certificate should cover localhost: %v", err)
	}
	if !parsed.NotAfter.After(time.Now().Add(300 * 24 * time.Hour)) {
		t.Errorf("Certificate expires too soon: %v", parsed.NotAfter)
	}
}

func TestGenerateSelfSignedCert_Unique(t *testing.T) {
	a, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatal(err)
	}
	pa, _ := x509.ParseCertificate(a.Certificate[0])
	pb, _ := x509.ParseCertificate(b.Certificate[0])
	if pa.SerialNumber.Cmp(pb.SerialNumber) == 0 {
		t.Error("Expected distinct serial numbers")
	}
}
