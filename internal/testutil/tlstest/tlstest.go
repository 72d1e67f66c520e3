// Package tlstest issues short-lived certificates for TLS exchange tests.
package tlstest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validity = 24 * time.Hour

// Authority is a throwaway certificate authority rooted in a test temp dir.
type Authority struct {
	cert   *x509.Certificate
	key    *rsa.PrivateKey
	caPath string
}

// leaf describes one certificate signed by an Authority.
type leaf struct {
	name  string
	usage x509.ExtKeyUsage
	dns   []string
	ips   []net.IP
}

func NewAuthority(t testing.TB, dir string, name string) *Authority {
	t.Helper()
	key := newKey(t)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create ca %s: %v", name, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse ca %s: %v", name, err)
	}
	caPath := filepath.Join(dir, name+"-ca.crt")
	writePEM(t, caPath, "CERTIFICATE", der, 0o644)
	return &Authority{cert: cert, key: key, caPath: caPath}
}

// CAFile is the PEM bundle a peer loads to trust this authority.
func (a *Authority) CAFile() string {
	return a.caPath
}

// IssueLoopbackServerCert issues a receiver certificate valid for 127.0.0.1
// and localhost. It returns the cert and key paths.
func (a *Authority) IssueLoopbackServerCert(t testing.TB, dir string) (string, string) {
	t.Helper()
	return a.issue(t, dir, leaf{
		name:  "hl7-receiver",
		usage: x509.ExtKeyUsageServerAuth,
		dns:   []string{"localhost"},
		ips:   []net.IP{net.ParseIP("127.0.0.1")},
	})
}

// IssueClientCert issues a sender certificate for mutual TLS.
func (a *Authority) IssueClientCert(t testing.TB, dir string, name string) (string, string) {
	t.Helper()
	return a.issue(t, dir, leaf{name: name, usage: x509.ExtKeyUsageClientAuth})
}

func (a *Authority) issue(t testing.TB, dir string, l leaf) (string, string) {
	t.Helper()
	key := newKey(t)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		Subject:      pkix.Name{CommonName: l.name},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{l.usage},
		DNSNames:     l.dns,
		IPAddresses:  l.ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.cert, &key.PublicKey, a.key)
	if err != nil {
		t.Fatalf("sign %s: %v", l.name, err)
	}
	certPath := filepath.Join(dir, l.name+".crt")
	keyPath := filepath.Join(dir, l.name+".key")
	writePEM(t, certPath, "CERTIFICATE", der, 0o644)
	writePEM(t, keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), 0o600)
	return certPath, keyPath
}

func newKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func writePEM(t testing.TB, path, blockType string, der []byte, perm os.FileMode) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
