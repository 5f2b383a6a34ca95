package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// VerifyMode selects how the server certificate is checked.
type VerifyMode int

const (
	// VerifyPeer validates the server chain and hostname.
	VerifyPeer VerifyMode = iota
	// VerifyNone accepts any server certificate.
	VerifyNone
)

func (m VerifyMode) String() string {
	switch m {
	case VerifyPeer:
		return "peer"
	case VerifyNone:
		return "none"
	}
	return fmt.Sprintf("VerifyMode(%d)", int(m))
}

// ParseVerifyMode accepts "peer"/"verify_peer" and "none"/"verify_none".
// The empty string means VerifyPeer.
func ParseVerifyMode(s string) (VerifyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "peer", "verify_peer":
		return VerifyPeer, nil
	case "none", "verify_none":
		return VerifyNone, nil
	}
	return VerifyPeer, fmt.Errorf("unknown verify mode %q (want peer or none)", s)
}

// ErrEncryptedPKCS8 is returned for "ENCRYPTED PRIVATE KEY" blocks, which the
// standard library cannot decrypt.
var ErrEncryptedPKCS8 = errors.New("encrypted PKCS#8 private keys are not supported; convert the key to a legacy encrypted PEM or decrypt it")

// TLSConfig describes the client side of a TLS connection.
type TLSConfig struct {
	VerifyMode VerifyMode

	// ClientCert and ClientKey are PEM blocks. Mutual TLS is configured only
	// when both are present.
	ClientCert []byte
	ClientKey  []byte

	// KeyPassphrase decrypts ClientKey when set.
	KeyPassphrase string

	// RootCAs overrides the system pool for server verification.
	RootCAs *x509.CertPool
}

// HasClientCertificate reports whether mutual TLS will be applied.
func (c *TLSConfig) HasClientCertificate() bool {
	return len(c.ClientCert) > 0 && len(c.ClientKey) > 0
}

// Build converts c into a *tls.Config.
func (c *TLSConfig) Build() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.VerifyMode == VerifyNone, //nolint:gosec // explicit opt-in
		RootCAs:            c.RootCAs,
	}

	if c.HasClientCertificate() {
		cert, err := LoadKeyPair(c.ClientCert, c.ClientKey, c.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// LoadKeyPair parses a PEM certificate chain and private key. When
// passphrase is non-empty an encrypted key block is decrypted with it first;
// otherwise the key is decoded unencrypted.
func LoadKeyPair(certPEM, keyPEM []byte, passphrase string) (tls.Certificate, error) {
	if passphrase != "" {
		decrypted, err := decryptKey(keyPEM, passphrase)
		if err != nil {
			return tls.Certificate{}, err
		}
		keyPEM = decrypted
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load client certificate: %w", err)
	}
	return cert, nil
}

func decryptKey(keyPEM []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("client key: no PEM block found")
	}

	if block.Type == "ENCRYPTED PRIVATE KEY" {
		return nil, ErrEncryptedPKCS8
	}

	//nolint:staticcheck // legacy RFC 1423 encryption is what passphrase-protected PEM keys use
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}

	//nolint:staticcheck // see above
	der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("decrypt client key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
