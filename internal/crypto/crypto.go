// Package crypto wraps RSA PKCS#1 v1.5 signing/verification over SHA-256
// digests, and PEM key loading from disk. Grounded on the teacher's
// core/security.go (package-level Sign/Verify dispatch, a settable
// package logger, PEM loading helpers under crypto/x509+encoding/pem),
// narrowed from the teacher's Ed25519/BLS scheme to the RSA scheme
// spec.md §4.1 mandates — the one place this system departs from the
// teacher's own crypto choice, because the spec fixes it.
package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// PrivateKey and PublicKey alias the stdlib RSA types so call sites in
// this module don't sprinkle crypto/rsa imports for what is, in this
// system, a single fixed algorithm choice.
type (
	PrivateKey = rsa.PrivateKey
	PublicKey  = rsa.PublicKey
)

var pkgLogger = log.StandardLogger()

// SetLogger overrides the package logger, matching the teacher's
// SetSecurityLogger escape hatch for tests and embedding callers.
func SetLogger(l *log.Logger) { pkgLogger = l }

// Sha256Hex returns the hex-encoded SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// Sign produces an RSA PKCS#1 v1.5 signature over the SHA-256 digest of
// msg. The returned bytes are raw signature bytes — callers base64-encode
// for the wire/chain representation (spec.md §4.1).
func Sign(priv *PrivateKey, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig, nil
}

// Verify checks an RSA PKCS#1 v1.5 signature over the SHA-256 digest of
// msg. A non-nil error means the signature is invalid.
func Verify(pub *PublicKey, msg, sig []byte) error {
	digest := sha256.Sum256(msg)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("crypto: bad signature: %w", err)
	}
	return nil
}

// LoadPrivateKeyPEM reads a PKCS#1 or PKCS#8-encoded RSA private key from
// path, failing loudly on any malformed input as spec.md §4.1 requires.
func LoadPrivateKeyPEM(path string) (*PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: read private key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("crypto: no PEM block found in %s", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		pkgLogger.Debugf("loaded PKCS#1 private key from %s", path)
		return key, nil
	}

	generic, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key %s: %w", path, err)
	}
	key, ok := generic.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("crypto: key in %s is not RSA", path)
	}
	pkgLogger.Debugf("loaded PKCS#8 private key from %s", path)
	return key, nil
}

// LoadPublicKeyPEM parses a SubjectPublicKeyInfo-encoded RSA public key
// from raw PEM bytes (used by internal/config, which reads keys out of a
// TOML table rather than individual files).
func LoadPublicKeyPEM(pemBytes []byte) (*PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("crypto: no PEM block found")
	}
	generic, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		if key, err2 := x509.ParsePKCS1PublicKey(block.Bytes); err2 == nil {
			return key, nil
		}
		return nil, fmt.Errorf("crypto: parse public key: %w", err)
	}
	key, ok := generic.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: key is not RSA")
	}
	return key, nil
}
