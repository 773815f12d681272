package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, pubPEM string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "[autoridades]\n\"1\" = \"\"\"\n" + pubPEM + "\"\"\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func genPublicKeyPEM(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestLoadParsesAuthorityTable(t *testing.T) {
	path := writeConfig(t, genPublicKeyPEM(t))

	registry, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := registry.PublicKey(1); !ok {
		t.Fatal("expected authority 1 to be present")
	}
	if _, ok := registry.PublicKey(2); ok {
		t.Fatal("did not expect authority 2 to be present")
	}
	ids := registry.IDs()
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected IDs [1], got %v", ids)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadRejectsMalformedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "[autoridades]\n\"1\" = \"not a pem\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed public key")
	}
}

func TestNilRegistryPublicKeyLookupFails(t *testing.T) {
	var r *Registry
	if _, ok := r.PublicKey(1); ok {
		t.Fatal("expected a nil registry to report no keys")
	}
}
