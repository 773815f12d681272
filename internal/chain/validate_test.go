package chain

import (
	"testing"
	"time"
)

func TestValidateEmptyChainIsInvalid(t *testing.T) {
	if Validate(nil, fakeRegistry{}) {
		t.Fatal("expected an empty chain to be invalid")
	}
}

func TestValidateGenesisAloneIsValid(t *testing.T) {
	g := NewGenesisBlock()
	if !Validate([]Block{g}, fakeRegistry{}) {
		t.Fatal("expected a genesis-only chain to validate regardless of registry contents")
	}
}

func TestValidateAcceptsProperlyChainedBlocks(t *testing.T) {
	priv := genKeyPair(t)
	registry := fakeRegistry{1: &priv.PublicKey}

	g := NewGenesisBlock()
	b1, err := Seal(NewBlock(1, g.HashAtual, nil, time.Now().UTC()), priv, 1)
	if err != nil {
		t.Fatalf("seal b1: %v", err)
	}
	b2, err := Seal(NewBlock(2, b1.HashAtual, nil, time.Now().UTC()), priv, 1)
	if err != nil {
		t.Fatalf("seal b2: %v", err)
	}

	if !Validate([]Block{g, b1, b2}, registry) {
		t.Fatal("expected a properly chained sequence to validate")
	}
}

func TestValidateRejectsBrokenLinkage(t *testing.T) {
	priv := genKeyPair(t)
	registry := fakeRegistry{1: &priv.PublicKey}

	g := NewGenesisBlock()
	b1, err := Seal(NewBlock(1, "wrong-predecessor-hash", nil, time.Now().UTC()), priv, 1)
	if err != nil {
		t.Fatalf("seal b1: %v", err)
	}

	if Validate([]Block{g, b1}, registry) {
		t.Fatal("expected broken hash_anterior linkage to fail validation")
	}
}

func TestValidateRejectsTamperedHash(t *testing.T) {
	priv := genKeyPair(t)
	registry := fakeRegistry{1: &priv.PublicKey}

	g := NewGenesisBlock()
	b1, err := Seal(NewBlock(1, g.HashAtual, nil, time.Now().UTC()), priv, 1)
	if err != nil {
		t.Fatalf("seal b1: %v", err)
	}
	b1.HashAtual = "tampered"

	if Validate([]Block{g, b1}, registry) {
		t.Fatal("expected tampered hash_atual to fail validation")
	}
}

func TestValidateRejectsUnknownSigner(t *testing.T) {
	priv := genKeyPair(t)

	g := NewGenesisBlock()
	b1, err := Seal(NewBlock(1, g.HashAtual, nil, time.Now().UTC()), priv, 99)
	if err != nil {
		t.Fatalf("seal b1: %v", err)
	}

	if Validate([]Block{g, b1}, fakeRegistry{}) {
		t.Fatal("expected an unknown signer to fail validation")
	}
}
