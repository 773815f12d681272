package p2p

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/eduardozborowski/acadchain/internal/chain"
	"github.com/eduardozborowski/acadchain/internal/domain"
)

func TestLooksLikeBlockAcceptsBlockShape(t *testing.T) {
	b := chain.NewGenesisBlock()
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !looksLikeBlock(data) {
		t.Fatal("expected a genuine block to be recognized as a block")
	}
	if looksLikeTransaction(data) {
		t.Fatal("a block should not also look like a transaction")
	}
}

func TestLooksLikeTransactionAcceptsTransactionShape(t *testing.T) {
	student := domain.NewStudent(7, "Ana", domain.NewDate(2000, time.January, 1))
	term := domain.NewTerm(42, 2024, 1)
	tx := domain.NewTransaction(42, student, term)

	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !looksLikeTransaction(data) {
		t.Fatal("expected a genuine transaction to be recognized as a transaction")
	}
	if looksLikeBlock(data) {
		t.Fatal("a transaction should not also look like a block")
	}
}

func TestDisambiguationDiscardsGarbage(t *testing.T) {
	data := []byte(`{"unrelated":"payload"}`)
	if looksLikeBlock(data) {
		t.Fatal("unrelated JSON should not look like a block")
	}
	if looksLikeTransaction(data) {
		t.Fatal("unrelated JSON should not look like a transaction")
	}
}
