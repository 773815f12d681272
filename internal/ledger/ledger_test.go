package ledger

import (
	"crypto/rand"
	"crypto/rsa"
	"path/filepath"
	"testing"
	"time"

	"github.com/eduardozborowski/acadchain/internal/chain"
	"github.com/eduardozborowski/acadchain/internal/crypto"
	"github.com/eduardozborowski/acadchain/internal/domain"
)

type fakeRegistry map[uint32]*crypto.PublicKey

func (r fakeRegistry) PublicKey(id uint32) (*crypto.PublicKey, bool) {
	pub, ok := r[id]
	return pub, ok
}

func genKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func sampleTransaction(id uint32) domain.Transaction {
	student := domain.NewStudent(7, "Ana", domain.NewDate(2000, time.January, 1))
	term := domain.NewTerm(id, 2024, 1)
	return domain.NewTransaction(id, student, term)
}

// TestFreshAuthorityBoot is scenario S1.
func TestFreshAuthorityBoot(t *testing.T) {
	l := New()
	if l.Len() != 1 {
		t.Fatalf("expected chain length 1, got %d", l.Len())
	}
	g := l.Chain()[0]
	if g.HashAnterior != chain.GenesisHashAnterior {
		t.Fatalf("expected hash_anterior %q, got %q", chain.GenesisHashAnterior, g.HashAnterior)
	}
	if g.HashAtual != g.CalculateHash() {
		t.Fatal("genesis hash_atual does not match its recomputed hash")
	}
}

// TestSubmitAndSeal is scenario S2.
func TestSubmitAndSeal(t *testing.T) {
	l := New()
	priv := genKeyPair(t)

	l.AddTransaction(sampleTransaction(42))
	if l.PendingCount() != 1 {
		t.Fatalf("expected 1 pending transaction, got %d", l.PendingCount())
	}

	registry := fakeRegistry{1: &priv.PublicKey}
	sealed, err := l.SealBlock(priv, 1)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if l.Len() != 2 {
		t.Fatalf("expected chain length 2, got %d", l.Len())
	}
	if sealed.Index != 1 {
		t.Fatalf("expected sealed block index 1, got %d", sealed.Index)
	}
	if len(sealed.Transactions) != 1 || sealed.Transactions[0].ID != 42 {
		t.Fatalf("expected sealed block to carry transaction 42, got %+v", sealed.Transactions)
	}
	if err := chain.Verify(sealed, registry); err != nil {
		t.Fatalf("sealed block does not verify: %v", err)
	}
	if l.PendingCount() != 0 {
		t.Fatalf("expected empty mempool after seal, got %d pending", l.PendingCount())
	}
}

// TestFollowerAcceptsBlock is scenario S3.
func TestFollowerAcceptsBlock(t *testing.T) {
	authorityLedger := New()
	priv := genKeyPair(t)
	registry := fakeRegistry{1: &priv.PublicKey}

	authorityLedger.AddTransaction(sampleTransaction(42))
	sealed, err := authorityLedger.SealBlock(priv, 1)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	follower := New()
	if err := follower.AcceptExternalBlock(sealed, registry); err != nil {
		t.Fatalf("accept external block: %v", err)
	}
	if follower.Len() != 2 {
		t.Fatalf("expected follower chain length 2, got %d", follower.Len())
	}
}

// TestFollowerRejectsForgedBlock is scenario S4.
func TestFollowerRejectsForgedBlock(t *testing.T) {
	priv := genKeyPair(t)
	forger := genKeyPair(t)
	registry := fakeRegistry{1: &priv.PublicKey}

	authorityLedger := New()
	authorityLedger.AddTransaction(sampleTransaction(42))
	genuine, err := authorityLedger.SealBlock(priv, 1)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	forged, err := chain.Seal(chain.NewBlock(genuine.Index, genuine.HashAnterior, genuine.Transactions, genuine.Timestamp), forger, 1)
	if err != nil {
		t.Fatalf("seal forged: %v", err)
	}

	follower := New()
	err = follower.AcceptExternalBlock(forged, registry)
	if err != ErrInvalidSignature && err != ErrUnknownAuthority {
		t.Fatalf("expected ErrInvalidSignature or ErrUnknownAuthority, got %v", err)
	}
	if follower.Len() != 1 {
		t.Fatalf("expected follower chain to remain at length 1, got %d", follower.Len())
	}
}

// TestChainSyncOnStartup is scenario S5.
func TestChainSyncOnStartup(t *testing.T) {
	priv := genKeyPair(t)
	registry := fakeRegistry{1: &priv.PublicKey}

	authorityLedger := New()
	for i := uint32(1); i <= 2; i++ {
		authorityLedger.AddTransaction(sampleTransaction(i))
		if _, err := authorityLedger.SealBlock(priv, 1); err != nil {
			t.Fatalf("seal block %d: %v", i, err)
		}
	}
	if authorityLedger.Len() != 3 {
		t.Fatalf("expected authority chain length 3, got %d", authorityLedger.Len())
	}

	follower := New()
	if ok := follower.ReplaceChain(authorityLedger.Chain(), registry); !ok {
		t.Fatal("expected follower to adopt the longer, valid chain")
	}
	if follower.Len() != 3 {
		t.Fatalf("expected follower chain length 3 after sync, got %d", follower.Len())
	}
}

// TestStaleSyncIgnored is scenario S6.
func TestStaleSyncIgnored(t *testing.T) {
	priv := genKeyPair(t)
	registry := fakeRegistry{1: &priv.PublicKey}

	long := New()
	for i := uint32(1); i <= 4; i++ {
		long.AddTransaction(sampleTransaction(i))
		if _, err := long.SealBlock(priv, 1); err != nil {
			t.Fatalf("seal block %d: %v", i, err)
		}
	}
	if long.Len() != 5 {
		t.Fatalf("expected chain length 5, got %d", long.Len())
	}

	short := New()
	short.AddTransaction(sampleTransaction(1))
	if _, err := short.SealBlock(priv, 1); err != nil {
		t.Fatalf("seal short chain: %v", err)
	}

	if ok := long.ReplaceChain(short.Chain(), registry); ok {
		t.Fatal("expected a shorter incoming chain to be rejected")
	}
	if long.Len() != 5 {
		t.Fatalf("expected chain to remain length 5, got %d", long.Len())
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	priv := genKeyPair(t)

	l := New()
	l.AddTransaction(sampleTransaction(1))
	if _, err := l.SealBlock(priv, 1); err != nil {
		t.Fatalf("seal: %v", err)
	}

	path := filepath.Join(t.TempDir(), "blockchain.json")
	if err := l.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != l.Len() {
		t.Fatalf("expected loaded chain length %d, got %d", l.Len(), loaded.Len())
	}
	if loaded.PendingCount() != 0 {
		t.Fatal("expected the mempool to not be persisted")
	}
}

func TestLoadMissingFileReturnsNoLocalChain(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != ErrNoLocalChain {
		t.Fatalf("expected ErrNoLocalChain, got %v", err)
	}
}
