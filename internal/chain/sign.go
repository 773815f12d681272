package chain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eduardozborowski/acadchain/internal/crypto"
)

// Sentinel errors surfaced by block verification, reused by the ledger
// (spec.md §7).
var (
	ErrUnknownAuthority = errors.New("chain: unknown authority")
	ErrInvalidSignature = errors.New("chain: invalid signature")
)

// CalculateHash returns the hex SHA-256 of the block's canonical JSON
// encoding with hash_atual cleared, matching bloco.rs's calcular_hash:
// clone, blank the self-referential field, serialize, hash.
func (b Block) CalculateHash() string {
	b.HashAtual = ""
	encoded, err := json.Marshal(b)
	if err != nil {
		// Transactions are plain structs with no custom marshalers that can
		// fail; a marshal error here would indicate a programming mistake,
		// not a runtime condition callers can recover from.
		panic(fmt.Sprintf("chain: marshal block for hashing: %v", err))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// signingPreimage builds the exact byte sequence that is signed and later
// re-derived for verification: index, hash_anterior, hash_atual, timestamp
// (RFC 3339 nanosecond form) and the canonical JSON of the transaction
// list, concatenated with no separator.
//
// This resolves spec.md §9's open question in favor of canonical JSON
// over a language-specific debug rendering, as the spec itself
// recommends, and is the one place that encoding is pinned — Seal and
// Verify both call this and nothing else.
func signingPreimage(b Block) ([]byte, error) {
	txs, err := json.Marshal(b.Transactions)
	if err != nil {
		return nil, fmt.Errorf("chain: marshal transactions for signing: %w", err)
	}
	preimage := fmt.Sprintf("%d%s%s%s%s",
		b.Index, b.HashAnterior, b.HashAtual, b.Timestamp.Format(time.RFC3339Nano), txs)
	return []byte(preimage), nil
}

// Seal is the authority-only finalization step (spec.md §4.3): set
// authority_id, compute hash_atual, build the signing preimage, sign,
// base64-encode into authority_signature. Mirrors Bloco::assinar_bloco.
func Seal(b Block, privKey *crypto.PrivateKey, authorityID uint32) (Block, error) {
	b.AuthorityID = authorityID
	b.HashAtual = b.CalculateHash()

	preimage, err := signingPreimage(b)
	if err != nil {
		return Block{}, err
	}
	sig, err := crypto.Sign(privKey, preimage)
	if err != nil {
		return Block{}, fmt.Errorf("chain: sign block: %w", err)
	}
	b.AuthoritySignature = base64.StdEncoding.EncodeToString(sig)
	return b, nil
}

// Verify checks a block's authority signature: look up the authority's
// public key, rebuild the signing preimage, base64-decode the stored
// signature, and verify. Mirrors Bloco::verificar_assinatura.
func Verify(b Block, registry AuthorityLookup) error {
	pub, ok := registry.PublicKey(b.AuthorityID)
	if !ok {
		return ErrUnknownAuthority
	}

	preimage, err := signingPreimage(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := base64.StdEncoding.DecodeString(b.AuthoritySignature)
	if err != nil {
		return ErrInvalidSignature
	}
	if err := crypto.Verify(pub, preimage, sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// AuthorityLookup is the minimal view of the authority registry the chain
// package needs — kept as an interface so this package does not depend on
// internal/config, avoiding an import cycle.
type AuthorityLookup interface {
	PublicKey(authorityID uint32) (*crypto.PublicKey, bool)
}
