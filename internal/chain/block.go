// Package chain implements the block-chained ledger's data model: the
// Block structure, its canonical hashing and signing scheme, and whole-chain
// validation. It is deliberately independent of networking and persistence.
//
// Grounded on the teacher's core/common_structs.go (Block/BlockHeader shape)
// and core/replication.go (Hash() on Block), adapted from the teacher's
// double-SHA256-over-RLP-header scheme to the single-SHA256-over-canonical-JSON
// scheme original_source/src/blockchain/bloco.rs uses.
package chain

import (
	"time"

	"github.com/eduardozborowski/acadchain/internal/domain"
)

// Block is a signed record linking to its predecessor by hash and carrying
// a batch of transactions. Field order matches spec.md §4.3's canonical
// preimage order exactly: index, hash_anterior, hash_atual, timestamp,
// transactions, authority_id, authority_signature. Go's encoding/json
// emits struct fields in declaration order, so that order is the
// canonical encoding with no custom marshaler required.
type Block struct {
	Index              uint32               `json:"index"`
	HashAnterior       string               `json:"hash_anterior"`
	HashAtual          string               `json:"hash_atual"`
	Timestamp          time.Time            `json:"timestamp"`
	Transactions       []domain.Transaction `json:"transactions"`
	AuthorityID        uint32               `json:"authority_id"`
	AuthoritySignature string               `json:"authority_signature"`
}

// GenesisHashAnterior is the fixed "previous hash" literal for block 0.
const GenesisHashAnterior = "0"

// NewGenesisBlock builds the fixed genesis block shared by all nodes by
// construction: index 0, hash_anterior "0", no transactions, authority 0,
// empty signature, epoch timestamp. Its hash_atual is computed via
// CalculateHash and set before returning, matching Bloco::novo_bloco + the
// explicit cadeia[0].hash_atual = ... assignment in blockchain.rs.
func NewGenesisBlock() Block {
	b := Block{
		Index:        0,
		HashAnterior: GenesisHashAnterior,
		Timestamp:    time.Unix(0, 0).UTC(),
		Transactions: []domain.Transaction{},
		AuthorityID:  0,
	}
	b.HashAtual = b.CalculateHash()
	return b
}

// NewBlock builds the shape of a not-yet-sealed block: index, predecessor
// hash and drained transactions are fixed by the caller (the ledger, which
// owns chain length and mempool draining); hash_atual and the signature
// are filled in by Seal.
func NewBlock(index uint32, hashAnterior string, txs []domain.Transaction, timestamp time.Time) Block {
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return Block{
		Index:        index,
		HashAnterior: hashAnterior,
		Timestamp:    timestamp,
		Transactions: txs,
	}
}
