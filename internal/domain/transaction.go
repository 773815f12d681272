package domain

import "time"

// Transaction is opaque to the chain beyond being serializable: it carries
// a student record and the specific term being recorded against it.
// Grounded on original_source/src/blockchain/transacao.rs.
type Transaction struct {
	ID        uint32    `json:"id"`
	Student   Student   `json:"student"`
	Term      Term      `json:"term"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransaction stamps the transaction with the current time, matching
// Transacao::nova_transacao in the original implementation.
func NewTransaction(id uint32, student Student, term Term) Transaction {
	return Transaction{
		ID:        id,
		Student:   student,
		Term:      term,
		Timestamp: time.Now().UTC(),
	}
}
