package p2p

import (
	"github.com/eduardozborowski/acadchain/internal/chain"
	"github.com/eduardozborowski/acadchain/internal/domain"
)

// EventKind discriminates the semantic events emitted by Events()
// (spec.md §4.6).
type EventKind int

const (
	EventNewBlock EventKind = iota
	EventNewTransaction
	EventChainRequested
	EventChainReceived
)

// Event is the single type carried on the channel returned by
// Node.Events(). Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	Block       chain.Block
	Transaction domain.Transaction

	PeerID          string
	ResponseChannel chan<- []chain.Block

	Chain []chain.Block
}
