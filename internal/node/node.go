// Package node implements the node event loop: the single cooperative
// task that owns exclusive mutation rights over the ledger, multiplexing
// network events against local commands fed by the interactive console
// (spec.md §4.7, §5).
//
// Grounded on the teacher's Replicator.Start/readLoop (core/replication.go):
// one goroutine, one select, nothing else ever mutates the ledger.
package node

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/eduardozborowski/acadchain/internal/chain"
	"github.com/eduardozborowski/acadchain/internal/crypto"
	"github.com/eduardozborowski/acadchain/internal/domain"
	"github.com/eduardozborowski/acadchain/internal/ledger"
	"github.com/eduardozborowski/acadchain/internal/p2p"
)

// ErrNotAuthority is returned by Seal when the local node holds no
// private key (spec.md §6: "criar_bloco — authority only").
var ErrNotAuthority = errors.New("node: local node is not an authority")

// syncState is the startup chain-sync state machine (spec.md §4.7).
type syncState int

const (
	stateFresh syncState = iota
	stateSynced
)

// CommandKind discriminates the local commands the console submits.
type CommandKind int

const (
	CommandSubmitTransaction CommandKind = iota
	CommandSeal
)

// Command is a unit of local work submitted by the console. Err, when
// set via Submit, receives exactly one value once the command has been
// fully applied — mutated, persisted, and published — matching spec.md
// §5's "local command effects become visible before the loop awaits the
// next event."
type Command struct {
	Kind        CommandKind
	Transaction domain.Transaction
	Err         chan<- error
}

// Node is the event loop itself. Everything that touches the ledger
// does so from inside Run; Submit, Chain and PendingCount are the only
// thread-safe entry points for other goroutines (the console, in
// practice).
type Node struct {
	ledger   *ledger.Ledger
	net      *p2p.Node
	registry chain.AuthorityLookup

	role        p2p.Role
	authorityID uint32
	privKey     *crypto.PrivateKey

	path string

	commands chan Command
	sync     syncState
}

// New wires a ledger, a network node and the authority registry into an
// event loop. privKey is nil for a follower; authorityID is meaningful
// only when privKey is non-nil. The initial sync state is derived from
// the ledger's loaded length, per spec.md §4.7's state machine.
func New(l *ledger.Ledger, net *p2p.Node, registry chain.AuthorityLookup, role p2p.Role, authorityID uint32, privKey *crypto.PrivateKey, path string) *Node {
	st := stateSynced
	if l.Len() <= 1 {
		st = stateFresh
	}
	return &Node{
		ledger:      l,
		net:         net,
		registry:    registry,
		role:        role,
		authorityID: authorityID,
		privKey:     privKey,
		path:        path,
		commands:    make(chan Command, 8),
		sync:        st,
	}
}

// Role reports whether this node is running as an authority or a follower.
func (n *Node) Role() p2p.Role { return n.role }

// IsAuthority reports whether a local seal is possible.
func (n *Node) IsAuthority() bool { return n.privKey != nil }

// Chain returns a defensive snapshot of the current chain, bypassing
// the command queue since it is read-only (the ledger's own lock makes
// this safe to call concurrently with Run).
func (n *Node) Chain() []chain.Block { return n.ledger.Chain() }

// PendingCount reports the current mempool depth.
func (n *Node) PendingCount() int { return n.ledger.PendingCount() }

// Submit enqueues cmd and blocks until the loop has fully applied it.
func (n *Node) Submit(cmd Command) error {
	errCh := make(chan error, 1)
	cmd.Err = errCh
	n.commands <- cmd
	return <-errCh
}

// SubmitTransaction appends tx to the mempool and gossips it (spec.md
// §6 "transacao").
func (n *Node) SubmitTransaction(tx domain.Transaction) error {
	return n.Submit(Command{Kind: CommandSubmitTransaction, Transaction: tx})
}

// Seal drains the mempool into a freshly signed block, appends and
// persists it, and gossips the result (spec.md §6 "criar_bloco").
// Returns ErrNotAuthority on a follower node.
func (n *Node) Seal() error {
	return n.Submit(Command{Kind: CommandSeal})
}

// Run is the cooperative loop itself: it waits on network events and
// local commands, applying each one under the ledger's lock before
// returning to the select (spec.md §4.7, §5). It returns when ctx is
// canceled or the network event channel closes.
func (n *Node) Run(ctx context.Context) {
	if n.sync == stateFresh {
		log.Info("node: fresh chain on startup, requesting chain from peers")
		n.net.RequestChain()
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("node: event loop stopping")
			return
		case ev, ok := <-n.net.Events():
			if !ok {
				log.Warn("node: network event channel closed, stopping event loop")
				return
			}
			n.handleEvent(ev)
		case cmd := <-n.commands:
			n.handleCommand(cmd)
		}
	}
}

func (n *Node) handleEvent(ev p2p.Event) {
	switch ev.Kind {
	case p2p.EventNewTransaction:
		n.ledger.AddTransaction(ev.Transaction)
		n.persist("accept gossiped transaction")

	case p2p.EventNewBlock:
		if err := n.ledger.AcceptExternalBlock(ev.Block, n.registry); err != nil {
			// Duplicate arrivals from different peers surface as
			// HashMismatch once the tip has advanced; both that and a
			// genuinely bad block are dropped silently here (spec.md
			// §4.6 "Ordering and delivery").
			log.Debugf("node: reject incoming block %d: %v", ev.Block.Index, err)
			return
		}
		log.Infof("node: accepted block %d from the network", ev.Block.Index)
		n.persist("accept external block")

	case p2p.EventChainRequested:
		p2p.SendChainResponse(ev.ResponseChannel, n.ledger.Chain())

	case p2p.EventChainReceived:
		n.sync = stateSynced
		if n.ledger.ReplaceChain(ev.Chain, n.registry) {
			log.Infof("node: replaced local chain with a %d-block chain from a peer", len(ev.Chain))
			n.persist("replace chain")
		}
	}
}

func (n *Node) handleCommand(cmd Command) {
	var err error
	switch cmd.Kind {
	case CommandSubmitTransaction:
		n.ledger.AddTransaction(cmd.Transaction)
		n.persist("submit_transaction")
		if pubErr := n.net.PublishTransaction(cmd.Transaction); pubErr != nil {
			log.Warnf("node: publish transaction: %v", pubErr)
		}

	case CommandSeal:
		if n.privKey == nil {
			err = ErrNotAuthority
			break
		}
		var b chain.Block
		b, err = n.ledger.SealBlock(n.privKey, n.authorityID)
		if err != nil {
			// Sealing failures are fatal to the current command; the
			// operator retries (spec.md §7).
			break
		}
		n.persist("criar_bloco")
		if pubErr := n.net.PublishBlock(b); pubErr != nil {
			log.Warnf("node: publish block: %v", pubErr)
		}
	}

	if cmd.Err != nil {
		cmd.Err <- err
	}
}

// persist saves the ledger and logs, rather than propagates, a failure:
// persistence errors do not roll back the in-memory mutation that
// preceded them (spec.md §7).
func (n *Node) persist(reason string) {
	if err := n.ledger.Save(n.path); err != nil {
		log.Warnf("node: persist after %s: %v", reason, err)
	}
}
