// Command acadchaind runs a single academic-records chain node: an
// authority (with --autoridade) or a follower. Wiring mirrors the
// teacher's small cmd/*/main.go idiom (flag parsing, then straight-line
// setup, then a blocking run) rather than a cobra command tree — the
// console here is the tight stdin loop spec.md §6 describes, grounded
// on original_source/src/main.rs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/eduardozborowski/acadchain/internal/config"
	"github.com/eduardozborowski/acadchain/internal/console"
	"github.com/eduardozborowski/acadchain/internal/crypto"
	"github.com/eduardozborowski/acadchain/internal/ledger"
	"github.com/eduardozborowski/acadchain/internal/node"
	"github.com/eduardozborowski/acadchain/internal/p2p"
)

// fixedAuthorityID is the single authority identity the default
// two-node topology uses, matching original_source/src/main.rs's
// `id_autoridade = if is_autoridade { 1 } else { 0 }`.
const fixedAuthorityID = 1

func main() {
	// Load environment variables from a project .env if present, mirroring
	// the teacher's cmd/explorer/main.go bring-up, before flag defaults are
	// computed from them.
	_ = godotenv.Load(".env")

	var (
		isAuthority = flag.Bool("autoridade", envBool("ACADCHAIN_AUTORIDADE"), "run this node as the signing authority")
		configPath  = flag.String("config", envOrDefault("ACADCHAIN_CONFIG", "config.toml"), "path to the authority registry (TOML)")
		ledgerPath  = flag.String("blockchain", envOrDefault("ACADCHAIN_BLOCKCHAIN", "blockchain.json"), "path to the persisted ledger file")
		keyDir      = flag.String("chaves", envOrDefault("ACADCHAIN_CHAVES", "chaves_privadas"), "directory holding authority private keys")
		logLevel    = flag.String("log-level", envOrDefault("ACADCHAIN_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	)
	flag.Parse()

	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("main: unknown log level %q, keeping default", *logLevel)
	}

	registry, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("main: load authority registry %s: %v", *configPath, err)
	}
	log.Infof("main: loaded public keys for authorities %v", registry.IDs())

	role := p2p.RoleFollower
	authorityID := uint32(0)
	var privKey *crypto.PrivateKey
	if *isAuthority {
		role = p2p.RoleAuthority
		authorityID = fixedAuthorityID
		keyPath := fmt.Sprintf("%s/autoridade_%d.pem", *keyDir, authorityID)
		privKey, err = crypto.LoadPrivateKeyPEM(keyPath)
		if err != nil {
			log.Fatalf("main: load private key %s: %v", keyPath, err)
		}
	}

	l, err := ledger.Load(*ledgerPath)
	if err != nil {
		if !errors.Is(err, ledger.ErrNoLocalChain) {
			log.Fatalf("main: load ledger %s: %v", *ledgerPath, err)
		}
		log.Infof("main: no usable ledger at %s, starting from genesis", *ledgerPath)
		l = ledger.New()
	} else {
		log.Infof("main: loaded ledger with %d blocks from %s", l.Len(), *ledgerPath)
	}

	net, err := p2p.New(role)
	if err != nil {
		log.Fatalf("main: bring up network (%s): %v", role, err)
	}
	defer net.Close()

	n := node.New(l, net, registry, role, authorityID, privKey, *ledgerPath)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("main: signal received, shutting down")
		cancel()
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		n.Run(ctx)
	}()

	log.Infof("main: node up as %s, peer id %s", role, net.ID())

	cons := console.New(n, os.Stdin, os.Stdout)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		if err := cons.Run(); err != nil {
			log.Warnf("main: console reader error: %v", err)
		}
	}()
	select {
	case <-consoleDone:
	case <-ctx.Done():
	}

	cancel()
	<-loopDone
	if err := l.Save(*ledgerPath); err != nil {
		log.Warnf("main: final persist %s: %v", *ledgerPath, err)
	}
}

// envOrDefault reads key from the environment (possibly populated by
// godotenv from .env), falling back to fallback when unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool parses key as a boolean flag default, treating an unset or
// unparseable value as false.
func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
