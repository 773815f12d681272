// Package config loads the authority registry: the static, decimal-string-id
// to PEM-public-key table nodes use to verify sealed blocks.
//
// Shaped after the teacher's pkg/config.Load (a package-level loader
// returning a typed struct, errors wrapped via pkg/utils.Wrap) but reads
// TOML, not YAML — config.toml's ['autoridades'] table, grounded on
// original_source/src/utils/config.rs. TOML decoding uses
// github.com/pelletier/go-toml/v2, an indirect dependency the teacher
// already pulls in via viper, promoted here to direct since parsing
// config.toml is this package's entire job.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/eduardozborowski/acadchain/internal/crypto"
	"github.com/eduardozborowski/acadchain/pkg/utils"
)

// document mirrors config.toml's shape:
//
//	[autoridades]
//	"1" = "-----BEGIN PUBLIC KEY-----\n..."
type document struct {
	Autoridades map[string]string `toml:"autoridades"`
}

// Registry maps an authority_id to its loaded RSA public key. It is
// immutable after Load returns.
type Registry struct {
	keys map[uint32]*crypto.PublicKey
}

// Load reads and parses the authority registry from path (typically
// config.toml). Every entry is parsed eagerly so a malformed key fails
// loudly at startup rather than on first use (spec.md §6, §7).
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, "config: read "+path)
	}

	var doc document
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, utils.Wrap(err, "config: parse "+path)
	}

	keys := make(map[uint32]*crypto.PublicKey, len(doc.Autoridades))
	for idStr, pemStr := range doc.Autoridades {
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: invalid authority id %q: %w", idStr, err)
		}
		pub, err := crypto.LoadPublicKeyPEM([]byte(pemStr))
		if err != nil {
			return nil, fmt.Errorf("config: authority %s: %w", idStr, err)
		}
		keys[uint32(id)] = pub
	}
	return &Registry{keys: keys}, nil
}

// PublicKey implements chain.AuthorityLookup.
func (r *Registry) PublicKey(authorityID uint32) (*crypto.PublicKey, bool) {
	if r == nil {
		return nil, false
	}
	pub, ok := r.keys[authorityID]
	return pub, ok
}

// IDs returns the known authority IDs, primarily for startup logging.
func (r *Registry) IDs() []uint32 {
	ids := make([]uint32, 0, len(r.keys))
	for id := range r.keys {
		ids = append(ids, id)
	}
	return ids
}
