package chain

import "errors"

// ErrHashMismatch is returned when a block's hash_anterior does not match
// the expected predecessor's hash_atual (spec.md §7).
var ErrHashMismatch = errors.New("chain: hash mismatch")

// Validate walks chain from index 1 checking I1 (previous-hash linkage),
// I2 (self-hash) and I3 (authority signature) for every block. Genesis
// (index 0) is accepted by construction and never re-verified — the
// source validator loop starts at index 1 and spec.md §9 preserves that
// choice explicitly.
func Validate(blocks []Block, registry AuthorityLookup) bool {
	if len(blocks) == 0 {
		return false
	}
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if cur.HashAnterior != prev.HashAtual {
			return false
		}
		if cur.HashAtual != cur.CalculateHash() {
			return false
		}
		if err := Verify(cur, registry); err != nil {
			return false
		}
	}
	return true
}
