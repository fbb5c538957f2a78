package ratchet

import (
	"fmt"

	"github.com/noctane/ratchet/pkg/aead"
	"github.com/noctane/ratchet/pkg/chain"
)

// recvHalf is the Opener: it owns the receive chain, the peer's current
// DH public key, the count of keys already derived in the current epoch,
// the not-yet-consumed KeyBlocks for the current epoch, and a table of
// tables for past epochs (keyed by the peer public key that produced
// them), for late-arriving messages.
type recvHalf struct {
	chain        *chain.State
	cipher       aead.Cipher
	aadLen       int
	maxSkip      int
	currentPK    []byte
	derivedCount uint32
	currentKeys  map[uint32]KeyBlock
	previousKeys map[string]map[uint32]KeyBlock
}

// deriveRange derives and caches KeyBlocks for indices in the half-open
// range [from, to), advancing r.derivedCount to to. It is used both for
// case-A backfill (to = message index + 1) and for archiving the old
// epoch's unconsumed tail during a ratchet step (to = previous_step,
// exclusive).
func (r *recvHalf) deriveRange(from, to uint32) error {
	for idx := from; idx < to; idx++ {
		if r.maxSkip > 0 && len(r.currentKeys) >= r.maxSkip {
			return ErrTooManySkipped
		}
		r.currentKeys[idx] = deriveKeyBlock(r.chain, r.cipher, r.aadLen)
	}
	r.derivedCount = to
	return nil
}

// openOne removes the KeyBlock at idx from keys and attempts to open msg
// against out. On AEAD failure the KeyBlock is reinstated (un-zeroed) so
// a retry remains possible; on success it is zeroed and the plaintext
// slice (out extended by the decrypted length) is returned.
func openOne(c aead.Cipher, keys map[uint32]KeyBlock, idx uint32, msg Message, out, extraAAD []byte) ([]byte, error) {
	kb, ok := keys[idx]
	if !ok {
		return nil, ErrNoKey
	}
	delete(keys, idx)

	start := len(out)
	buf := append(out, msg.Data...)
	aad := buildAAD(msg.Header, kb.AAD, extraAAD)

	n, err := c.OpenInPlace(kb.Key, kb.Nonce, aad, buf[start:])
	if err != nil {
		keys[idx] = kb
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	kb.Zero()
	return buf[:start+n], nil
}

func cloneKeyBlock(v KeyBlock) KeyBlock {
	return KeyBlock{
		Key:   append([]byte(nil), v.Key...),
		Nonce: append([]byte(nil), v.Nonce...),
		AAD:   append([]byte(nil), v.AAD...),
	}
}

func cloneKeyBlockMap(m map[uint32]KeyBlock) map[uint32]KeyBlock {
	out := make(map[uint32]KeyBlock, len(m))
	for k, v := range m {
		out[k] = cloneKeyBlock(v)
	}
	return out
}

func zeroKeyBlockMap(m map[uint32]KeyBlock) {
	for idx, kb := range m {
		kb.Zero()
		delete(m, idx)
	}
}

func (r *recvHalf) clone() *recvHalf {
	currentKeys := cloneKeyBlockMap(r.currentKeys)
	previousKeys := make(map[string]map[uint32]KeyBlock, len(r.previousKeys))
	for pk, inner := range r.previousKeys {
		previousKeys[pk] = cloneKeyBlockMap(inner)
	}
	return &recvHalf{
		chain:        r.chain.Clone(),
		cipher:       r.cipher,
		aadLen:       r.aadLen,
		maxSkip:      r.maxSkip,
		currentPK:    append([]byte(nil), r.currentPK...),
		derivedCount: r.derivedCount,
		currentKeys:  currentKeys,
		previousKeys: previousKeys,
	}
}

func (r *recvHalf) zero() {
	r.chain.Zero()
	chain.Wipe(r.currentPK)
	zeroKeyBlockMap(r.currentKeys)
	for pk, inner := range r.previousKeys {
		zeroKeyBlockMap(inner)
		delete(r.previousKeys, pk)
	}
}
