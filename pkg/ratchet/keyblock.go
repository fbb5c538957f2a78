package ratchet

import (
	"github.com/noctane/ratchet/pkg/aead"
	"github.com/noctane/ratchet/pkg/chain"
)

// KeyBlock is a single draw from a chain, partitioned into an AEAD key,
// nonce, and associated data. Derivable only from a chain; single-use;
// the caller must Zero it once consumed.
type KeyBlock struct {
	Key   []byte `json:"key"`
	Nonce []byte `json:"nonce"`
	AAD   []byte `json:"aad"`
}

// deriveKeyBlock reads keySize+nonceSize+aadLen bytes from ch and
// partitions them in order: key, nonce, AAD.
func deriveKeyBlock(ch *chain.State, c aead.Cipher, aadLen int) KeyBlock {
	buf := make([]byte, c.KeySize()+c.NonceSize()+aadLen)
	ch.Fill(buf)
	return KeyBlock{
		Key:   buf[:c.KeySize()],
		Nonce: buf[c.KeySize() : c.KeySize()+c.NonceSize()],
		AAD:   buf[c.KeySize()+c.NonceSize():],
	}
}

// Zero clears the KeyBlock's backing bytes. The three fields alias a
// single contiguous buffer, so zeroing any one of them wipes the whole
// draw; Zero wipes all three defensively in case a future change stops
// sharing the backing array.
func (kb *KeyBlock) Zero() {
	chain.Wipe(kb.Key)
	chain.Wipe(kb.Nonce)
	chain.Wipe(kb.AAD)
}

// buildAAD concatenates the header-derived AAD prefix, the chain-derived
// AAD from the KeyBlock, and an optional caller-supplied AAD suffix
// (e.g. a transcript hash) into the bytes passed to the AEAD cipher.
func buildAAD(h Header, chainAAD, callerAAD []byte) []byte {
	buf := make([]byte, 0, headerWireSize+len(chainAAD)+len(callerAAD))
	buf = append(buf, h.Bytes()...)
	buf = append(buf, chainAAD...)
	buf = append(buf, callerAAD...)
	return buf
}
