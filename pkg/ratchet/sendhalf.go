package ratchet

import (
	"fmt"
	"math"

	"github.com/noctane/ratchet/pkg/aead"
	"github.com/noctane/ratchet/pkg/chain"
)

// sendHalf is the Locker: it owns the send chain and the next outbound
// Header (public key, next index, previous-epoch length).
type sendHalf struct {
	chain     *chain.State
	cipher    aead.Cipher
	aadLen    int
	publicKey []byte
	index     uint32
	prevStep  uint32
}

func maxPlaintextLen(c aead.Cipher) int {
	block := c.BlockSize()
	if block <= 0 {
		block = 1
	}
	bound := (math.MaxInt - c.TagSize()) / block
	return bound * block
}

// lock seals plaintext under the next KeyBlock, snapshotting the current
// outbound Header before advancing the index for the following call. The
// chain always advances, even on AEAD failure; only the send half's own
// bookkeeping (the Header snapshot) is rolled back-free, per spec: a send
// failure does not roll back the chain.
func (s *sendHalf) lock(plaintext, extraAAD []byte) (Message, error) {
	if len(plaintext) > maxPlaintextLen(s.cipher) {
		return Message{}, ErrMessageLength
	}

	header := Header{
		PublicKey:    append([]byte(nil), s.publicKey...),
		MessageIndex: s.index,
		PreviousStep: s.prevStep,
	}
	s.index++

	buf := make([]byte, len(plaintext)+s.cipher.TagSize())
	copy(buf, plaintext)

	kb := deriveKeyBlock(s.chain, s.cipher, s.aadLen)
	aad := buildAAD(header, kb.AAD, extraAAD)
	n, err := s.cipher.SealInPlace(kb.Key, kb.Nonce, aad, buf)
	kb.Zero()
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	chain.Wipe(plaintext)
	return Message{Header: header, Data: buf[:n]}, nil
}

func (s *sendHalf) clone() *sendHalf {
	return &sendHalf{
		chain:     s.chain.Clone(),
		cipher:    s.cipher,
		aadLen:    s.aadLen,
		publicKey: append([]byte(nil), s.publicKey...),
		index:     s.index,
		prevStep:  s.prevStep,
	}
}

func (s *sendHalf) zero() {
	s.chain.Zero()
	chain.Wipe(s.publicKey)
}
