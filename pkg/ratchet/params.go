package ratchet

import (
	"crypto/sha256"
	"hash"

	"github.com/noctane/ratchet/pkg/aead"
	"github.com/noctane/ratchet/pkg/chain"
)

// Params configures a Session: the chain digest, its internal state size
// and round count, the AEAD algorithm, the chain-derived AAD length, and
// the skipped-key cap. Both peers must agree on these out of band; no
// digest or AEAD name travels in wire bytes.
//
// DigestName identifies Digest for serialization purposes (Go function
// values cannot be compared or marshaled); it must name an entry
// registered in digestRegistry.
type Params struct {
	Digest     func() hash.Hash
	DigestName string
	StateSize  int
	Rounds     int
	Algorithm  aead.Algorithm
	// AADLen is the length of the chain-derived AAD slice read from each
	// KeyBlock draw. May be 0.
	AADLen int
	// MaxSkip caps the number of outstanding skipped-key entries a single
	// epoch's key map may hold. 0 disables the cap.
	MaxSkip int
}

// DefaultParams returns SHA-256, a 64-byte chain state, a single HKDF
// round per draw, AES-256-GCM, no extra chain-derived AAD, and a skipped
// key cap of 1000.
func DefaultParams() Params {
	return Params{
		Digest:     sha256.New,
		DigestName: "sha256",
		StateSize:  64,
		Rounds:     1,
		Algorithm:  aead.AES256GCM,
		AADLen:     0,
		MaxSkip:    1000,
	}
}

var digestRegistry = map[string]func() hash.Hash{
	"sha256": sha256.New,
}

// RegisterDigest makes name available to Deserialize for sessions
// constructed with a custom Params.Digest/DigestName pair.
func RegisterDigest(name string, digest func() hash.Hash) {
	digestRegistry[name] = digest
}

func (p Params) chainParams(c aead.Cipher) chain.Params {
	return chain.Params{
		Digest:    p.Digest,
		StateSize: p.StateSize,
		BlockSize: c.KeySize() + c.NonceSize() + p.AADLen,
		Rounds:    p.Rounds,
	}
}

func (p Params) newCipher() (aead.Cipher, error) {
	return p.Algorithm.New()
}
