package identity

import "fmt"

// PublicKey is a long-term identity public key, algorithm-agnostic from
// the caller's point of view.
type PublicKey interface {
	Marshal() []byte
	Equal(PublicKey) bool
}

// Signer is a long-term identity keypair capable of signing arbitrary
// messages (in practice, a session's initial DH public key, so the peer
// can authenticate it out-of-band).
type Signer interface {
	PublicKey() PublicKey
	Sign(msg []byte) ([]byte, error)
}

// New generates a fresh Signer for the given algorithm.
func New(alg Algorithm) (Signer, error) {
	switch alg {
	case Ed25519Algorithm:
		return newEd25519()
	case MLDSAAlgorithm:
		return newMLDSA()
	default:
		return nil, fmt.Errorf("identity: unknown algorithm %d", alg)
	}
}

// ParsePublicKey decodes a marshaled public key previously produced by
// PublicKey.Marshal for the given algorithm.
func ParsePublicKey(alg Algorithm, raw []byte) (PublicKey, error) {
	switch alg {
	case Ed25519Algorithm:
		return parseEd25519PublicKey(raw)
	case MLDSAAlgorithm:
		return parseMLDSAPublicKey(raw)
	default:
		return nil, fmt.Errorf("identity: unknown algorithm %d", alg)
	}
}

// Verify checks sig against msg under pub, for the given algorithm. It
// returns false (never panics) if pub was produced by a different
// algorithm than alg names.
func Verify(alg Algorithm, pub PublicKey, msg, sig []byte) bool {
	switch alg {
	case Ed25519Algorithm:
		p, ok := pub.(*ed25519PublicKey)
		return ok && verifyEd25519(p, msg, sig)
	case MLDSAAlgorithm:
		p, ok := pub.(*mldsaPublicKey)
		return ok && verifyMLDSA(p, msg, sig)
	default:
		return false
	}
}
