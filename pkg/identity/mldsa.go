package identity

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// ErrInvalidKey is returned when a marshaled public key does not decode
// under the requested algorithm.
var ErrInvalidKey = errors.New("invalid key")

type mldsaSigner struct {
	publicKey  *mldsa65.PublicKey
	privateKey *mldsa65.PrivateKey
}

func newMLDSA() (Signer, error) {
	public, private, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate mldsa key: %w", err)
	}
	return &mldsaSigner{publicKey: public, privateKey: private}, nil
}

func (m *mldsaSigner) PublicKey() PublicKey {
	return &mldsaPublicKey{key: m.publicKey}
}

func (m *mldsaSigner) Sign(msg []byte) ([]byte, error) {
	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(m.privateKey, msg, nil, true, sig); err != nil {
		return nil, fmt.Errorf("identity: sign: %w", err)
	}
	return sig, nil
}

type mldsaPublicKey struct {
	key *mldsa65.PublicKey
}

func (p *mldsaPublicKey) Marshal() []byte {
	b, err := p.key.MarshalBinary()
	if err != nil {
		panic(fmt.Errorf("identity: marshal mldsa public key: %w", err))
	}
	return b
}

func (p *mldsaPublicKey) Equal(x PublicKey) bool {
	other, ok := x.(*mldsaPublicKey)
	return ok && p.key.Equal(other.key)
}

func parseMLDSAPublicKey(raw []byte) (PublicKey, error) {
	pk, err := mldsa65.Scheme().UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("identity: %w: %v", ErrInvalidKey, err)
	}
	key, ok := pk.(*mldsa65.PublicKey)
	if !ok {
		return nil, fmt.Errorf("identity: %w: not an mldsa key", ErrInvalidKey)
	}
	return &mldsaPublicKey{key: key}, nil
}

func verifyMLDSA(p *mldsaPublicKey, msg, sig []byte) bool {
	return mldsa65.Verify(p.key, msg, nil, sig)
}
