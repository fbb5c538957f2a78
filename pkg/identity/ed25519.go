package identity

import (
	"crypto/rand"
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

type ed25519Signer struct {
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

func newEd25519() (Signer, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate ed25519 key: %w", err)
	}
	return &ed25519Signer{publicKey: public, privateKey: private}, nil
}

func (e *ed25519Signer) PublicKey() PublicKey {
	return &ed25519PublicKey{key: e.publicKey}
}

func (e *ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(e.privateKey, msg), nil
}

type ed25519PublicKey struct {
	key ed25519.PublicKey
}

func (p *ed25519PublicKey) Marshal() []byte {
	b, err := x509.MarshalPKIXPublicKey(p.key)
	if err != nil {
		panic(fmt.Errorf("identity: marshal ed25519 public key: %w", err))
	}
	return b
}

func (p *ed25519PublicKey) Equal(x PublicKey) bool {
	other, ok := x.(*ed25519PublicKey)
	return ok && p.key.Equal(other.key)
}

func parseEd25519PublicKey(raw []byte) (PublicKey, error) {
	pk, err := x509.ParsePKIXPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("identity: parse ed25519 public key: %w", err)
	}
	key, ok := pk.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("identity: %w: not an ed25519 key", ErrInvalidKey)
	}
	return &ed25519PublicKey{key: key}, nil
}

func verifyEd25519(p *ed25519PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(p.key, msg, sig)
}
