// Package exchange provides the X25519 Diffie-Hellman capability the
// ratchet treats as an abstract primitive: generate a key pair, marshal
// its public half, and compute a shared secret with a peer's public key.
package exchange

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrInvalidKey is returned when a marshaled key cannot be parsed as an
// X25519 key of the expected length.
var ErrInvalidKey = errors.New("exchange: invalid key")

// PublicKeySize and PrivateKeySize are the raw, wire-format sizes of an
// X25519 key. The ratchet's Header embeds the public key directly, so
// keys are marshaled as raw bytes rather than DER/PKIX-wrapped.
const (
	PublicKeySize  = 32
	PrivateKeySize = 32
)

type ECDH struct {
	PublicKey  *ecdh.PublicKey
	privateKey *ecdh.PrivateKey
}

// MarshalPublicKey returns the raw 32-byte public key.
func (e *ECDH) MarshalPublicKey() []byte {
	return append([]byte(nil), e.PublicKey.Bytes()...)
}

// MarshalPrivateKey returns the raw 32-byte private scalar.
func (e *ECDH) MarshalPrivateKey() []byte {
	return e.privateKey.Bytes()
}

// Exchange computes the X25519 shared secret with a peer's raw 32-byte
// public key.
func (e *ECDH) Exchange(remote []byte) ([]byte, error) {
	pub, err := ecdh.X25519().NewPublicKey(remote)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	secret, err := e.privateKey.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("performing ecdh exchange: %w", err)
	}

	return secret, nil
}

// PublicFromPrivate derives the raw 32-byte public key that corresponds
// to a raw 32-byte X25519 private scalar, with no shared-secret
// computation involved.
func PublicFromPrivate(priv []byte) ([]byte, error) {
	key, err := ecdh.X25519().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key.PublicKey().Bytes(), nil
}

// Exchange computes the X25519 shared secret between a raw 32-byte
// private scalar and a peer's raw 32-byte public key, without needing an
// *ECDH wrapping the local key pair.
func Exchange(priv, peerPublic []byte) ([]byte, error) {
	privKey, err := ecdh.X25519().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	pubKey, err := ecdh.X25519().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	secret, err := privKey.ECDH(pubKey)
	if err != nil {
		return nil, fmt.Errorf("performing ecdh exchange: %w", err)
	}
	return secret, nil
}

// NewECDH generates a fresh X25519 key pair.
func NewECDH() (*ECDH, error) {
	key, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &ECDH{privateKey: key, PublicKey: key.PublicKey()}, nil
}

// RestoreECDH reconstructs an ECDH keypair from raw serialized private and
// public key bytes.
func RestoreECDH(privBytes, pubBytes []byte) (*ECDH, error) {
	privKey, err := ecdh.X25519().NewPrivateKey(privBytes)
	if err != nil {
		return nil, fmt.Errorf("restoring private key: %w", err)
	}

	pubKey, err := ecdh.X25519().NewPublicKey(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &ECDH{
		privateKey: privKey,
		PublicKey:  pubKey,
	}, nil
}
