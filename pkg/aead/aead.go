// Package aead abstracts the authenticated-encryption capability the
// ratchet consumes: seal/open in place, over a selectable algorithm.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrUnknownAlgorithm is returned by Algorithm.New for an unrecognized
// Algorithm value.
var ErrUnknownAlgorithm = errors.New("aead: unknown algorithm")

// Cipher is the abstract AEAD capability spec'd for the ratchet: it
// knows nothing about chains, headers, or sessions, only how to seal and
// open byte buffers in place.
type Cipher interface {
	KeySize() int
	NonceSize() int
	TagSize() int
	// BlockSize is the alignment the underlying cipher imposes on
	// plaintext length, used only to compute the maximum single-message
	// length. None of the supported algorithms require padding, so this
	// is always 1.
	BlockSize() int

	// SealInPlace encrypts buf[:len(buf)-TagSize()] in place and
	// authenticates aad, appending the tag over buf's trailing
	// TagSize() bytes. Returns the ciphertext length (== len(buf)).
	SealInPlace(key, nonce, aad, buf []byte) (int, error)
	// OpenInPlace authenticates and decrypts buf in place, where buf
	// holds ciphertext followed by its tag. Returns the plaintext
	// length.
	OpenInPlace(key, nonce, aad, buf []byte) (int, error)
}

// Algorithm selects one of the supported AEAD constructions.
type Algorithm int

const (
	invalidAlgorithm Algorithm = iota
	AES128GCM
	AES256GCM
	ChaCha20Poly1305
)

// String returns the algorithm's name.
func (a Algorithm) String() string {
	switch a {
	case AES128GCM:
		return "aes-128-gcm"
	case AES256GCM:
		return "aes-256-gcm"
	case ChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "invalid"
	}
}

// New constructs the Cipher for this algorithm.
func (a Algorithm) New() (Cipher, error) {
	switch a {
	case AES128GCM:
		return &gcmCipher{keySize: 16}, nil
	case AES256GCM:
		return &gcmCipher{keySize: 32}, nil
	case ChaCha20Poly1305:
		return chachaCipher{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, a)
	}
}

type gcmCipher struct {
	keySize int
}

func (g *gcmCipher) KeySize() int   { return g.keySize }
func (g *gcmCipher) NonceSize() int { return 12 }
func (g *gcmCipher) TagSize() int   { return 16 }
func (g *gcmCipher) BlockSize() int { return 1 }

func (g *gcmCipher) open(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (g *gcmCipher) SealInPlace(key, nonce, aad, buf []byte) (int, error) {
	a, err := g.open(key)
	if err != nil {
		return 0, err
	}
	plaintext := buf[:len(buf)-a.Overhead()]
	ct := a.Seal(plaintext[:0], nonce, plaintext, aad)
	return len(ct), nil
}

func (g *gcmCipher) OpenInPlace(key, nonce, aad, buf []byte) (int, error) {
	a, err := g.open(key)
	if err != nil {
		return 0, err
	}
	pt, err := a.Open(buf[:0], nonce, buf, aad)
	if err != nil {
		return 0, fmt.Errorf("aead: gcm open: %w", err)
	}
	return len(pt), nil
}

type chachaCipher struct{}

func (chachaCipher) KeySize() int   { return chacha20poly1305.KeySize }
func (chachaCipher) NonceSize() int { return chacha20poly1305.NonceSize }
func (chachaCipher) TagSize() int   { return chacha20poly1305.Overhead }
func (chachaCipher) BlockSize() int { return 1 }

func (chachaCipher) SealInPlace(key, nonce, aad, buf []byte) (int, error) {
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return 0, fmt.Errorf("aead: chacha20poly1305: %w", err)
	}
	plaintext := buf[:len(buf)-a.Overhead()]
	ct := a.Seal(plaintext[:0], nonce, plaintext, aad)
	return len(ct), nil
}

func (chachaCipher) OpenInPlace(key, nonce, aad, buf []byte) (int, error) {
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return 0, fmt.Errorf("aead: chacha20poly1305: %w", err)
	}
	pt, err := a.Open(buf[:0], nonce, buf, aad)
	if err != nil {
		return 0, fmt.Errorf("aead: chacha20poly1305 open: %w", err)
	}
	return len(pt), nil
}
