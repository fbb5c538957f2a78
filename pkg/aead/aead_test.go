package aead_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noctane/ratchet/pkg/aead"
)

func TestAlgorithms_SealOpenRoundTrip(t *testing.T) {
	for _, alg := range []aead.Algorithm{aead.AES128GCM, aead.AES256GCM, aead.ChaCha20Poly1305} {
		t.Run(alg.String(), func(t *testing.T) {
			a := require.New(t)

			c, err := alg.New()
			a.NoError(err)

			key := make([]byte, c.KeySize())
			_, _ = rand.Read(key)
			nonce := make([]byte, c.NonceSize())
			_, _ = rand.Read(nonce)
			aadBytes := []byte("associated data")

			plaintext := []byte("the quick brown fox jumps over the lazy dog")
			buf := make([]byte, len(plaintext)+c.TagSize())
			copy(buf, plaintext)

			n, err := c.SealInPlace(key, nonce, aadBytes, buf)
			a.NoError(err)
			ciphertext := buf[:n]
			a.NotEqual(plaintext, ciphertext[:len(plaintext)])

			n, err = c.OpenInPlace(key, nonce, aadBytes, ciphertext)
			a.NoError(err)
			a.Equal(plaintext, ciphertext[:n])
		})
	}
}

func TestAlgorithms_TamperRejected(t *testing.T) {
	for _, alg := range []aead.Algorithm{aead.AES128GCM, aead.AES256GCM, aead.ChaCha20Poly1305} {
		t.Run(alg.String(), func(t *testing.T) {
			a := require.New(t)

			c, err := alg.New()
			a.NoError(err)

			key := make([]byte, c.KeySize())
			_, _ = rand.Read(key)
			nonce := make([]byte, c.NonceSize())
			_, _ = rand.Read(nonce)

			plaintext := []byte("hello, ratchet")
			buf := make([]byte, len(plaintext)+c.TagSize())
			copy(buf, plaintext)
			n, err := c.SealInPlace(key, nonce, nil, buf)
			a.NoError(err)
			ciphertext := buf[:n]
			ciphertext[0] ^= 0xFF

			_, err = c.OpenInPlace(key, nonce, nil, ciphertext)
			a.Error(err)
		})
	}
}

func TestAlgorithm_Unknown(t *testing.T) {
	a := require.New(t)

	_, err := aead.Algorithm(99).New()
	a.ErrorIs(err, aead.ErrUnknownAlgorithm)
}
