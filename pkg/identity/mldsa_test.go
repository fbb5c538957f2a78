package identity_test

import (
	"crypto/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noctane/ratchet/pkg/identity"
)

func TestMLDSA(t *testing.T) {
	a := require.New(t)
	msg := []byte(rand.Text())

	m, err := identity.New(identity.MLDSAAlgorithm)
	a.NoError(err)
	a.NotNil(m)
	pub := m.PublicKey()
	a.NotNil(pub)
	sig, err := m.Sign(msg)
	a.NoError(err)
	a.NotNil(sig)

	t.Run("valid signature", func(t *testing.T) {
		a.True(identity.Verify(identity.MLDSAAlgorithm, pub, msg, sig))
	})
	t.Run("invalid signature", func(t *testing.T) {
		tampered := slices.Clone(sig)
		tampered[0] ^= 0xFF
		a.False(identity.Verify(identity.MLDSAAlgorithm, pub, msg, tampered))
	})
	t.Run("invalid message", func(t *testing.T) {
		tampered := append(slices.Clone(msg), '!')
		a.False(identity.Verify(identity.MLDSAAlgorithm, pub, tampered, sig))
	})
	t.Run("invalid public key", func(t *testing.T) {
		another, err := identity.New(identity.MLDSAAlgorithm)
		a.NoError(err)
		a.False(identity.Verify(identity.MLDSAAlgorithm, another.PublicKey(), msg, sig))
	})
	t.Run("marshal round trip", func(t *testing.T) {
		parsed, err := identity.ParsePublicKey(identity.MLDSAAlgorithm, pub.Marshal())
		a.NoError(err)
		a.True(pub.Equal(parsed))
	})
	t.Run("wrong algorithm at verify time", func(t *testing.T) {
		a.False(identity.Verify(identity.Ed25519Algorithm, pub, msg, sig))
	})
}
