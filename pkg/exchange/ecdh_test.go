package exchange_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noctane/ratchet/pkg/exchange"
)

func TestECDH_SharedSecretMatches(t *testing.T) {
	a := require.New(t)

	alice, err := exchange.NewECDH()
	a.NoError(err)
	bob, err := exchange.NewECDH()
	a.NoError(err)

	s1, err := alice.Exchange(bob.MarshalPublicKey())
	a.NoError(err)
	s2, err := bob.Exchange(alice.MarshalPublicKey())
	a.NoError(err)

	a.Equal(s1, s2)
}

func TestECDH_MarshalPublicKeyIsRaw32Bytes(t *testing.T) {
	a := require.New(t)

	kp, err := exchange.NewECDH()
	a.NoError(err)

	a.Len(kp.MarshalPublicKey(), exchange.PublicKeySize)
	a.Len(kp.MarshalPrivateKey(), exchange.PrivateKeySize)
}

func TestRestoreECDH_RoundTrip(t *testing.T) {
	a := require.New(t)

	kp, err := exchange.NewECDH()
	a.NoError(err)

	restored, err := exchange.RestoreECDH(kp.MarshalPrivateKey(), kp.MarshalPublicKey())
	a.NoError(err)

	peer, err := exchange.NewECDH()
	a.NoError(err)

	s1, err := kp.Exchange(peer.MarshalPublicKey())
	a.NoError(err)
	s2, err := restored.Exchange(peer.MarshalPublicKey())
	a.NoError(err)
	a.Equal(s1, s2)
}

func TestECDH_ExchangeRejectsInvalidKey(t *testing.T) {
	a := require.New(t)

	kp, err := exchange.NewECDH()
	a.NoError(err)

	_, err = kp.Exchange([]byte("too short"))
	a.ErrorIs(err, exchange.ErrInvalidKey)
}

func TestPublicFromPrivate_MatchesGeneratedPair(t *testing.T) {
	a := require.New(t)

	kp, err := exchange.NewECDH()
	a.NoError(err)

	pub, err := exchange.PublicFromPrivate(kp.MarshalPrivateKey())
	a.NoError(err)
	a.Equal(kp.MarshalPublicKey(), pub)
}

func TestExchange_MatchesECDHMethod(t *testing.T) {
	a := require.New(t)

	alice, err := exchange.NewECDH()
	a.NoError(err)
	bob, err := exchange.NewECDH()
	a.NoError(err)

	s1, err := exchange.Exchange(alice.MarshalPrivateKey(), bob.MarshalPublicKey())
	a.NoError(err)
	s2, err := alice.Exchange(bob.MarshalPublicKey())
	a.NoError(err)
	a.Equal(s1, s2)
}

func TestPublicFromPrivate_RejectsInvalidKey(t *testing.T) {
	a := require.New(t)

	_, err := exchange.PublicFromPrivate([]byte("too short"))
	a.ErrorIs(err, exchange.ErrInvalidKey)
}
