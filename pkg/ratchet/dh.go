package ratchet

import "github.com/noctane/ratchet/pkg/exchange"

// DH is the abstract X25519 Diffie-Hellman capability a Session consumes.
// It is an interface, not a concrete dependency on pkg/exchange, so a
// second implementation could be swapped in without touching the
// session state machine.
type DH interface {
	GenerateKeyPair() (priv, pub []byte, err error)
	Public(priv []byte) ([]byte, error)
	Exchange(priv, peerPublic []byte) ([]byte, error)
}

type exchangeDH struct{}

func (exchangeDH) GenerateKeyPair() ([]byte, []byte, error) {
	kp, err := exchange.NewECDH()
	if err != nil {
		return nil, nil, err
	}
	return kp.MarshalPrivateKey(), kp.MarshalPublicKey(), nil
}

func (exchangeDH) Public(priv []byte) ([]byte, error) { return exchange.PublicFromPrivate(priv) }

func (exchangeDH) Exchange(priv, peerPublic []byte) ([]byte, error) {
	return exchange.Exchange(priv, peerPublic)
}

// DefaultDH is the X25519 DH capability backed by pkg/exchange.
var DefaultDH DH = exchangeDH{}
