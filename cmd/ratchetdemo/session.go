package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/noctane/ratchet/pkg/fingerprint"
	"github.com/noctane/ratchet/pkg/identity"
	"github.com/noctane/ratchet/pkg/ratchet"
)

// establishedSession is the result of the out-of-band introduction:
// a live ratchet.Session plus the peer's verified long-term identity,
// used as the store key for persisting and resuming that session.
type establishedSession struct {
	session *ratchet.Session
	peerID  []byte
}

// establish runs the plaintext introduce exchange over conn, verifies
// the peer's signature on their advertised DH public key, prompts for
// manual fingerprint confirmation, and establishes a ratchet.Session in
// the given role. It never performs key agreement itself — identity
// only authenticates the DH key the session is told about.
func establish(conn net.Conn, alg identity.Algorithm, initiator bool, in *bufio.Reader) (establishedSession, error) {
	signer, err := identity.New(alg)
	if err != nil {
		return establishedSession{}, fmt.Errorf("generating identity: %w", err)
	}

	dhPriv, dhPub, err := ratchet.DefaultDH.GenerateKeyPair()
	if err != nil {
		return establishedSession{}, fmt.Errorf("generating dh keypair: %w", err)
	}

	sig, err := signer.Sign(dhPub)
	if err != nil {
		return establishedSession{}, fmt.Errorf("signing dh public key: %w", err)
	}

	connReader := bufio.NewReader(conn)
	if err := sendIntroduce(conn, introduce{
		dhPublicKey:       dhPub,
		identityAlgorithm: alg,
		identityPublicKey: signer.PublicKey().Marshal(),
		signature:         sig,
	}); err != nil {
		return establishedSession{}, fmt.Errorf("sending introduction: %w", err)
	}
	peerIntro, err := recvIntroduce(connReader)
	if err != nil {
		return establishedSession{}, fmt.Errorf("receiving introduction: %w", err)
	}

	peerPub, err := identity.ParsePublicKey(peerIntro.identityAlgorithm, peerIntro.identityPublicKey)
	if err != nil {
		return establishedSession{}, fmt.Errorf("parsing peer identity: %w", err)
	}
	if !identity.Verify(peerIntro.identityAlgorithm, peerPub, peerIntro.dhPublicKey, peerIntro.signature) {
		return establishedSession{}, fmt.Errorf("peer signature over their dh public key did not verify")
	}

	if !confirmFingerprint(in, peerIntro.identityPublicKey) {
		return establishedSession{}, fmt.Errorf("fingerprint not confirmed, aborting")
	}

	var sess *ratchet.Session
	if initiator {
		sess, err = ratchet.Initiate(peerIntro.dhPublicKey, dhPriv, ratchet.DefaultParams(), nil)
	} else {
		sess, err = ratchet.Accept(peerIntro.dhPublicKey, dhPriv, ratchet.DefaultParams(), nil)
	}
	if err != nil {
		return establishedSession{}, fmt.Errorf("establishing session: %w", err)
	}

	return establishedSession{session: sess, peerID: peerIntro.identityPublicKey}, nil
}

// confirmFingerprint renders identityKey as an emoji fingerprint and
// asks the operator to confirm it matches what the peer reports over an
// independent channel, the same manual-verification step spec.md leaves
// to the embedding application.
func confirmFingerprint(in *bufio.Reader, identityKey []byte) bool {
	fmt.Printf("Peer identity fingerprint: %s\n", strings.Join(fingerprint.Emoji(identityKey), " "))
	fmt.Print("Does this match what your peer reports (y/N)? ")
	line, _ := in.ReadString('\n')
	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "y" || answer == "yes"
}
