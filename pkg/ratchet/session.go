// Package ratchet implements the Double Ratchet session state machine: a
// pair of key-derivation chains (send/Locker, receive/Opener), DH
// ratchet-step detection and execution, skipped-message bookkeeping, and
// atomic rollback of all session state when a received message fails
// authentication.
package ratchet

import (
	"bytes"
	"fmt"

	"github.com/noctane/ratchet/pkg/chain"
)

// Session composes a SendHalf and RecvHalf, the local DH secret, and the
// role flag that decides chain-reseed order during establishment and
// every subsequent ratchet step. Role is constant for the session's
// lifetime.
type Session struct {
	send      *sendHalf
	recv      *recvHalf
	localPriv []byte
	dh        DH
	params    Params
	initiator bool
}

// chainReader adapts a *chain.State to io.Reader by drawing successive
// Fill blocks from it, so a chain can reseed another chain via
// chain.New/chain.State.Reseed.
type chainReader struct{ s *chain.State }

func (c chainReader) Read(p []byte) (int, error) {
	c.s.Fill(p)
	return len(p), nil
}

// Initiate establishes a session as the initiator: at establishment the
// send chain is reseeded from the bootstrap PRNG before the receive
// chain (a later ratchet step reverses this, reseeding the receive chain
// first). myPrivate becomes the session's epoch-0 local DH secret
// directly — its public half is what peerPublic's owner must see in
// epoch-0 message headers, so no fresh keypair is generated at
// establishment time (a fresh keypair is generated only by Rekey).
func Initiate(peerPublic, myPrivate []byte, params Params, dh DH) (*Session, error) {
	return establish(peerPublic, myPrivate, params, dh, true)
}

// Accept establishes a session as the responder: the receive chain is
// reseeded before the send chain, the mirror image of Initiate, so the
// two ends' chains line up.
func Accept(peerPublic, myPrivate []byte, params Params, dh DH) (*Session, error) {
	return establish(peerPublic, myPrivate, params, dh, false)
}

func establish(peerPublic, myPrivate []byte, params Params, dh DH, initiator bool) (*Session, error) {
	if dh == nil {
		dh = DefaultDH
	}
	cipher, err := params.newCipher()
	if err != nil {
		return nil, fmt.Errorf("ratchet: establish: %w", err)
	}

	shared, err := dh.Exchange(myPrivate, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("ratchet: establish: %w", err)
	}

	cp := params.chainParams(cipher)
	bootstrap, err := chain.FromSeedBytes(cp, shared)
	if err != nil {
		return nil, fmt.Errorf("ratchet: establish bootstrap chain: %w", err)
	}

	myPublic, err := dh.Public(myPrivate)
	if err != nil {
		return nil, fmt.Errorf("ratchet: establish local public key: %w", err)
	}

	sendChain, recvChain, err := reseedPair(cp, bootstrap, initiator)
	if err != nil {
		return nil, fmt.Errorf("ratchet: establish chains: %w", err)
	}
	bootstrap.Zero()

	s := &Session{
		send: &sendHalf{
			chain:     sendChain,
			cipher:    cipher,
			aadLen:    params.AADLen,
			publicKey: myPublic,
			index:     0,
			prevStep:  0,
		},
		recv: &recvHalf{
			chain:        recvChain,
			cipher:       cipher,
			aadLen:       params.AADLen,
			maxSkip:      params.MaxSkip,
			currentPK:    append([]byte(nil), peerPublic...),
			derivedCount: 0,
			currentKeys:  make(map[uint32]KeyBlock),
			previousKeys: make(map[string]map[uint32]KeyBlock),
		},
		localPriv: append([]byte(nil), myPrivate...),
		dh:        dh,
		params:    params,
		initiator: initiator,
	}
	return s, nil
}

// reseedPair draws two fresh chains from reader in the role-dependent
// order: send-then-receive for the initiator, receive-then-send for the
// responder. It is used both at establishment and at every ratchet step.
func reseedPair(cp chain.Params, bootstrap *chain.State, initiator bool) (sendChain, recvChain *chain.State, err error) {
	reader := chainReader{bootstrap}
	if initiator {
		if sendChain, err = chain.New(cp, reader); err != nil {
			return nil, nil, err
		}
		if recvChain, err = chain.New(cp, reader); err != nil {
			return nil, nil, err
		}
		return sendChain, recvChain, nil
	}
	if recvChain, err = chain.New(cp, reader); err != nil {
		return nil, nil, err
	}
	if sendChain, err = chain.New(cp, reader); err != nil {
		return nil, nil, err
	}
	return sendChain, recvChain, nil
}

// Lock seals plaintext for the peer. extraAAD, if non-nil, is appended
// after the header-derived associated data. Zeros plaintext on success.
func (s *Session) Lock(plaintext, extraAAD []byte) (Message, error) {
	return s.send.lock(plaintext, extraAAD)
}

// Open decrypts msg, appending the recovered plaintext to out and
// returning the extended slice. On failure it returns an *OpenError
// wrapping the original message so the caller may re-queue it; session
// state is left byte-identical to its pre-call state in that case.
func (s *Session) Open(msg Message, out, extraAAD []byte) ([]byte, error) {
	switch {
	case bytes.Equal(msg.Header.PublicKey, s.recv.currentPK):
		return s.openCaseA(msg, out, extraAAD)
	default:
		if inner, ok := s.recv.previousKeys[string(msg.Header.PublicKey)]; ok {
			return s.openCaseB(inner, msg, out, extraAAD)
		}
		return s.openCaseC(msg, out, extraAAD)
	}
}

// openCaseA handles a message under the current epoch: backfilling
// skipped keys up to and including the message's index if necessary,
// then opening it.
func (s *Session) openCaseA(msg Message, out, extraAAD []byte) ([]byte, error) {
	var chainSnap *chain.State
	countSnap := s.recv.derivedCount
	rollback := func() {
		for idx, kb := range s.recv.currentKeys {
			if idx >= countSnap {
				kb.Zero()
				delete(s.recv.currentKeys, idx)
			}
		}
		s.recv.chain.Zero()
		s.recv.chain = chainSnap
		s.recv.derivedCount = countSnap
	}
	if msg.Header.MessageIndex >= s.recv.derivedCount {
		chainSnap = s.recv.chain.Clone()
		if err := s.recv.deriveRange(s.recv.derivedCount, msg.Header.MessageIndex+1); err != nil {
			rollback()
			return nil, &OpenError{Err: err, Message: msg}
		}
	}
	pt, err := openOne(s.recv.cipher, s.recv.currentKeys, msg.Header.MessageIndex, msg, out, extraAAD)
	if err != nil {
		if chainSnap != nil {
			rollback()
		}
		return nil, &OpenError{Err: err, Message: msg}
	}
	if chainSnap != nil {
		chainSnap.Zero()
	}
	return pt, nil
}

// openCaseB handles a message from a known past epoch: no ratchet step,
// no chain advancement, just a lookup into that epoch's key table.
func (s *Session) openCaseB(keys map[uint32]KeyBlock, msg Message, out, extraAAD []byte) ([]byte, error) {
	pt, err := openOne(s.recv.cipher, keys, msg.Header.MessageIndex, msg, out, extraAAD)
	if err != nil {
		return nil, &OpenError{Err: err, Message: msg}
	}
	return pt, nil
}

// openCaseC handles a message announcing a new epoch: it snapshots every
// field the ratchet step will touch, attempts the step, and restores the
// snapshot atomically if anything along the way — including the final
// decrypt — fails.
func (s *Session) openCaseC(msg Message, out, extraAAD []byte) ([]byte, error) {
	sendSnap := s.send.clone()
	recvChainSnap := s.recv.chain.Clone()
	derivedCountSnap := s.recv.derivedCount
	currentPKSnap := append([]byte(nil), s.recv.currentPK...)
	currentKeysSnap := cloneKeyBlockMap(s.recv.currentKeys)
	previousKeysSnap := make(map[string]map[uint32]KeyBlock, len(s.recv.previousKeys))
	for pk, inner := range s.recv.previousKeys {
		previousKeysSnap[pk] = inner
	}

	pt, err := s.doRatchetStep(msg, out, extraAAD)
	if err != nil {
		s.send.zero()
		s.send = sendSnap

		s.recv.chain.Zero()
		s.recv.chain = recvChainSnap
		s.recv.derivedCount = derivedCountSnap

		chain.Wipe(s.recv.currentPK)
		s.recv.currentPK = currentPKSnap

		zeroKeyBlockMap(s.recv.currentKeys)
		s.recv.currentKeys = currentKeysSnap

		for pk, inner := range s.recv.previousKeys {
			if _, ok := previousKeysSnap[pk]; !ok {
				zeroKeyBlockMap(inner)
			}
		}
		s.recv.previousKeys = previousKeysSnap

		return nil, err
	}
	return pt, nil
}

// doRatchetStep performs the DH ratchet step: archives the old epoch's
// unconsumed tail, installs the peer's new public key as the current
// epoch, and reseeds both chains from a shared secret computed with the
// local DH secret that is already paired with our own advertised send
// key (s.localPriv) — not a freshly generated one. The peer, to produce
// the message we are decrypting, necessarily used our own already-known
// public key on their end of this same DH; matching that requires our
// existing secret, not a new one (a new local secret's public half has
// never been shown to the peer, so a shared secret derived from it could
// not possibly agree with whatever the peer actually used). Our own
// identity (s.localPriv / s.send.publicKey) does not change here; it
// only rotates via an explicit Rekey call.
func (s *Session) doRatchetStep(msg Message, out, extraAAD []byte) ([]byte, error) {
	if err := s.recv.deriveRange(s.recv.derivedCount, msg.Header.PreviousStep); err != nil {
		return nil, err
	}

	oldPK := string(s.recv.currentPK)
	s.recv.previousKeys[oldPK] = s.recv.currentKeys

	s.recv.currentPK = append([]byte(nil), msg.Header.PublicKey...)
	s.recv.derivedCount = 0
	s.recv.currentKeys = make(map[uint32]KeyBlock)

	shared, err := s.dh.Exchange(s.localPriv, msg.Header.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("ratchet: ratchet step exchange: %w", err)
	}

	cp := s.params.chainParams(s.send.cipher)
	bootstrap, err := chain.FromSeedBytes(cp, shared)
	if err != nil {
		return nil, fmt.Errorf("ratchet: ratchet step bootstrap: %w", err)
	}

	// Receive-first if initiator, send-first if responder: the mirror
	// image of establish's reseed order. reseedPair always returns
	// (sendChain, recvChain); passing !s.initiator flips which one it
	// draws from the bootstrap reader first.
	sendChain, recvChain, err := reseedPair(cp, bootstrap, !s.initiator)
	if err != nil {
		return nil, fmt.Errorf("ratchet: ratchet step reseed: %w", err)
	}
	bootstrap.Zero()

	// s.localPriv and s.send.publicKey are left untouched: our own
	// advertised identity only changes through an explicit Rekey, never
	// as a side effect of reacting to the peer's. Replacing s.localPriv
	// here with a freshly generated secret would desynchronize it from
	// s.send.publicKey (which does NOT change), and a second consecutive
	// reactive step would then derive its shared secret from a key the
	// peer never saw. Only the chains and epoch counters change.
	s.send.chain = sendChain
	s.recv.chain = recvChain
	s.send.prevStep = s.send.index
	s.send.index = 0

	return s.openCaseA(msg, out, extraAAD)
}

// Rekey voluntarily rotates this session's local DH secret and
// re-derives its send chain against the peer's current public key,
// without waiting for the peer to do so first. This is the proactive
// half of the asymmetric ratchet: spec.md's overview describes each
// side generating a new DH key pair "whenever the remote side does",
// but the reactive ratchet step alone never has anything to react to
// until one side rotates first. An application calls Rekey
// periodically (or after a suspected compromise) to supply that first
// move; the peer then ratchets reactively, via the normal case-C path,
// the next time it opens a message carrying the new public key.
//
// Only the send chain is replaced — the peer's epoch hasn't changed,
// so messages it is still sending under its current key must keep
// decrypting normally until the peer reacts to ours. The bootstrap
// still yields a paired (send, receive) draw, in the same order
// doRatchetStep uses, so the discarded receive draw lines up at the
// position the peer's own doRatchetStep will later derive its send
// chain from — only the draw this session actually keeps matters here.
func (s *Session) Rekey() error {
	newPriv, newPub, err := s.dh.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("ratchet: rekey: %w", err)
	}

	shared, err := s.dh.Exchange(newPriv, s.recv.currentPK)
	if err != nil {
		return fmt.Errorf("ratchet: rekey: %w", err)
	}

	cp := s.params.chainParams(s.send.cipher)
	bootstrap, err := chain.FromSeedBytes(cp, shared)
	if err != nil {
		return fmt.Errorf("ratchet: rekey bootstrap: %w", err)
	}
	sendChain, discardChain, err := reseedPair(cp, bootstrap, !s.initiator)
	if err != nil {
		return fmt.Errorf("ratchet: rekey reseed: %w", err)
	}
	bootstrap.Zero()
	discardChain.Zero()

	s.send.chain.Zero()
	s.send.chain = sendChain
	s.send.publicKey = newPub
	s.send.prevStep = s.send.index
	s.send.index = 0

	chain.Wipe(s.localPriv)
	s.localPriv = newPriv
	return nil
}

// Zero destroys the session, clearing all key material. The session must
// not be used afterward.
func (s *Session) Zero() {
	s.send.zero()
	s.recv.zero()
	chain.Wipe(s.localPriv)
}
