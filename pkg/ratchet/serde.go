package ratchet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noctane/ratchet/pkg/aead"
	"github.com/noctane/ratchet/pkg/chain"
)

// ErrInvalidState is returned by Deserialize when the encoded state is
// missing required fields or names an unregistered digest.
var ErrInvalidState = errors.New("ratchet: invalid session state")

// previousEpoch is the serializable form of one entry in RecvPreviousKeys:
// a past peer public key paired with its still-unconsumed KeyBlocks.
// Kept as a slice of structs rather than a map keyed by raw public-key
// bytes, since JSON object keys must be valid strings and a raw 32-byte
// key is not.
type previousEpoch struct {
	PublicKey []byte              `json:"public_key"`
	Keys      map[uint32]KeyBlock `json:"keys"`
}

// State is a serializable snapshot of a Session: both halves, the local
// DH secret, the role flag, and the parameters needed to reconstruct the
// chains. This is local persistence, not a wire protocol.
type State struct {
	Initiator bool   `json:"initiator"`
	LocalPriv []byte `json:"local_priv"`

	DigestName string `json:"digest_name"`
	StateSize  int    `json:"state_size"`
	Rounds     int    `json:"rounds"`
	Algorithm  int    `json:"algorithm"`
	AADLen     int    `json:"aad_len"`
	MaxSkip    int    `json:"max_skip"`

	SendPublicKey []byte `json:"send_public_key"`
	SendIndex     uint32 `json:"send_index"`
	SendPrevStep  uint32 `json:"send_prev_step"`
	SendChain     []byte `json:"send_chain"`

	RecvCurrentPK    []byte              `json:"recv_current_pk"`
	RecvDerivedCount uint32              `json:"recv_derived_count"`
	RecvChain        []byte              `json:"recv_chain"`
	RecvCurrentKeys  map[uint32]KeyBlock `json:"recv_current_keys"`
	RecvPreviousKeys []previousEpoch     `json:"recv_previous_keys"`
}

// Save captures the session's current state.
func (s *Session) Save() *State {
	previous := make([]previousEpoch, 0, len(s.recv.previousKeys))
	for pk, keys := range s.recv.previousKeys {
		previous = append(previous, previousEpoch{
			PublicKey: []byte(pk),
			Keys:      cloneKeyBlockMap(keys),
		})
	}

	return &State{
		Initiator: s.initiator,
		LocalPriv: append([]byte(nil), s.localPriv...),

		DigestName: s.params.DigestName,
		StateSize:  s.params.StateSize,
		Rounds:     s.params.Rounds,
		Algorithm:  int(s.params.Algorithm),
		AADLen:     s.params.AADLen,
		MaxSkip:    s.params.MaxSkip,

		SendPublicKey: append([]byte(nil), s.send.publicKey...),
		SendIndex:     s.send.index,
		SendPrevStep:  s.send.prevStep,
		SendChain:     s.send.chain.Export(),

		RecvCurrentPK:    append([]byte(nil), s.recv.currentPK...),
		RecvDerivedCount: s.recv.derivedCount,
		RecvChain:        s.recv.chain.Export(),
		RecvCurrentKeys:  cloneKeyBlockMap(s.recv.currentKeys),
		RecvPreviousKeys: previous,
	}
}

// Restore reconstructs a Session from a previously saved State.
func Restore(state *State, dh DH) (*Session, error) {
	if state == nil {
		return nil, ErrInvalidState
	}
	if len(state.LocalPriv) == 0 {
		return nil, fmt.Errorf("%w: missing local private key", ErrInvalidState)
	}
	digest, ok := digestRegistry[state.DigestName]
	if !ok {
		return nil, fmt.Errorf("%w: unregistered digest %q", ErrInvalidState, state.DigestName)
	}
	if dh == nil {
		dh = DefaultDH
	}

	params := Params{
		Digest:     digest,
		DigestName: state.DigestName,
		StateSize:  state.StateSize,
		Rounds:     state.Rounds,
		Algorithm:  aead.Algorithm(state.Algorithm),
		AADLen:     state.AADLen,
		MaxSkip:    state.MaxSkip,
	}
	cipher, err := params.newCipher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	cp := params.chainParams(cipher)

	sendChain, err := chain.Import(cp, state.SendChain)
	if err != nil {
		return nil, fmt.Errorf("%w: send chain: %v", ErrInvalidState, err)
	}
	recvChain, err := chain.Import(cp, state.RecvChain)
	if err != nil {
		return nil, fmt.Errorf("%w: recv chain: %v", ErrInvalidState, err)
	}

	previousKeys := make(map[string]map[uint32]KeyBlock, len(state.RecvPreviousKeys))
	for _, entry := range state.RecvPreviousKeys {
		previousKeys[string(entry.PublicKey)] = cloneKeyBlockMap(entry.Keys)
	}

	return &Session{
		send: &sendHalf{
			chain:     sendChain,
			cipher:    cipher,
			aadLen:    params.AADLen,
			publicKey: append([]byte(nil), state.SendPublicKey...),
			index:     state.SendIndex,
			prevStep:  state.SendPrevStep,
		},
		recv: &recvHalf{
			chain:        recvChain,
			cipher:       cipher,
			aadLen:       params.AADLen,
			maxSkip:      params.MaxSkip,
			currentPK:    append([]byte(nil), state.RecvCurrentPK...),
			derivedCount: state.RecvDerivedCount,
			currentKeys:  cloneKeyBlockMap(state.RecvCurrentKeys),
			previousKeys: previousKeys,
		},
		localPriv: append([]byte(nil), state.LocalPriv...),
		dh:        dh,
		params:    params,
		initiator: state.Initiator,
	}, nil
}

// Serialize encodes the session's state to JSON bytes.
func (s *Session) Serialize() ([]byte, error) {
	return json.Marshal(s.Save())
}

// Deserialize decodes a session previously produced by Serialize.
func Deserialize(data []byte, dh DH) (*Session, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("ratchet: deserialize: %w", err)
	}
	return Restore(&state, dh)
}
