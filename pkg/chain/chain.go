// Package chain implements the HKDF-based ratchet PRNG that backs both
// sides of a Double Ratchet session: a deterministic, reseedable,
// cryptographically secure stream of key material.
package chain

import (
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidParams is returned when a Params value fails validation.
	ErrInvalidParams = errors.New("chain: invalid params")
	// ErrOutputBound is returned when S+O would exceed HKDF's intrinsic
	// expansion limit of 255 times the digest's output size.
	ErrOutputBound = errors.New("chain: state+output size exceeds HKDF expansion bound")
)

// Params parameterizes a chain: the digest, the internal state size S (in
// bytes), the per-draw output block size O, and the round count R.
type Params struct {
	Digest    func() hash.Hash
	StateSize int
	BlockSize int // O, the output block size of a single draw
	Rounds    int
}

// DefaultParams returns a SHA-256 based chain with a 64-byte state (one
// SHA-256 block) producing 32-byte blocks in a single round. SHA-256 is
// the safer default for new implementations; the original scheme used
// SHA-1.
func DefaultParams() Params {
	return Params{
		Digest:    defaultDigest,
		StateSize: 64,
		BlockSize: 32,
		Rounds:    1,
	}
}

func (p Params) validate() error {
	if p.Digest == nil {
		return fmt.Errorf("%w: nil digest", ErrInvalidParams)
	}
	h := p.Digest()
	if p.StateSize < h.BlockSize() {
		return fmt.Errorf(
			"%w: state size %d smaller than digest block size %d",
			ErrInvalidParams, p.StateSize, h.BlockSize(),
		)
	}
	if p.Rounds < 1 {
		return fmt.Errorf("%w: rounds must be >= 1, got %d", ErrInvalidParams, p.Rounds)
	}
	if p.BlockSize <= 0 {
		return fmt.Errorf("%w: block size must be > 0", ErrInvalidParams)
	}
	bound := 255 * h.Size()
	if p.StateSize+p.BlockSize > bound {
		return fmt.Errorf(
			"%w: %d+%d > %d", ErrOutputBound, p.StateSize, p.BlockSize, bound,
		)
	}
	return nil
}

// State is a single chain's current state: S opaque bytes, split on each
// draw into an HKDF salt (the prefix) and IKM (the trailing digest-block
// sized suffix).
type State struct {
	params Params
	state  []byte
}

// New constructs a chain seeded from rng.
func New(params Params, rng io.Reader) (*State, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	s := &State{params: params, state: make([]byte, params.StateSize)}
	if err := s.Reseed(rng); err != nil {
		return nil, err
	}
	return s, nil
}

// FromSeedBytes initializes state from up to StateSize caller-provided
// bytes, zero-padding if shorter. The input buffer is zeroed on return,
// per the spec's "cleared on destruction" requirement for seed material.
func FromSeedBytes(params Params, seed []byte) (*State, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	s := &State{params: params, state: make([]byte, params.StateSize)}
	copy(s.state, seed)
	Wipe(seed)
	return s, nil
}

// Reseed overwrites the state from rng.
func (s *State) Reseed(rng io.Reader) error {
	if _, err := io.ReadFull(rng, s.state); err != nil {
		return fmt.Errorf("chain: reseed: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the chain, including its current state.
// Cloning is the only supported way to restart a chain, by keeping the
// clone untouched while the original continues to advance.
func (s *State) Clone() *State {
	return &State{
		params: s.params,
		state:  append([]byte(nil), s.state...),
	}
}

// Export returns a copy of the chain's raw state bytes, for persistence.
func (s *State) Export() []byte {
	return append([]byte(nil), s.state...)
}

// Params returns the chain's parameters.
func (s *State) Params() Params {
	return s.params
}

// Import reconstructs a chain from raw state bytes previously produced by
// Export. Unlike FromSeedBytes, data must be exactly params.StateSize
// bytes: this is a restore of exact internal state, not a reseed.
func Import(params Params, data []byte) (*State, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(data) != params.StateSize {
		return nil, fmt.Errorf(
			"%w: expected %d state bytes, got %d",
			ErrInvalidParams, params.StateSize, len(data),
		)
	}
	return &State{params: params, state: append([]byte(nil), data...)}, nil
}

// Zero clears the chain's state. The chain must not be used afterward.
func (s *State) Zero() {
	Wipe(s.state)
}

// round performs a single HKDF-Extract/Expand step, replacing the first
// StateSize bytes of the output with the new state and returning the
// trailing BlockSize bytes as this round's output.
func (s *State) round() []byte {
	blockSize := s.params.Digest().BlockSize()
	salt := s.state[:len(s.state)-blockSize]
	ikm := s.state[len(s.state)-blockSize:]

	prk := hkdf.Extract(s.params.Digest, ikm, salt)
	r := hkdf.Expand(s.params.Digest, prk, nil)

	buf := make([]byte, s.params.StateSize+s.params.BlockSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		// Unreachable given Params.validate's bound check: HKDF-Expand
		// can only fail past 255*hashSize bytes.
		panic(fmt.Errorf("chain: hkdf expand: %w", err))
	}

	copy(s.state, buf[:s.params.StateSize])
	out := buf[s.params.StateSize:]
	Wipe(buf[:s.params.StateSize])
	return out
}

// Next produces the next BlockSize-byte output block, advancing the
// state by Rounds rounds. Only the final round's output is returned;
// earlier rounds' outputs are discarded (but still mix their entropy
// into the state each of them replaces).
func (s *State) Next() []byte {
	var out []byte
	for i := 0; i < s.params.Rounds; i++ {
		if out != nil {
			Wipe(out)
		}
		out = s.round()
	}
	return out
}

// Fill fills buf with successive output blocks.
func (s *State) Fill(buf []byte) {
	for len(buf) > 0 {
		block := s.Next()
		n := copy(buf, block)
		Wipe(block)
		buf = buf[n:]
	}
}

// Wipe zeroes b in place. Safe to call on a nil or empty slice.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
