// Package identity supplies the long-term signing keypairs spec.md §2
// assumes the two parties already share: a way to sign a session's
// initial DH public key so the peer can authenticate it out-of-band
// before calling ratchet.Accept. It verifies and displays identities;
// it never negotiates a session or carries key-agreement material.
package identity

import (
	"fmt"
	"strings"
)

// Algorithm selects the long-term signature scheme backing a Signer.
type Algorithm int

const (
	invalidAlgorithm Algorithm = iota
	Ed25519Algorithm
	MLDSAAlgorithm
)

func (a Algorithm) String() string {
	switch a {
	case Ed25519Algorithm:
		return "ed25519"
	case MLDSAAlgorithm:
		return "mldsa"
	default:
		return "invalid"
	}
}

// UnmarshalText allows Algorithm to be used directly as a config/flag
// value (e.g. `identity: mldsa` in a YAML/JSON config).
func (a *Algorithm) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "ed25519":
		*a = Ed25519Algorithm
	case "mldsa":
		*a = MLDSAAlgorithm
	default:
		return fmt.Errorf("identity: unknown algorithm %q", text)
	}
	return nil
}
