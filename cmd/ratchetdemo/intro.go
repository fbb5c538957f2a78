package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/noctane/ratchet/pkg/identity"
)

// introduce is the single plaintext message exchanged before a
// ratchet.Session exists: each side's epoch-0 X25519 public key, long-term
// identity public key, and a signature over the DH key under that
// identity. This lets the peer authenticate the DH key out-of-band (by
// checking the signature, and by comparing the identity's fingerprint
// over a second channel) before trusting it — spec.md's "no X3DH"
// Non-goal is unaffected, since no key agreement happens here, only the
// advertisement the ratchet session itself still needs to be told about
// via Initiate/Accept's peerPublic argument.
type introduce struct {
	dhPublicKey       []byte
	identityAlgorithm identity.Algorithm
	identityPublicKey []byte
	signature         []byte
}

const (
	fieldDHPublicKey       = protowire.Number(1)
	fieldIdentityAlgorithm = protowire.Number(2)
	fieldIdentityPublicKey = protowire.Number(3)
	fieldSignature         = protowire.Number(4)
)

func encodeIntroduce(in introduce) []byte {
	var body []byte
	body = protowire.AppendTag(body, fieldDHPublicKey, protowire.BytesType)
	body = protowire.AppendBytes(body, in.dhPublicKey)
	body = protowire.AppendTag(body, fieldIdentityAlgorithm, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(in.identityAlgorithm))
	body = protowire.AppendTag(body, fieldIdentityPublicKey, protowire.BytesType)
	body = protowire.AppendBytes(body, in.identityPublicKey)
	body = protowire.AppendTag(body, fieldSignature, protowire.BytesType)
	body = protowire.AppendBytes(body, in.signature)
	return body
}

func decodeIntroduce(body []byte) (introduce, error) {
	var out introduce
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return introduce{}, fmt.Errorf("intro: %w", protowire.ParseError(n))
		}
		body = body[n:]
		switch num {
		case fieldDHPublicKey:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return introduce{}, fmt.Errorf("intro: dh_public_key: %w", protowire.ParseError(n))
			}
			out.dhPublicKey = append([]byte(nil), v...)
			body = body[n:]
		case fieldIdentityAlgorithm:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return introduce{}, fmt.Errorf("intro: identity_algorithm: %w", protowire.ParseError(n))
			}
			out.identityAlgorithm = identity.Algorithm(v)
			body = body[n:]
		case fieldIdentityPublicKey:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return introduce{}, fmt.Errorf("intro: identity_public_key: %w", protowire.ParseError(n))
			}
			out.identityPublicKey = append([]byte(nil), v...)
			body = body[n:]
		case fieldSignature:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return introduce{}, fmt.Errorf("intro: signature: %w", protowire.ParseError(n))
			}
			out.signature = append([]byte(nil), v...)
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return introduce{}, fmt.Errorf("intro: %w", protowire.ParseError(n))
			}
			body = body[n:]
		}
	}
	if len(out.dhPublicKey) == 0 || len(out.identityPublicKey) == 0 {
		return introduce{}, errors.New("intro: missing required field")
	}
	return out, nil
}

// sendIntroduce writes a length-prefixed introduce message to w.
func sendIntroduce(w io.Writer, in introduce) error {
	body := encodeIntroduce(in)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("intro: write length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("intro: write body: %w", err)
	}
	return nil
}

// recvIntroduce reads one length-prefixed introduce message from r.
func recvIntroduce(r *bufio.Reader) (introduce, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return introduce{}, fmt.Errorf("intro: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	const maxIntroSize = 16 << 10
	if length > maxIntroSize {
		return introduce{}, fmt.Errorf("intro: message too large: %d bytes", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return introduce{}, fmt.Errorf("intro: read body: %w", err)
	}
	return decodeIntroduce(body)
}
