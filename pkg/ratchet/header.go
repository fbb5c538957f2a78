package ratchet

import "encoding/binary"

// headerWireSize is the fixed on-the-wire size of a Header: a 32-byte
// public key plus two big-endian uint32 fields.
const headerWireSize = 32 + 4 + 4

// Header identifies the sender's current DH public key, the index of
// this message within that epoch, and the length of the previous epoch
// (used by the receiver to backfill skipped keys on a ratchet step).
// Immutable once built.
type Header struct {
	PublicKey    []byte
	MessageIndex uint32
	PreviousStep uint32
}

// Bytes renders the header in its fixed 40-byte wire form. This is also
// the header-derived AAD prefix fed into AEAD sealing/opening, binding
// ciphertext to the header it was sent under.
func (h Header) Bytes() []byte {
	buf := make([]byte, headerWireSize)
	copy(buf[:32], h.PublicKey)
	binary.BigEndian.PutUint32(buf[32:36], h.MessageIndex)
	binary.BigEndian.PutUint32(buf[36:40], h.PreviousStep)
	return buf
}

// Message is a Header paired with opaque ciphertext (including the AEAD
// tag).
type Message struct {
	Header Header
	Data   []byte
}
