package ratchet

import "errors"

// Session-level error taxonomy, mirroring the send/receive error set: the
// send path surfaces these directly, the receive path always pairs one
// with the original Message via OpenError so the caller can re-queue it.
var (
	// ErrMessageLength is returned when outbound plaintext exceeds the
	// AEAD's block-addressing limit.
	ErrMessageLength = errors.New("ratchet: plaintext exceeds message length limit")
	// ErrEncryption is returned when AEAD sealing fails. Non-recoverable
	// for this message; the send chain has already advanced.
	ErrEncryption = errors.New("ratchet: aead seal failed")
	// ErrNoKey is returned when no KeyBlock exists for the header's
	// epoch/index: a replayed message from an already-discarded epoch,
	// an out-of-range future index, or a message already consumed.
	ErrNoKey = errors.New("ratchet: no key for message")
	// ErrDecryption is returned when a KeyBlock existed but AEAD open
	// failed: tampered ciphertext or the wrong key.
	ErrDecryption = errors.New("ratchet: aead open failed")
	// ErrTooManySkipped is returned when backfilling skipped keys for an
	// epoch would exceed Params.MaxSkip.
	ErrTooManySkipped = errors.New("ratchet: too many skipped keys")
)

// OpenError pairs a receive-path failure with the Message that caused
// it, so the caller may re-queue the message (for example, after
// retrying a ratchet step).
type OpenError struct {
	Err     error
	Message Message
}

func (e *OpenError) Error() string { return e.Err.Error() }
func (e *OpenError) Unwrap() error { return e.Err }
