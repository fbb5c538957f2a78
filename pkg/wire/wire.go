// Package wire implements the self-describing binary encoding of a
// ratchet.Message and the incremental, framed reader built on top of it.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/noctane/ratchet/pkg/ratchet"
)

const (
	fieldPublicKey    = protowire.Number(1)
	fieldMessageIndex = protowire.Number(2)
	fieldPreviousStep = protowire.Number(3)
	fieldData         = protowire.Number(4)
)

// ErrMalformed is returned when a length-prefixed frame's body cannot be
// parsed as a Message, independent of how much data is buffered.
var ErrMalformed = errors.New("wire: malformed message")

// EncodeMessage renders msg as a length-prefixed protobuf-wire-format
// frame: a varint byte length followed by that many bytes of tagged
// fields (public_key, message_index, previous_step, data). The length
// prefix is what makes the stream self-describing to an incremental
// reader — framing a single protobuf message does not otherwise carry
// its own end marker.
func EncodeMessage(msg ratchet.Message) []byte {
	var body []byte
	body = protowire.AppendTag(body, fieldPublicKey, protowire.BytesType)
	body = protowire.AppendBytes(body, msg.Header.PublicKey)
	body = protowire.AppendTag(body, fieldMessageIndex, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(msg.Header.MessageIndex))
	body = protowire.AppendTag(body, fieldPreviousStep, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(msg.Header.PreviousStep))
	body = protowire.AppendTag(body, fieldData, protowire.BytesType)
	body = protowire.AppendBytes(body, msg.Data)

	out := protowire.AppendVarint(nil, uint64(len(body)))
	return append(out, body...)
}

// decodeBody parses a single frame body (the bytes after the length
// prefix) into a Message.
func decodeBody(body []byte) (ratchet.Message, error) {
	var msg ratchet.Message
	var sawPublicKey, sawData bool

	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return ratchet.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		body = body[n:]

		switch num {
		case fieldPublicKey:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return ratchet.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			msg.Header.PublicKey = append([]byte(nil), v...)
			sawPublicKey = true
			body = body[n:]
		case fieldMessageIndex:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return ratchet.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			msg.Header.MessageIndex = uint32(v)
			body = body[n:]
		case fieldPreviousStep:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return ratchet.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			msg.Header.PreviousStep = uint32(v)
			body = body[n:]
		case fieldData:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return ratchet.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			msg.Data = append([]byte(nil), v...)
			sawData = true
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return ratchet.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			body = body[n:]
		}
	}

	if !sawPublicKey || !sawData {
		return ratchet.Message{}, fmt.Errorf("%w: missing required field", ErrMalformed)
	}
	return msg, nil
}

// DecodeMessage attempts to consume one length-prefixed frame from the
// front of buf. It returns the decoded Message, the number of bytes of
// buf consumed, and ok=false (no error) if buf does not yet hold a
// complete frame — the caller should buffer more bytes and retry.
func DecodeMessage(buf []byte) (msg ratchet.Message, consumed int, ok bool, err error) {
	length, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		// An incomplete varint looks identical to a truncated buffer;
		// protowire has no byte budget left to tell the two apart, so
		// treat it as "need more data" unless buf already exceeds the
		// maximum varint width, which would mean a corrupt prefix.
		if len(buf) >= protowire.SizeVarint(^uint64(0)) {
			return ratchet.Message{}, 0, false, fmt.Errorf("%w: invalid length prefix", ErrMalformed)
		}
		return ratchet.Message{}, 0, false, nil
	}
	rest := buf[n:]
	if uint64(len(rest)) < length {
		return ratchet.Message{}, 0, false, nil
	}

	body := rest[:length]
	msg, err = decodeBody(body)
	if err != nil {
		return ratchet.Message{}, 0, false, err
	}
	return msg, n + int(length), true, nil
}
