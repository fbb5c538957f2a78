package wire

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/noctane/ratchet/pkg/ratchet"
)

// ReadyState mirrors the three states a non-blocking recv can report:
// a full message was decoded, the underlying source is exhausted, or
// no complete message is available yet and the caller should retry
// later.
type ReadyState int

const (
	// Pending means no complete frame is buffered yet and the
	// underlying reader currently has no more data to offer.
	Pending ReadyState = iota
	// Ready means a message was decoded.
	Ready
	// Done means the underlying reader reached EOF with no partial
	// frame left outstanding.
	Done
)

// ErrTruncated is returned when the underlying reader reaches EOF while
// a partial frame is still buffered.
var ErrTruncated = errors.New("wire: truncated stream")

// reader incrementally decodes a stream of length-prefixed frames from
// an io.Reader, buffering bytes across calls so a frame split across
// multiple reads is reassembled rather than failing.
type reader struct {
	r       io.Reader
	buf     []byte
	scratch []byte
}

func newReader(r io.Reader) *reader {
	return &reader{r: r, scratch: make([]byte, 4096)}
}

// next attempts to decode one message from the buffered stream,
// reading more from the underlying io.Reader as needed. A Read that
// returns (0, nil) is treated as "no data available right now" on a
// non-blocking source and reported as Pending, matching spec.md §4.7's
// non-blocking recv contract.
func (fr *reader) next() (ratchet.Message, ReadyState, error) {
	for {
		msg, consumed, ok, err := DecodeMessage(fr.buf)
		if err != nil {
			return ratchet.Message{}, Pending, err
		}
		if ok {
			fr.buf = fr.buf[consumed:]
			return msg, Ready, nil
		}

		n, err := fr.r.Read(fr.scratch)
		if n > 0 {
			fr.buf = append(fr.buf, fr.scratch[:n]...)
			continue
		}
		switch {
		case errors.Is(err, io.EOF):
			if len(fr.buf) == 0 {
				return ratchet.Message{}, Done, nil
			}
			return ratchet.Message{}, Pending, fmt.Errorf("%w", ErrTruncated)
		case err != nil:
			return ratchet.Message{}, Pending, err
		default:
			// n == 0, err == nil: non-blocking source, nothing ready yet.
			return ratchet.Message{}, Pending, nil
		}
	}
}

// Framed pairs a ratchet.Session with a byte stream, sealing outbound
// plaintext into length-prefixed frames and forwarding decoded frames
// into the session's Open.
//
// Send and Recv may be called concurrently from separate goroutines (the
// natural shape of a full-duplex chat loop): sessionMu serializes only
// the Lock/Open calls into the shared *ratchet.Session, not Recv's
// blocking wait for the next frame, so a Send is never stuck behind a
// Recv that is idle waiting on the network.
type Framed struct {
	w         io.Writer
	session   *ratchet.Session
	sessionMu sync.Mutex
	reader    *reader
}

// NewFramed wraps rw for framed Lock/Open traffic driven by session.
func NewFramed(rw io.ReadWriter, session *ratchet.Session) *Framed {
	return &Framed{w: rw, session: session, reader: newReader(rw)}
}

// Send seals plaintext and writes the resulting frame to the
// underlying writer.
func (f *Framed) Send(plaintext, extraAAD []byte) error {
	f.sessionMu.Lock()
	msg, err := f.session.Lock(plaintext, extraAAD)
	f.sessionMu.Unlock()
	if err != nil {
		return fmt.Errorf("wire: send: %w", err)
	}
	if _, err := f.w.Write(EncodeMessage(msg)); err != nil {
		return fmt.Errorf("wire: send: %w", err)
	}
	return nil
}

// Recv attempts to decode and open the next message. On Ready it
// returns the plaintext appended to out. On Pending or Done, out is
// returned unchanged.
func (f *Framed) Recv(out, extraAAD []byte) (ReadyState, []byte, error) {
	msg, state, err := f.reader.next()
	if err != nil {
		return state, out, err
	}
	if state != Ready {
		return state, out, nil
	}
	f.sessionMu.Lock()
	pt, err := f.session.Open(msg, out, extraAAD)
	f.sessionMu.Unlock()
	if err != nil {
		return Ready, out, fmt.Errorf("wire: recv: %w", err)
	}
	return Ready, pt, nil
}

// WithSession runs fn with exclusive access to the underlying session,
// excluding any concurrent Send or Recv. Callers that persist session
// state (e.g. after every Send/Recv, for crash recovery) should read it
// through WithSession rather than holding their own reference, so a
// snapshot is never taken mid-Lock or mid-Open.
func (f *Framed) WithSession(fn func(*ratchet.Session) error) error {
	f.sessionMu.Lock()
	defer f.sessionMu.Unlock()
	return fn(f.session)
}
