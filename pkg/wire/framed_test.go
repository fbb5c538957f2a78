package wire_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noctane/ratchet/pkg/ratchet"
	"github.com/noctane/ratchet/pkg/wire"
)

func newSessionPair(t *testing.T) (*ratchet.Session, *ratchet.Session) {
	t.Helper()
	a := require.New(t)

	skA := bytes.Repeat([]byte{1}, 32)
	skB := bytes.Repeat([]byte{2}, 32)
	pkA, err := ratchet.DefaultDH.Public(skA)
	a.NoError(err)
	pkB, err := ratchet.DefaultDH.Public(skB)
	a.NoError(err)

	alice, err := ratchet.Initiate(pkB, skA, ratchet.DefaultParams(), nil)
	a.NoError(err)
	bob, err := ratchet.Accept(pkA, skB, ratchet.DefaultParams(), nil)
	a.NoError(err)
	return alice, bob
}

// stepReader feeds its chunks one io.Read call at a time, returning
// (0, nil) once exhausted — a non-blocking source with nothing
// currently available, per spec.md §4.7's Pending contract.
type stepReader struct {
	chunks [][]byte
}

func (s *stepReader) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, s.chunks[0])
	s.chunks = append(s.chunks[:0:0], s.chunks[1:]...)
	return n, nil
}

type pipe struct {
	io.Reader
	io.Writer
}

func TestFramed_SendRecvRoundTrip(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	var wire12 bytes.Buffer
	sender := wire.NewFramed(&pipe{Reader: &wire12, Writer: &wire12}, alice)
	a.NoError(sender.Send([]byte("hello bob"), nil))

	receiver := wire.NewFramed(&pipe{Reader: &wire12, Writer: &wire12}, bob)
	state, out, err := receiver.Recv(nil, nil)
	a.NoError(err)
	a.Equal(wire.Ready, state)
	a.Equal("hello bob", string(out))
}

func TestFramed_PendingOnPartialFrame(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	var out bytes.Buffer
	sender := wire.NewFramed(&pipe{Reader: &out, Writer: &out}, alice)
	a.NoError(sender.Send([]byte("partial delivery"), nil))

	full := out.Bytes()
	mid := len(full) / 2
	src := &stepReader{chunks: [][]byte{full[:mid]}}
	receiver := wire.NewFramed(&pipe{Reader: src, Writer: io.Discard}, bob)

	state, _, err := receiver.Recv(nil, nil)
	a.NoError(err)
	a.Equal(wire.Pending, state)

	src.chunks = [][]byte{full[mid:]}
	state, pt, err := receiver.Recv(nil, nil)
	a.NoError(err)
	a.Equal(wire.Ready, state)
	a.Equal("partial delivery", string(pt))
}

func TestFramed_DoneOnEOF(t *testing.T) {
	a := require.New(t)
	_, bob := newSessionPair(t)

	receiver := wire.NewFramed(&pipe{Reader: bytes.NewReader(nil), Writer: io.Discard}, bob)
	state, _, err := receiver.Recv(nil, nil)
	a.NoError(err)
	a.Equal(wire.Done, state)
}

func TestFramed_WithSessionSerializesAgainstConcurrentSend(t *testing.T) {
	a := require.New(t)
	alice, _ := newSessionPair(t)

	var wire12 bytes.Buffer
	sender := wire.NewFramed(&pipe{Reader: &wire12, Writer: &wire12}, alice)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			a.NoError(sender.Send([]byte("concurrent"), nil))
		}
	}()

	var serialized []byte
	for i := 0; i < 50; i++ {
		a.NoError(sender.WithSession(func(sess *ratchet.Session) error {
			var err error
			serialized, err = sess.Serialize()
			return err
		}))
	}
	<-done
	a.NotNil(serialized)

	restored, err := ratchet.Deserialize(serialized, nil)
	a.NoError(err)
	a.NotNil(restored)
}

func TestFramed_TruncatedStreamErrors(t *testing.T) {
	a := require.New(t)
	alice, bob := newSessionPair(t)

	var buf bytes.Buffer
	sender := wire.NewFramed(&pipe{Reader: &buf, Writer: &buf}, alice)
	a.NoError(sender.Send([]byte("cut short"), nil))

	truncated := buf.Bytes()[:buf.Len()-1]
	receiver := wire.NewFramed(&pipe{Reader: bytes.NewReader(truncated), Writer: io.Discard}, bob)
	_, _, err := receiver.Recv(nil, nil)
	a.ErrorIs(err, wire.ErrTruncated)
}
