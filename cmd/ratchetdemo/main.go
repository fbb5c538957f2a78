// Command ratchetdemo is a two-party chat over a Double Ratchet session,
// demonstrating pkg/ratchet end to end: an out-of-band identity
// verification step, a KCP transport, the wire-framed Lock/Open loop,
// and store-backed session persistence across restarts.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtaci/kcp-go/v5"
	"golang.org/x/term"

	"github.com/noctane/ratchet/pkg/identity"
	"github.com/noctane/ratchet/pkg/ratchet"
	"github.com/noctane/ratchet/pkg/store"
	"github.com/noctane/ratchet/pkg/wire"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var (
		listenAddr = flag.String("listen", "", "listen for a single incoming connection on this address")
		dialAddr   = flag.String("dial", "", "dial a listening peer at this address")
		storePath  = flag.String("store", "ratchetdemo.db", "path to the session store")
		algName    = flag.String("identity", "ed25519", "long-term identity algorithm: ed25519 or mldsa")
	)
	flag.Parse()

	if (*listenAddr == "") == (*dialAddr == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -listen or -dial is required")
		os.Exit(2)
	}

	var alg identity.Algorithm
	if err := alg.UnmarshalText([]byte(*algName)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(*listenAddr, *dialAddr, *storePath, alg); err != nil {
		slog.Error("ratchetdemo", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(listenAddr, dialAddr, storePath string, alg identity.Algorithm) error {
	passphrase, err := readPassphrase()
	if err != nil {
		return fmt.Errorf("reading store passphrase: %w", err)
	}
	st, err := store.New(passphrase, storePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	conn, initiator, err := connect(listenAddr, dialAddr)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	stdin := bufio.NewReader(os.Stdin)
	est, err := establish(conn, alg, initiator, stdin)
	if err != nil {
		return fmt.Errorf("establishing session: %w", err)
	}
	if err := st.SaveSession(est.peerID, est.session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	slog.Info("session established", slog.Bool("initiator", initiator))

	framed := wire.NewFramed(conn, est.session)
	return chatLoop(framed, stdin, func() error {
		return framed.WithSession(func(sess *ratchet.Session) error {
			return st.SaveSession(est.peerID, sess)
		})
	})
}

func connect(listenAddr, dialAddr string) (net.Conn, bool, error) {
	if dialAddr != "" {
		conn, err := kcp.Dial(dialAddr)
		if err != nil {
			return nil, false, fmt.Errorf("dialing %s: %w", dialAddr, err)
		}
		return conn, true, nil
	}

	ln, err := kcp.ListenWithOptions(listenAddr, nil, 0, 0)
	if err != nil {
		return nil, false, fmt.Errorf("listening on %s: %w", listenAddr, err)
	}
	defer ln.Close()
	slog.Info("waiting for a connection", slog.String("addr", listenAddr))
	conn, err := ln.AcceptKCP()
	if err != nil {
		return nil, false, fmt.Errorf("accepting: %w", err)
	}
	return conn, false, nil
}

func readPassphrase() ([]byte, error) {
	fmt.Fprint(os.Stderr, "Store passphrase: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// chatLoop reads plaintext lines from stdin and seals them onto framed,
// while concurrently decoding and printing whatever the peer sends.
// afterEachMessage persists the session after every successful Lock or
// Open, since either one can advance chain state or trigger a ratchet
// step that a stale snapshot could no longer replicate.
func chatLoop(framed *wire.Framed, stdin *bufio.Reader, afterEachMessage func() error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go recvLoop(framed, afterEachMessage, errCh)
	go sendLoop(framed, stdin, afterEachMessage, errCh)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		return nil
	}
}

func recvLoop(framed *wire.Framed, afterEachMessage func() error, errCh chan<- error) {
	for {
		state, pt, err := framed.Recv(nil, nil)
		if err != nil {
			errCh <- fmt.Errorf("receiving: %w", err)
			return
		}
		switch state {
		case wire.Done:
			errCh <- nil
			return
		case wire.Ready:
			fmt.Printf("peer: %s\n", pt)
			if err := afterEachMessage(); err != nil {
				errCh <- fmt.Errorf("persisting session: %w", err)
				return
			}
		}
	}
}

func sendLoop(framed *wire.Framed, stdin *bufio.Reader, afterEachMessage func() error, errCh chan<- error) {
	for {
		line, err := stdin.ReadString('\n')
		if len(line) > 0 {
			if err := framed.Send([]byte(trimNewline(line)), nil); err != nil {
				errCh <- fmt.Errorf("sending: %w", err)
				return
			}
			if err := afterEachMessage(); err != nil {
				errCh <- fmt.Errorf("persisting session: %w", err)
				return
			}
		}
		if err != nil {
			errCh <- nil
			return
		}
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
