package store_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noctane/ratchet/pkg/ratchet"
	"github.com/noctane/ratchet/pkg/store"
)

func openStore(t *testing.T, passphrase string) *store.Store {
	t.Helper()
	a := require.New(t)
	path := filepath.Join(t.TempDir(), "ratchet.db")
	s, err := store.New([]byte(passphrase), path)
	a.NoError(err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSession(t *testing.T) *ratchet.Session {
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
	return alice
}

func TestStore_ReopenWithSamePassphrase(t *testing.T) {
	a := require.New(t)
	path := filepath.Join(t.TempDir(), "ratchet.db")

	s1, err := store.New([]byte("correct horse battery staple"), path)
	a.NoError(err)
	a.NoError(s1.AddIdentity("ed25519", []byte("marker")))
	a.NoError(s1.Close())

	s2, err := store.New([]byte("correct horse battery staple"), path)
	a.NoError(err)
	defer s2.Close()
	got, err := s2.GetIdentity("ed25519")
	a.NoError(err)
	a.Equal([]byte("marker"), got)
}

func TestStore_SessionRoundTrip(t *testing.T) {
	a := require.New(t)
	s := openStore(t, "passphrase")
	sess := newSession(t)
	peerID := []byte("alice@example.com")

	a.False(s.HasSession(peerID))
	_, err := s.LoadSession(peerID, nil)
	a.ErrorIs(err, store.ErrNotFound)

	a.NoError(s.SaveSession(peerID, sess))
	a.True(s.HasSession(peerID))

	restored, err := s.LoadSession(peerID, nil)
	a.NoError(err)
	a.NotNil(restored)

	msg, err := restored.Lock([]byte("hello"), nil)
	a.NoError(err)
	a.NotNil(msg)

	a.NoError(s.DeleteSession(peerID))
	a.False(s.HasSession(peerID))
}

func TestStore_SessionOverwrite(t *testing.T) {
	a := require.New(t)
	s := openStore(t, "passphrase")
	sess := newSession(t)
	peerID := []byte("bob@example.com")

	a.NoError(s.SaveSession(peerID, sess))
	_, err := sess.Lock([]byte("advance the chain"), nil)
	a.NoError(err)
	a.NoError(s.SaveSession(peerID, sess))

	restored, err := s.LoadSession(peerID, nil)
	a.NoError(err)
	// The second save's chain state must win; a Lock from it should
	// succeed rather than reusing an index already saved once before.
	_, err = restored.Lock([]byte("after restore"), nil)
	a.NoError(err)
}

func TestStore_PeerExpiry(t *testing.T) {
	a := require.New(t)
	s := openStore(t, "passphrase")
	peerID := []byte("carol@example.com")

	a.False(s.PeerExists(peerID))
	a.NoError(s.AddPeer(peerID, time.Now().Add(time.Hour)))
	a.True(s.PeerExists(peerID))

	a.NoError(s.RemovePeer(peerID))
	a.False(s.PeerExists(peerID))

	a.NoError(s.AddPeer(peerID, time.Now().Add(-time.Hour)))
	a.False(s.PeerExists(peerID))
}

func TestStore_IdentityMissing(t *testing.T) {
	a := require.New(t)
	s := openStore(t, "passphrase")
	a.False(s.IdentityExists("mldsa"))
	_, err := s.GetIdentity("mldsa")
	a.ErrorIs(err, store.ErrNotFound)
}
