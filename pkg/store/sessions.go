package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/noctane/ratchet/pkg/ratchet"
)

// SaveSession persists sess's current state under peerID, overwriting
// any previously saved state for that peer. Callers should save after
// every Lock/Open that changes session state (a skipped-key sweep, a
// ratchet step), since a stale snapshot can no longer decrypt messages
// the peer has since skipped past.
func (s *Store) SaveSession(peerID []byte, sess *ratchet.Session) error {
	data, err := sess.Serialize()
	if err != nil {
		return fmt.Errorf("store: serialize session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		if err := s.put(bucket, peerID, data); err != nil {
			return fmt.Errorf("store: saving session: %w", err)
		}
		return nil
	})
}

// LoadSession reconstructs the session previously saved for peerID. dh
// is the DH implementation to bind the restored session to; pass nil to
// use ratchet.DefaultDH.
func (s *Store) LoadSession(peerID []byte, dh ratchet.DH) (*ratchet.Session, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		v, err := s.get(bucket, peerID)
		if err != nil {
			return err
		}
		data = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}
	sess, err := ratchet.Deserialize(data, dh)
	if err != nil {
		return nil, fmt.Errorf("store: deserialize session: %w", err)
	}
	return sess, nil
}

// DeleteSession removes any saved state for peerID. It is not an error
// to delete a peer with no saved session.
func (s *Store) DeleteSession(peerID []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		s.delete(bucket, peerID)
		return nil
	})
}

// HasSession reports whether a session is currently saved for peerID.
func (s *Store) HasSession(peerID []byte) bool {
	_, err := s.LoadSession(peerID, nil)
	return err == nil
}
