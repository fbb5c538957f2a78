package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// AddPeer records that peerID's identity has been verified (e.g. its
// pkg/fingerprint rendering was compared out-of-band) until expiryDate,
// after which PeerExists forgets it and the fingerprint must be
// re-checked before trusting that peer's identity again.
func (s *Store) AddPeer(peerID []byte, expiryDate time.Time) error {
	e, err := expiryDate.UTC().MarshalBinary()
	if err != nil {
		return fmt.Errorf("store: marshaling expiry date: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(peersBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		if err := s.put(bucket, peerID, e); err != nil {
			return fmt.Errorf("store: adding peer: %w", err)
		}
		return nil
	})
}

func (s *Store) RemovePeer(peerID []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(peersBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		s.delete(bucket, peerID)
		return nil
	})
}

// PeerExists reports whether peerID was verified and has not yet
// expired. An expired record is pruned as a side effect.
func (s *Store) PeerExists(peerID []byte) bool {
	var exists bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(peersBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		b, err := s.get(bucket, peerID)
		switch {
		case b == nil:
			return nil
		case err != nil:
			return fmt.Errorf("store: find peer: %w", err)
		}
		var expiry time.Time
		if err := expiry.UnmarshalBinary(b); err != nil {
			return fmt.Errorf("store: unmarshaling expiry date: %w", err)
		}
		if expiry.Before(time.Now().UTC()) {
			s.delete(bucket, peerID)
			return nil
		}
		exists = true
		return nil
	})
	return err == nil && exists
}
