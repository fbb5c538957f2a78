package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// AddIdentity stores a marshaled long-term identity.PublicKey (or signing
// keypair encoding, for callers that persist the private half too) keyed
// by algorithm name, so a CLI can reuse the same long-term identity
// across restarts instead of generating a fresh one every run.
func (s *Store) AddIdentity(algorithm string, encoded []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(identityBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		if err := s.put(bucket, []byte(algorithm), encoded); err != nil {
			return fmt.Errorf("store: adding identity: %w", err)
		}
		return nil
	})
}

func (s *Store) GetIdentity(algorithm string) ([]byte, error) {
	var encoded []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(identityBucket))
		if bucket == nil {
			return ErrMissingBucket
		}
		v, err := s.get(bucket, []byte(algorithm))
		if err != nil {
			return err
		}
		encoded = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if encoded == nil {
		return nil, ErrNotFound
	}
	return encoded, nil
}

func (s *Store) IdentityExists(algorithm string) bool {
	_, err := s.GetIdentity(algorithm)
	return err == nil
}
