// Package store persists ratchet session state (spec.md §6's "serialized
// form is not a wire protocol, it is local persistence") to a
// passphrase-protected bbolt database, alongside the long-term identity
// keys and known-peer bookkeeping a CLI built on pkg/ratchet needs
// between runs.
package store

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/noctane/ratchet/internal/enigma"
)

const (
	peersBucket    = "peers"
	identityBucket = "identity"
	sessionsBucket = "sessions"
	authBucket     = "auth"

	kek = "key-encryption-key"
	dek = "data-encryption-key"
	dpk = "derived-passphrase-key"

	wrappedSaltKey = "wrapped-salt"
	wrappedKey     = "wrapped-key"
	deriveSaltKey  = "derive-salt"
	secretSaltKey  = "secret-salt"
)

var (
	ErrMissingBucket    = errors.New("store: bucket not found")
	ErrNotFound         = errors.New("store: item not found")
	ErrFailedDecryption = errors.New("store: decryption failed")
)

// Store is a passphrase-protected bbolt database. All values (session
// state, identity keys) are encrypted at rest with a data-encryption key
// that is itself wrapped by a key derived from the passphrase, so the
// passphrase is never used to encrypt data directly and can be rotated
// by re-wrapping the secret without re-encrypting every record.
type Store struct {
	db     *bolt.DB
	cipher *enigma.Enigma
}

// New opens (or creates, on first use) a Store at path, unlocked with
// passphrase.
func New(passphrase []byte, path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{peersBucket, identityBucket, sessionsBucket, authBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("store: creating %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	cipher, err := open(passphrase, db)
	if errors.Is(err, ErrNotFound) {
		cipher, err = create(passphrase, db)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: cipher: %w", err)
	}

	return &Store{db: db, cipher: cipher}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func open(pass []byte, db *bolt.DB) (*enigma.Enigma, error) {
	var secretSalt, deriveSalt, wrappedSalt, wrapped []byte
	err := db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(authBucket))
		wrapped = bucket.Get([]byte(wrappedKey))
		deriveSalt = bucket.Get([]byte(deriveSaltKey))
		wrappedSalt = bucket.Get([]byte(wrappedSaltKey))
		secretSalt = bucket.Get([]byte(secretSaltKey))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	if secretSalt == nil || deriveSalt == nil || wrappedSalt == nil || wrapped == nil {
		return nil, ErrNotFound
	}
	derivedPass, err := enigma.Derive(pass, deriveSalt, []byte(dpk), 32)
	if err != nil {
		return nil, fmt.Errorf("derive from pass: %w", err)
	}
	keyCipher, err := enigma.NewEnigma(derivedPass, wrappedSalt, []byte(kek))
	if err != nil {
		return nil, fmt.Errorf("key cipher: %w", err)
	}
	secret, err := keyCipher.Decrypt(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedDecryption, err)
	}
	dataCipher, err := enigma.NewEnigma(secret, secretSalt, []byte(dek))
	if err != nil {
		return nil, fmt.Errorf("data cipher: %w", err)
	}
	return dataCipher, nil
}

func create(pass []byte, db *bolt.DB) (*enigma.Enigma, error) {
	secret, secretSalt := random32Bytes(), random32Bytes()
	deriveSalt, wrappedSalt := random32Bytes(), random32Bytes()

	derivedPass, err := enigma.Derive(pass, deriveSalt, []byte(dpk), 32)
	if err != nil {
		return nil, fmt.Errorf("derive from pass: %w", err)
	}
	keyCipher, err := enigma.NewEnigma(derivedPass, wrappedSalt, []byte(kek))
	if err != nil {
		return nil, fmt.Errorf("key cipher: %w", err)
	}
	wrapped := keyCipher.Encrypt(secret)
	dataCipher, err := enigma.NewEnigma(secret, secretSalt, []byte(dek))
	if err != nil {
		return nil, fmt.Errorf("data cipher: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(authBucket))
		if err := bucket.Put([]byte(wrappedKey), wrapped); err != nil {
			return fmt.Errorf("put wrapped key: %w", err)
		}
		if err := bucket.Put([]byte(wrappedSaltKey), wrappedSalt); err != nil {
			return fmt.Errorf("put wrapped salt: %w", err)
		}
		if err := bucket.Put([]byte(deriveSaltKey), deriveSalt); err != nil {
			return fmt.Errorf("put derive salt: %w", err)
		}
		if err := bucket.Put([]byte(secretSaltKey), secretSalt); err != nil {
			return fmt.Errorf("put secret salt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update db: %w", err)
	}

	return dataCipher, nil
}

func random32Bytes() []byte {
	src := make([]byte, 32)
	rand.Read(src)
	return src
}

// put encrypts value and stores it under a SHA-256 digest of key, so
// that bbolt's own on-disk B+tree pages never hold plaintext peer
// identifiers or session state, while the same key always maps to the
// same record.
func (s *Store) put(bucket *bolt.Bucket, key, value []byte) error {
	return bucket.Put(lookupKey(key), s.cipher.Encrypt(value))
}

func (s *Store) delete(bucket *bolt.Bucket, key []byte) {
	_ = bucket.Delete(lookupKey(key))
}

func lookupKey(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

func (s *Store) get(bucket *bolt.Bucket, key []byte) ([]byte, error) {
	encryptedValue := bucket.Get(lookupKey(key))
	if encryptedValue == nil {
		return nil, nil
	}
	value, err := s.cipher.Decrypt(encryptedValue)
	if err != nil {
		return nil, ErrFailedDecryption
	}
	return value, nil
}
