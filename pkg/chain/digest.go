package chain

import (
	"crypto/sha256"
	"hash"
)

func defaultDigest() hash.Hash {
	return sha256.New()
}
