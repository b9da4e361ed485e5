package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// InputHash fingerprints the inputs of a calendarization run so identical
// requests can be recognised in storage.
type InputHash Hash

func NewInputHash(data []byte) InputHash { return InputHash(NewHash(data)) }
func (h InputHash) String() string       { return Hash(h).String() }
