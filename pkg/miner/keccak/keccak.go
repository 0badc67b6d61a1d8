// Package keccak is the host-side hash used by every backend:
// keccak256(input || le64(nonce)). The device kernels implement the same
// function bit for bit.
package keccak

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NonceSize is the number of nonce bytes appended to the input.
const NonceSize = 8

// Sum hashes input followed by the little-endian nonce.
func Sum(input []byte, nonce uint64) common.Hash {
	var n [NonceSize]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256Hash(input, n[:])
}

// Hasher is a reusable Keccak-256 state for hot loops.
// A Hasher is not safe for concurrent use; give each goroutine its own.
type Hasher struct {
	state crypto.KeccakState
	nonce [NonceSize]byte
}

// NewHasher returns a ready Hasher.
func NewHasher() *Hasher {
	return &Hasher{state: crypto.NewKeccakState()}
}

// Sum hashes input followed by the little-endian nonce without allocating.
func (h *Hasher) Sum(input []byte, nonce uint64) (digest common.Hash) {
	binary.LittleEndian.PutUint64(h.nonce[:], nonce)
	h.state.Reset()
	h.state.Write(input)
	h.state.Write(h.nonce[:])
	h.state.Read(digest[:])
	return digest
}
