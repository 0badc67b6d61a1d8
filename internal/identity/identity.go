// Package identity produces sample search input from freshly generated key
// pairs: the public key of a "challenge" identity followed by the public key
// of a "miner" identity. Private keys are discarded.
package identity

import (
	"fmt"
	"strings"
)

// Kind selects the key type.
type Kind string

const (
	Solana   Kind = "solana"   // ed25519, base58 address
	Ethereum Kind = "ethereum" // secp256k1, 20-byte keccak address
	Bitcoin  Kind = "bitcoin"  // secp256k1, P2WPKH bech32 address
)

// Kinds lists every supported kind.
var Kinds = []Kind{Solana, Ethereum, Bitcoin}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown identity %q (want solana, ethereum or bitcoin)", s)
}

// Identity is one public key and its display address.
type Identity struct {
	Public  []byte // bytes contributed to the search input
	Address string
}

// Sample is a generated search input.
type Sample struct {
	Kind      Kind
	Challenge Identity
	Miner     Identity
	Input     []byte // Challenge.Public || Miner.Public
}

// PublicSize returns the length of Identity.Public for kind.
func PublicSize(kind Kind) int {
	switch kind {
	case Solana:
		return 32
	case Ethereum:
		return 20
	case Bitcoin:
		return 33
	default:
		return 0
	}
}

// New generates one identity of the given kind.
func New(kind Kind) (Identity, error) {
	switch kind {
	case Solana:
		return newSolana()
	case Ethereum:
		return newEthereum()
	case Bitcoin:
		return newBitcoin()
	default:
		return Identity{}, fmt.Errorf("unknown identity %q", kind)
	}
}

// Generate creates a challenge and a miner identity and concatenates
// their public keys.
func Generate(kind Kind) (Sample, error) {
	challenge, err := New(kind)
	if err != nil {
		return Sample{}, fmt.Errorf("challenge identity: %w", err)
	}
	miner, err := New(kind)
	if err != nil {
		return Sample{}, fmt.Errorf("miner identity: %w", err)
	}

	input := make([]byte, 0, len(challenge.Public)+len(miner.Public))
	input = append(input, challenge.Public...)
	input = append(input, miner.Public...)

	return Sample{
		Kind:      kind,
		Challenge: challenge,
		Miner:     miner,
		Input:     input,
	}, nil
}
