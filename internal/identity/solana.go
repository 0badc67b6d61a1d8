package identity

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/mr-tron/base58"
)

// newSolana generates an ed25519 key pair. The address is the base58 public key.
func newSolana() (Identity, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Public:  []byte(pub),
		Address: base58.Encode(pub),
	}, nil
}
