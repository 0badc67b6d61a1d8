package identity

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// newEthereum generates a secp256k1 key. Public is the 20-byte address.
func newEthereum() (Identity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Identity{}, err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return Identity{
		Public:  addr.Bytes(),
		Address: addr.Hex(),
	}, nil
}
