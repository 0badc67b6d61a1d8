package identity

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160"
)

// newBitcoin generates a secp256k1 key. Public is the 33-byte compressed
// key; the address is native SegWit (bc1q...).
func newBitcoin() (Identity, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return Identity{}, err
	}
	_, pub := btcec.PrivKeyFromBytes(seed[:])
	compressed := pub.SerializeCompressed()

	addr, err := p2wpkhAddress(compressed)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Public: compressed, Address: addr}, nil
}

// p2wpkhAddress = Bech32(HRP="bc", version=0, HASH160(pubkey))
func p2wpkhAddress(compressed []byte) (string, error) {
	program, err := bech32.ConvertBits(hash160(compressed), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode("bc", append([]byte{0x00}, program...))
}

// hash160 = RIPEMD160(SHA256(data))
func hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}
