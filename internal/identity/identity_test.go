package identity

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInputLayout(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			s, err := Generate(kind)
			require.NoError(t, err)

			size := PublicSize(kind)
			require.Len(t, s.Challenge.Public, size)
			require.Len(t, s.Miner.Public, size)
			require.Len(t, s.Input, 2*size)
			assert.Equal(t, s.Challenge.Public, s.Input[:size])
			assert.Equal(t, s.Miner.Public, s.Input[size:])
			assert.NotEqual(t, s.Challenge.Public, s.Miner.Public)
		})
	}
}

func TestSolanaAddressIsBase58PublicKey(t *testing.T) {
	id, err := New(Solana)
	require.NoError(t, err)
	decoded, err := base58.Decode(id.Address)
	require.NoError(t, err)
	assert.Equal(t, id.Public, decoded)
}

func TestEthereumAddress(t *testing.T) {
	id, err := New(Ethereum)
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(id.Address))
	assert.Equal(t, common.HexToAddress(id.Address).Bytes(), id.Public)
}

func TestBitcoinAddress(t *testing.T) {
	id, err := New(Bitcoin)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id.Address, "bc1q"))
	assert.Contains(t, []byte{0x02, 0x03}, id.Public[0])

	hrp, data, err := bech32.Decode(id.Address)
	require.NoError(t, err)
	assert.Equal(t, "bc", hrp)
	assert.Equal(t, byte(0), data[0])
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	require.NoError(t, err)
	assert.Equal(t, hash160(id.Public), program)
}

func TestP2WPKHKnownVector(t *testing.T) {
	// BIP-173 example key
	pub, err := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	require.NoError(t, err)
	addr, err := p2wpkhAddress(pub)
	require.NoError(t, err)
	assert.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", addr)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Bitcoin ")
	require.NoError(t, err)
	assert.Equal(t, Bitcoin, k)

	_, err = ParseKind("dogecoin")
	assert.Error(t, err)

	_, err = New(Kind("dogecoin"))
	assert.Error(t, err)
	assert.Zero(t, PublicSize(Kind("dogecoin")))
}
