package cairo

import (
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/crypto"
)

var mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the starknet keccak of name: keccak256 truncated to 250 bits.
func Selector(name string) *felt.Felt {
	h := new(big.Int).SetBytes(crypto.Keccak256([]byte(name)))
	h.And(h, mask250)
	return new(felt.Felt).SetBigInt(h)
}
