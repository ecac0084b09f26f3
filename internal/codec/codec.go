package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/NethermindEth/juno/core/felt"
)

// ErrConversion marks a value that cannot be represented in the requested type.
var ErrConversion = errors.New("conversion error")

// MaxShortStringLen is the number of ASCII characters that fit in one felt.
const MaxShortStringLen = 31

var (
	uint128Mask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	uint256Max  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// BytesFromInt returns the minimal big-endian representation of value.
// Zero maps to an empty slice.
func BytesFromInt(value *big.Int) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil integer", ErrConversion)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative integer %s", ErrConversion, value)
	}
	return value.Bytes(), nil
}

// StringFromFelt decodes a felt holding packed bytes as UTF-8.
func StringFromFelt(value *big.Int) (string, error) {
	raw, err := BytesFromInt(value)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: felt 0x%x is not valid utf-8", ErrConversion, raw)
	}
	return string(raw), nil
}

// FeltFromString packs a short ASCII string into a big-endian integer.
func FeltFromString(text string) (*big.Int, error) {
	if len(text) > MaxShortStringLen {
		return nil, fmt.Errorf("%w: cannot convert %q to felt because it has more than %d chars (%d)",
			ErrConversion, text, MaxShortStringLen, len(text))
	}
	for i := 0; i < len(text); i++ {
		if text[i] > 0x7f {
			return nil, fmt.Errorf("%w: %q contains non-ascii characters", ErrConversion, text)
		}
	}
	return new(big.Int).SetBytes([]byte(text)), nil
}

// SplitUint256 returns the low and high 128-bit halves of value.
func SplitUint256(value *big.Int) (low, high *big.Int, err error) {
	if value == nil || value.Sign() < 0 || value.Cmp(uint256Max) > 0 {
		return nil, nil, fmt.Errorf("%w: %v does not fit in uint256", ErrConversion, value)
	}
	low = new(big.Int).And(value, uint128Mask)
	high = new(big.Int).Rsh(value, 128)
	return low, high, nil
}

// Uint256Map is SplitUint256 in the {"low", "high"} shape used by Cairo structs.
func Uint256Map(value *big.Int) (map[string]*big.Int, error) {
	low, high, err := SplitUint256(value)
	if err != nil {
		return nil, err
	}
	return map[string]*big.Int{"low": low, "high": high}, nil
}

// JoinUint256 is the inverse of SplitUint256.
func JoinUint256(low, high *big.Int) *big.Int {
	out := new(big.Int).Lsh(high, 128)
	return out.Or(out, low)
}

// FeltFromWords assembles a felt from the four 64-bit words used by the
// Apibara stream, most significant first.
func FeltFromWords(loLo, loHi, hiLo, hiHi uint64) *felt.Felt {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[0:8], loLo)
	binary.BigEndian.PutUint64(buf[8:16], loHi)
	binary.BigEndian.PutUint64(buf[16:24], hiLo)
	binary.BigEndian.PutUint64(buf[24:32], hiHi)
	return new(felt.Felt).SetBytes(buf[:])
}

// BigFromFelt converts a felt into a fresh big.Int.
func BigFromFelt(f *felt.Felt) *big.Int {
	if f == nil {
		return new(big.Int)
	}
	return f.BigInt(new(big.Int))
}
