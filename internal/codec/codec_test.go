package codec

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesFromInt(t *testing.T) {
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(255),
		big.NewInt(256),
		big.NewInt(1000),
		new(big.Int).Lsh(big.NewInt(1), 200),
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 251), big.NewInt(1)),
	}

	for _, n := range cases {
		raw, err := BytesFromInt(n)
		require.NoError(t, err)
		require.Equal(t, (n.BitLen()+7)/8, len(raw), "length for %s", n)
		if len(raw) > 0 {
			require.NotZero(t, raw[0], "leading zero byte for %s", n)
		}
		require.Zero(t, n.Cmp(new(big.Int).SetBytes(raw)), "round trip for %s", n)
	}

	raw, err := BytesFromInt(big.NewInt(0))
	require.NoError(t, err)
	require.Len(t, raw, 0)

	_, err = BytesFromInt(big.NewInt(-1))
	require.True(t, errors.Is(err, ErrConversion))
}

func TestShortStringRoundTrip(t *testing.T) {
	inputs := []string{"", "a", "Transfer", "hello world", strings.Repeat("z", MaxShortStringLen)}

	for _, s := range inputs {
		packed, err := FeltFromString(s)
		require.NoError(t, err)

		text, err := StringFromFelt(packed)
		require.NoError(t, err)
		require.Equal(t, s, text)

		again, err := FeltFromString(text)
		require.NoError(t, err)
		require.Zero(t, packed.Cmp(again))
	}
}

func TestFeltFromStringRejects(t *testing.T) {
	_, err := FeltFromString(strings.Repeat("x", MaxShortStringLen+1))
	require.ErrorIs(t, err, ErrConversion)

	_, err = FeltFromString("héllo")
	require.ErrorIs(t, err, ErrConversion)
}

func TestStringFromFeltInvalidUTF8(t *testing.T) {
	_, err := StringFromFelt(big.NewInt(0xff))
	require.ErrorIs(t, err, ErrConversion)
}

func TestSplitUint256(t *testing.T) {
	two128 := new(big.Int).Lsh(big.NewInt(1), 128)
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(42),
		new(big.Int).Sub(two128, big.NewInt(1)),
		new(big.Int).Set(two128),
		new(big.Int).Add(new(big.Int).Lsh(big.NewInt(7), 128), big.NewInt(9)),
		new(big.Int).Set(uint256Max),
	}

	for _, v := range values {
		low, high, err := SplitUint256(v)
		require.NoError(t, err)
		require.True(t, low.Sign() >= 0 && low.Cmp(two128) < 0)
		require.True(t, high.Sign() >= 0 && high.Cmp(two128) < 0)
		require.Zero(t, v.Cmp(JoinUint256(low, high)))
	}

	m, err := Uint256Map(new(big.Int).Add(new(big.Int).Lsh(big.NewInt(3), 128), big.NewInt(5)))
	require.NoError(t, err)
	require.Equal(t, int64(5), m["low"].Int64())
	require.Equal(t, int64(3), m["high"].Int64())

	_, _, err = SplitUint256(new(big.Int).Add(uint256Max, big.NewInt(1)))
	require.ErrorIs(t, err, ErrConversion)
}

func TestFeltFromWords(t *testing.T) {
	f := FeltFromWords(0, 0, 0, 1000)
	require.Equal(t, int64(1000), BigFromFelt(f).Int64())

	f = FeltFromWords(74454628635187476, 17132411491813792576, 11818884661055719754, 6184059052638882344)
	require.Equal(t, "10884171baf1914edc28d7afb619b40a4051cfae78a094a55d230f19e944a28", BigFromFelt(f).Text(16))
}
