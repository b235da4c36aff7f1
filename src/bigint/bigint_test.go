package bigint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromDecimalDigits(digits string) Int {
	var x Int
	x.NumLimbs = 1
	for i := 0; i < len(digits); i++ {
		x.MulAddDigit(10, uint64(digits[i]-'0'))
	}
	return x
}

func TestFromUint64RoundTrips(t *testing.T) {
	x := FromUint64(42)
	assert.True(t, x.FitsUint64())
	assert.Equal(t, "42", x.String())
}

func TestMulAddDigitParsesDecimal(t *testing.T) {
	x := fromDecimalDigits("12345678901234567890")
	assert.False(t, x.FitsUint64())
	assert.Equal(t, "12345678901234567890", x.String())
}

func TestMulAddDigitOverflowBeyondLimbs(t *testing.T) {
	var x Int
	x.NumLimbs = 1
	var overflow bool
	// 16 limbs * 64 bits each; feeding far more decimal digits than that
	// must eventually report overflow rather than wrapping silently.
	digits := ""
	for i := 0; i < 400; i++ {
		digits += "9"
	}
	for i := 0; i < len(digits); i++ {
		if x.MulAddDigit(10, uint64(digits[i]-'0')) {
			overflow = true
			break
		}
	}
	assert.True(t, overflow)
}

func TestAddSingleLimb(t *testing.T) {
	x := FromUint64(5)
	y := FromUint64(7)
	sum := Add(x, y)
	assert.Equal(t, "12", sum.String())
}

func TestAddCarriesAcrossLimbs(t *testing.T) {
	x := FromUint64(^uint64(0))
	y := FromUint64(1)
	sum := Add(x, y)
	require.Equal(t, 2, sum.NumLimbs)
	assert.Equal(t, "18446744073709551616", sum.String())
}

func TestZero(t *testing.T) {
	x := FromUint64(0)
	assert.True(t, x.Zero())
	assert.Equal(t, "0", x.String())
}

func TestStringAtSixtyFourBitBoundary(t *testing.T) {
	// 2^64 exactly; the seed scenario from spec 8 (0x10000000000000000).
	x := fromDecimalDigits("18446744073709551616")
	assert.False(t, x.FitsUint64())
	assert.Equal(t, 2, x.NumLimbs)
	assert.Equal(t, "18446744073709551616", x.String())
}
