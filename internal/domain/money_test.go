package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	micros, err := ParseAmount("40.00")
	require.NoError(t, err)
	assert.Equal(t, int64(40_000_000), micros)

	micros, err = ParseAmount(" 0.000001 ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), micros)

	micros, err = ParseAmount("100")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), micros)

	_, err = ParseAmount("0.0000001")
	assert.Error(t, err, "sub-micro precision must be rejected")

	_, err = ParseAmount("not-a-number")
	assert.Error(t, err)
}

func TestFormatMicros(t *testing.T) {
	assert.Equal(t, "40.00", FormatMicros(40_000_000))
	assert.Equal(t, "0.00", FormatMicros(0))
	assert.Equal(t, "-12.50", FormatMicros(-12_500_000))
}

func TestMoneyRoundTrip(t *testing.T) {
	m := NewMoney(1_234_560, "USD")
	assert.Equal(t, int64(1_234_560), FromDecimal(m.ToDecimal()))
	assert.Equal(t, "1.23 USD", m.String())
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("USD"))
	assert.True(t, ValidCurrency("EUR"))
	assert.False(t, ValidCurrency("usd"))
	assert.False(t, ValidCurrency("US"))
	assert.False(t, ValidCurrency("USDT"))
	assert.False(t, ValidCurrency(""))
}
