package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTC/USDT", "BTC", "USDT"},
		{"btc/usdt", "BTC", "USDT"},
		{"ETHUSDT", "ETH", "USDT"},
		{"SOL-USDC", "SOL", "USDC"},
		{"BTC/USDT:USDT", "BTC", "USDT"},
		{" doge/usdt ", "DOGE", "USDT"},
		{"USDT", "", ""},
		{"", "", ""},
		{"???", "", ""},
	}
	for _, tc := range cases {
		sym := Parse(tc.in)
		assert.Equal(t, tc.base, sym.Base, "base for %q", tc.in)
		assert.Equal(t, tc.quote, sym.Quote, "quote for %q", tc.in)
	}
}

func TestRenderings(t *testing.T) {
	sym := Parse("btc/usdt")
	assert.Equal(t, "BTC/USDT", sym.Internal())
	assert.Equal(t, "BTCUSDT", sym.Binance())
	assert.Equal(t, "btc", sym.BaseLower())

	assert.Empty(t, Symbol{}.Internal())
	assert.Empty(t, Symbol{}.Binance())
}

func TestNormalizeList(t *testing.T) {
	out := NormalizeList([]string{"btc/usdt", "BTCUSDT", "eth/usdt", "", "garbage"})
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, out)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("BTC/USDT"))
	assert.False(t, IsValid("USDT"))
}
