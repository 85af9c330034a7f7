package symbol

import (
	"strings"
)

// Symbol is the canonical BASE/QUOTE pair used internally. Providers each want
// their own spelling; conversions live here so adapters stay dumb about it.
type Symbol struct {
	Base  string
	Quote string
}

// Internal renders the canonical "BASE/QUOTE" form.
func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Binance renders the concatenated futures form, e.g. "BTCUSDT".
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// BaseLower renders the lowercase base asset, the shape id-keyed HTTP APIs
// (CoinGecko and friends) tend to want.
func (s Symbol) BaseLower() string {
	return strings.ToLower(s.Base)
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "FDUSD", "BTC", "ETH", "BNB"}

// Parse accepts "BTC/USDT", "btcusdt", "BTC-USDT" or "BTC/USDT:USDT" and
// returns the canonical pair. Unknown shapes yield the zero Symbol.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, "-", "/")

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		base := strings.TrimSpace(parts[0])
		quote := strings.TrimSpace(parts[1])
		if base == "" || quote == "" {
			return Symbol{}
		}
		return Symbol{Base: base, Quote: quote}
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}

	return Symbol{}
}

// Normalize returns the canonical "BASE/QUOTE" form or "" when unparseable.
func Normalize(s string) string {
	return Parse(s).Internal()
}

// NormalizeList normalizes and dedupes, dropping anything unparseable.
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
