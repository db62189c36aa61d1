package providers

import "strings"

const stableQuote = "USDT"

// ExchangeSymbol maps catalog symbols to exchange pair symbols:
// "BTC-USD" becomes "BTCUSDT", "ETH/USDT" becomes "ETHUSDT".
func ExchangeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("-", "", "/", "", "_", "", ".", "").Replace(s)
	if strings.HasSuffix(s, "USD") {
		s += "T"
	}

	return s
}
