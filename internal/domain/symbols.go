package domain

// SymbolCatalog symbols offered to clients, grouped by market.
type SymbolCatalog struct {
	Crypto []string `json:"crypto"`
	Forex  []string `json:"forex"`
	Stocks []string `json:"stocks"`
}

// Total returns the number of symbols across all markets.
func (c SymbolCatalog) Total() int {
	return len(c.Crypto) + len(c.Forex) + len(c.Stocks)
}

// SupportedSymbols returns the static catalog.
func SupportedSymbols() SymbolCatalog {
	return SymbolCatalog{
		Crypto: []string{
			"BTC-USD", "ETH-USD", "ADA-USD", "SOL-USD", "DOGE-USD",
			"DOT-USD", "AVAX-USD", "MATIC-USD", "LINK-USD", "UNI-USD",
		},
		Forex: []string{
			"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD",
			"USDCAD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY",
		},
		Stocks: []string{
			"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA",
			"NVDA", "META", "NFLX", "ADBE", "CRM",
		},
	}
}
