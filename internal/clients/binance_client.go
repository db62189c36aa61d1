package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a Binance client for public market data. A non-empty
// baseURL overrides the production endpoint.
func NewBinanceClient(baseURL string) *binance.Client {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}

	return client
}
