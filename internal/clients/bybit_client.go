package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates a Bybit client for public market data. A non-empty
// baseURL overrides the production endpoint.
func NewBybitClient(baseURL string) *bybit.Client {
	client := bybit.NewClient()
	if baseURL != "" {
		client = client.WithBaseURL(baseURL)
	}

	return client
}
