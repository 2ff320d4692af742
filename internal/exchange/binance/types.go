package binance

// Config holds configuration for Binance spot price lookups
type Config struct {
	BaseURL   string
	APIKey    string
	SecretKey string
}

// invalidSymbolCode is returned by Binance for unknown trading pairs
const invalidSymbolCode = -1121
