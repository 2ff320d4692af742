package okx

import "time"

// Config holds configuration for the OKX DEX market API
type Config struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	Passphrase string
	Timeout    time.Duration
}

// TokenRef is the token selector sent in price-info request bodies
type TokenRef struct {
	ChainIndex           string `json:"chainIndex"`
	TokenContractAddress string `json:"tokenContractAddress"`
}

// PriceInfoResponse represents the REST response for /api/v5/dex/market/price-info
type PriceInfoResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []PriceInfo `json:"data"`
}

// PriceInfo is a single token's market summary
type PriceInfo struct {
	ChainIndex           string `json:"chainIndex"`
	TokenContractAddress string `json:"tokenContractAddress"`
	Time                 string `json:"time"`
	Price                string `json:"price"`
	PriceChange24H       string `json:"priceChange24H"`
	Volume24H            string `json:"volume24H"`
	MarketCap            string `json:"marketCap"`
}
