package coinbase

import "time"

// Config holds configuration for the Coinbase price API
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// SpotPriceResponse is the body of GET /v2/prices/{pair}/spot
type SpotPriceResponse struct {
	Data   *SpotPrice `json:"data"`
	Errors []APIError `json:"errors,omitempty"`
}

// SpotPrice is a single spot price entry
type SpotPrice struct {
	Amount   string `json:"amount"`
	Base     string `json:"base"`
	Currency string `json:"currency"`
}

// APIError is an entry of the errors array
type APIError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
