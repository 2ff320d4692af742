package uniswap

import "time"

// Config holds configuration for the Uniswap v3 subgraph source
type Config struct {
	GatewayURL string
	APIKey     string
	// Subgraphs maps chain id to subgraph deployment id
	Subgraphs map[string]string
	Timeout   time.Duration
}

// DefaultSubgraphs are the Uniswap v3 deployments on The Graph's decentralized network
var DefaultSubgraphs = map[string]string{
	"1":     "5zvR82QoaXYFyDEKLZ9t6v9adgnptxYpKpSbxtgVENFV",
	"137":   "3hCPRGf4z88VC5rsBKU5AA9FBBq5nF3jbKJG7VZCbhjm",
	"10":    "Cghf4LfVqPiFw6fp6Y5X5Ubc8UpmUhSfJL82zwiBFLaj",
	"42161": "FbCGRftH4a3yZugY7TnbYgPJVEv2LvMT6oF1fxPe9aJM",
}

// GraphQLRequest is the POST body sent to the subgraph
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse represents the subgraph response envelope
type GraphQLResponse struct {
	Data   *TokenPriceData `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// GraphQLError is a single GraphQL error entry
type GraphQLError struct {
	Message string `json:"message"`
}

// TokenPriceData is the payload of the token price query
type TokenPriceData struct {
	Token  *TokenEntity  `json:"token"`
	Bundle *BundleEntity `json:"bundle"`
}

// TokenEntity is the subgraph Token entity subset we query
type TokenEntity struct {
	Symbol     string `json:"symbol"`
	DerivedETH string `json:"derivedETH"`
}

// BundleEntity carries the USD price of ETH
type BundleEntity struct {
	EthPriceUSD string `json:"ethPriceUSD"`
}
