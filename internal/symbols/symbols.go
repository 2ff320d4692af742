// Package symbols maps on-chain token symbols to centralized exchange pairs.
package symbols

import "strings"

// Normalize uppercases the symbol and strips a single wrapped-asset "W" prefix
// (WETH -> ETH, WBTC -> BTC). A bare "W" is returned unchanged.
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) > 1 && strings.HasPrefix(s, "W") {
		return s[1:]
	}
	return s
}

// BinancePair returns the USDT spot pair, e.g. ETHUSDT
func BinancePair(symbol string) string {
	return Normalize(symbol) + "USDT"
}

// CoinbasePair returns the USD product id, e.g. ETH-USD
func CoinbasePair(symbol string) string {
	return Normalize(symbol) + "-USD"
}
