package symbols

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"WETH", "ETH"},
		{"wbtc", "BTC"},
		{" uni ", "UNI"},
		{"W", "W"},
		{"", ""},
		{"LINK", "LINK"},
		// Only the first W is stripped
		{"WWT", "WT"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestPairs(t *testing.T) {
	if got := BinancePair("WETH"); got != "ETHUSDT" {
		t.Errorf("BinancePair = %s", got)
	}
	if got := CoinbasePair("aave"); got != "AAVE-USD" {
		t.Errorf("CoinbasePair = %s", got)
	}
}
