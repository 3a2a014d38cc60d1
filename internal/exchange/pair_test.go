package exchange

import "testing"

func TestFormatPair(t *testing.T) {
	cases := []struct {
		base, quote, want string
	}{
		{"eth", "", "ETH-GBP"},
		{"btc", "", "BTC-GBP"},
		{"btc", "usd", "BTC-USD"},
		{"BTC-USD", "", "BTC-USD"},
		{"btc-eur", "GBP", "btc-eur"},
	}
	for _, c := range cases {
		if got := FormatPair(c.base, c.quote); got != c.want {
			t.Errorf("FormatPair(%q, %q) = %q; want %q", c.base, c.quote, got, c.want)
		}
	}
}
