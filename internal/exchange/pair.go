package exchange

import (
	"strings"
)

// DefaultQuote is the quote currency used when none is configured.
const DefaultQuote = "GBP"

// FormatPair builds an exchange product id such as "BTC-GBP". A base that
// already contains a hyphen is treated as a formatted id and returned as is.
// An empty quote means DefaultQuote.
func FormatPair(base, quote string) string {
	if strings.Contains(base, "-") {
		return base
	}
	if quote == "" {
		quote = DefaultQuote
	}
	return strings.ToUpper(base) + "-" + strings.ToUpper(quote)
}
