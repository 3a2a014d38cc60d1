package models

// PriceSnapshot is the most recent trade of one pair, or an in-band error.
type PriceSnapshot struct {
	Price string `json:"price,omitempty"`
	Time  string `json:"time,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the snapshot carries a price rather than an error.
func (p PriceSnapshot) OK() bool {
	return p.Error == ""
}

// CandlePoint is one OHLCV bucket; every numeric field keeps the upstream text.
type CandlePoint struct {
	Time   string `json:"time"`
	Low    string `json:"low"`
	High   string `json:"high"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// CandleSeries is the per-holding market data of the recommendations route.
type CandleSeries struct {
	Currency string        `json:"currency"`
	Data     []CandlePoint `json:"data"`
}

// MarketAnalysis bundles price and candles for the analysis route.
type MarketAnalysis struct {
	Currency       string        `json:"currency"`
	CurrentPrice   PriceSnapshot `json:"current_price"`
	HistoricalData []CandlePoint `json:"historical_data"`
}
