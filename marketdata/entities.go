package marketdata

// Bar is one OHLC aggregate of the chart history. Time is in epoch seconds,
// which is the resolution the candlestick renderer expects. Bars are
// immutable once received; a bar pushed again for the same time replaces the
// earlier one during a merge.
type Bar struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// LivePrices is the response of the alternate polling endpoint.
type LivePrices struct {
	Prices         map[string]float64 `json:"prices"`
	PortfolioValue *float64           `json:"portfolioValue"`
}
