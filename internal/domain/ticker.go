package domain

// Ticker is a 24h market snapshot. It is immutable once received and is
// superseded by the next fetch, never mutated.
type Ticker struct {
	Symbol      string  `json:"symbol"`
	Last        float64 `json:"last"`
	Bid         float64 `json:"bid"`
	Ask         float64 `json:"ask"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Percentage  float64 `json:"percentage"` // 24h open->close change, percent
	Timestamp   int64   `json:"timestamp"`  // ms
	DatetimeUTC string  `json:"datetime"`
}
