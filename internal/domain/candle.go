package domain

// Candle is one OHLCV bar. Time is a Unix timestamp in milliseconds.
// Within a fetched sequence timestamps are strictly increasing, but gaps
// (missing bars) are possible and must be detected by the consumer.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
