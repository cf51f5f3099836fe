package domain

// StatsRecord summarizes a price series. Recomputed on demand, never
// persisted.
type StatsRecord struct {
	Current  float64 `json:"current"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Change24 float64 `json:"change24h"` // percent
	Volume   float64 `json:"volume"`
}
