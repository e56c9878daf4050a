package yahoo

import "time"

// DailyPrice is one daily observation from the chart API. AdjClose is nil
// when Yahoo returns no adjusted close for the day.
type DailyPrice struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	AdjClose *float64  `json:"adj_close,omitempty"`
}
