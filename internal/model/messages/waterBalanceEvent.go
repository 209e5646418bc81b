package messages

import "time"

// WaterBalanceEvent is the committed end-of-day snapshot published for the
// persistence sink after every successful decision commit.
type WaterBalanceEvent struct {
	FieldID   string    `json:"field_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	DrMM      float64   `json:"dr_mm"`
	DeMM      float64   `json:"de_mm"`
	TAWmm     float64   `json:"taw_mm"`
	RAWmm     float64   `json:"raw_mm"`
	Ks        float64   `json:"ks"`
	ET0mm     float64   `json:"et0_mm"`
	ETcMM     float64   `json:"etc_mm"`
	Timestamp time.Time `json:"timestamp"`
}
