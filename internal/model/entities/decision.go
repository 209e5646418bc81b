package entities

import "time"

// Decision outcomes.
const (
	OutcomeNoDeficit    = "no_deficit"
	OutcomeIrrigate     = "irrigate"
	OutcomeDelayed      = "delayed"
	OutcomeBelowMinimum = "below_minimum"
)

// IrrigationDecision is the discretized recommendation for one field-day.
// Immutable once produced; recomputing the same date from identical inputs
// yields an identical value.
type IrrigationDecision struct {
	ID      string    `json:"id"`
	FieldID string    `json:"field_id"`
	Date    time.Time `json:"date"`

	Outcome  string  `json:"outcome"`
	AmountMM float64 `json:"amount_mm"` // member of {0, step, ..., max}
	Delayed  bool    `json:"delayed"`

	Ks         float64 `json:"ks"`
	DrMM       float64 `json:"dr_mm"`
	RAWmm      float64 `json:"raw_mm"`
	ET0mm      float64 `json:"et0_mm"`
	ETcMM      float64 `json:"etc_mm"`
	ExpectedMM float64 `json:"expected_precip_mm"` // probability-weighted forecast precip

	IsRealData bool     `json:"is_real_data"`
	Message    string   `json:"message"`
	Warnings   []string `json:"warnings,omitempty"`
}
