package messages

import "time"

// IrrigationDecisionEvent is published by the decision engine to record WHY/WHAT was decided.
type IrrigationDecisionEvent struct {
	DecisionID string    `json:"decision_id"`
	FieldID    string    `json:"field_id"`
	SensorID   string    `json:"sensor_id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Stage      string    `json:"stage"`
	Outcome    string    `json:"outcome"`
	AmountMM   float64   `json:"amount_mm"`
	Delayed    bool      `json:"delayed"`
	Ks         float64   `json:"ks"`
	DrMM       float64   `json:"dr_mm"`
	ExpectedMM float64   `json:"expected_precip_mm"`
	IsRealData bool      `json:"is_real_data"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}
