package messages

import "time"

// IrrigationResultEvent è pubblicato dal device-service al termine (o fallimento)
// di un ciclo di irrigazione. MmApplied è la dose realmente erogata.
type IrrigationResultEvent struct {
	FieldID    string    `json:"field_id"`
	SensorID   string    `json:"sensor_id"`
	DecisionID string    `json:"decision_id"`
	Status     string    `json:"status"`     // "OK" | "FAIL"
	MmApplied  float64   `json:"mm_applied"` // mm erogati (>=0)
	Reason     string    `json:"reason"`     // "done" | "offline" | "stopped"
	StartedAt  time.Time `json:"started_at"`
	Timestamp  time.Time `json:"timestamp"`
}
