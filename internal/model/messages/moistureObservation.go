package messages

import "time"

// Data quality labels carried on observations. "real" means the probe
// reading was used as-is, "partial" means some calibration values were
// defaulted, "default" means the whole observation is a fallback.
const (
	QualityReal    = "real"
	QualityPartial = "partial"
	QualityDefault = "default"
)

// MoistureObservation holds one soil-moisture reading together with the
// probe calibration thresholds, either raw from a sensor or averaged by the
// aggregator. Volumetric values are percent (m3/m3 * 100).
type MoistureObservation struct {
	FieldID  string `json:"field_id"`
	SensorID string `json:"sensor_id"`

	MoisturePct float64 `json:"moisture_pct"`
	PWPPct      float64 `json:"pwp_pct"`
	FCPct       float64 `json:"fc_pct"`
	SatPct      float64 `json:"sat_pct"`

	DataQuality string `json:"data_quality"` // real | partial | default
	IsRealData  bool   `json:"is_real_data"`
	Aggregated  bool   `json:"aggregated"`

	Timestamp time.Time `json:"timestamp"`
}
