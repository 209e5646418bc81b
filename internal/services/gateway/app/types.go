package app

import (
	"encoding/json"
	"strconv"
)

// ---------- Upstream payloads ----------

type SensorReading struct {
	FieldID     string  `json:"field_id"`
	SensorID    string  `json:"sensor_id"`
	MoisturePct float64 `json:"moisture_pct"`
	DataQuality string  `json:"data_quality,omitempty"`
	IsRealData  bool    `json:"is_real_data"`
	Aggregated  bool    `json:"aggregated"`
	Time        string  `json:"time"` // RFC3339
}

func (p *SensorReading) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if v, ok := m["field_id"].(string); ok {
		p.FieldID = v
	}
	if v, ok := m["sensor_id"].(string); ok {
		p.SensorID = v
	}
	if v, ok := m["data_quality"].(string); ok {
		p.DataQuality = v
	}
	if v, ok := m["is_real_data"].(bool); ok {
		p.IsRealData = v
	}
	// aggregated: default false se mancante
	if v, ok := m["aggregated"].(bool); ok {
		p.Aggregated = v
	}
	// time / timestamp
	if t, ok := m["timestamp"].(string); ok && t != "" {
		p.Time = t
	} else if t, ok := m["time"].(string); ok && t != "" {
		p.Time = t
	}
	// moisture come numero o stringa
	if n, ok := numField(m, "moisture_pct"); ok {
		p.MoisturePct = n
	} else if n, ok := numField(m, "moisture"); ok {
		p.MoisturePct = n
	}
	return nil
}

type Irrigation struct {
	SensorID string  `json:"sensor_id,omitempty"`
	Amount   float64 `json:"amount"` // mm erogati (accettiamo anche "amount_mm")
	Time     string  `json:"time"`   // RFC3339
}

func (i *Irrigation) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if v, ok := m["sensor_id"].(string); ok {
		i.SensorID = v
	}
	if t, ok := m["time"].(string); ok && t != "" {
		i.Time = t
	} else if t, ok := m["timestamp"].(string); ok && t != "" {
		i.Time = t
	}
	if n, ok := numField(m, "amount"); ok {
		i.Amount = n
	} else if n, ok := numField(m, "amount_mm"); ok {
		i.Amount = n
	}
	return nil
}

// numField legge un numero JSON anche quando arriva serializzato come stringa
func numField(m map[string]any, key string) (float64, bool) {
	mv, ok := m[key]
	if !ok {
		return 0, false
	}
	switch x := mv.(type) {
	case float64:
		return x, true
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, true
		}
	case bool:
		if x {
			return 1, true
		}
	}
	return 0, false
}

type BalanceRow struct {
	FieldID   string  `json:"field_id"`
	Date      string  `json:"date"`
	DrMM      float64 `json:"dr_mm"`
	DeMM      float64 `json:"de_mm"`
	TAWmm     float64 `json:"taw_mm"`
	RAWmm     float64 `json:"raw_mm"`
	Ks        float64 `json:"ks"`
	ET0mm     float64 `json:"et0_mm"`
	ETcMM     float64 `json:"etc_mm"`
	Timestamp string  `json:"timestamp"`
}

type DashboardData struct {
	Sensors     []SensorReading    `json:"sensors"`
	Balances    []BalanceRow       `json:"balances"`
	Irrigations []Irrigation       `json:"irrigations"`
	Stats       map[string]float64 `json:"stats"`
	Degraded    []string           `json:"degraded,omitempty"` // upstreams serviti da cache o saltati
}
