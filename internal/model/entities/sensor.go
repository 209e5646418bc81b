package entities

// SensorState indicates whether the irrigation valve is on or off.
type SensorState string

const (
	StateOff SensorState = "off"
	StateOn  SensorState = "on"
)

// Sensor represents a single soil-moisture probe with its attached valve.
type Sensor struct {
	FieldID   string      `json:"field_id"`
	ID        string      `json:"id"` // unique sensor identifier
	Longitude float64     `json:"longitude"`
	Latitude  float64     `json:"latitude"`
	DepthCm   int         `json:"depth_cm"` // probe installation depth
	State     SensorState `json:"state"`    // irrigation on/off
	FlowLpm   float64     `json:"flow_rate,omitempty"` // line capacity [l/min]
	AreaM2    float64     `json:"area_m2,omitempty"`   // irrigated surface [m^2]
}

// MmPerMinute converts the line flow into an applied depth rate for the
// sensor's surface. Zero when the sensor has no usable flow/area data.
func (s Sensor) MmPerMinute() float64 {
	if s.FlowLpm <= 0 || s.AreaM2 <= 0 {
		return 0
	}
	// 1 l over 1 m^2 equals 1 mm of depth.
	return s.FlowLpm / s.AreaM2
}
