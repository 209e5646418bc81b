package entities

import "fmt"

// SoilThresholds are the volumetric water-content limits of a profile,
// expressed as fractions (m3/m3).
type SoilThresholds struct {
	PWP float64 `json:"pwp"` // permanent wilting point
	FC  float64 `json:"fc"`  // field capacity
	Sat float64 `json:"sat"` // saturation
}

func (t SoilThresholds) Validate() error {
	if !(0 <= t.PWP && t.PWP < t.FC && t.FC < t.Sat && t.Sat <= 1) {
		return fmt.Errorf("soil thresholds: want 0 <= pwp < fc < sat <= 1, got pwp=%.3f fc=%.3f sat=%.3f", t.PWP, t.FC, t.Sat)
	}
	return nil
}

// SoilProfile describes one field's soil for the water balance.
type SoilProfile struct {
	Thresholds SoilThresholds `json:"thresholds"`

	// DepletionFraction is the FAO-56 p value before the daily ETc adjustment.
	DepletionFraction float64 `json:"depletion_fraction"`

	// Surface evaporation layer.
	EvapLayerDepthM float64 `json:"evap_layer_depth_m"` // Ze [m]
	REWmm           float64 `json:"rew_mm"`             // readily evaporable water

	// Delivery effectiveness factors applied to irrigation and rain depths.
	Efficiency     float64 `json:"efficiency"`
	RainEfficiency float64 `json:"rain_efficiency"`
}

func (p SoilProfile) Validate() error {
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	if p.DepletionFraction <= 0 || p.DepletionFraction >= 1 {
		return fmt.Errorf("soil profile: depletion fraction %.3f outside (0,1)", p.DepletionFraction)
	}
	if p.EvapLayerDepthM <= 0 || p.REWmm < 0 {
		return fmt.Errorf("soil profile: evaporation layer invalid (Ze=%.3f REW=%.1f)", p.EvapLayerDepthM, p.REWmm)
	}
	if p.Efficiency <= 0 || p.Efficiency > 1 || p.RainEfficiency <= 0 || p.RainEfficiency > 1 {
		return fmt.Errorf("soil profile: efficiency factors must be in (0,1]")
	}
	return nil
}

// DefaultSoilProfile is the loam profile applied when a field config carries
// no soil section. Threshold values match the survey defaults used by the
// sensor fallback path (fc=25.0%, pwp=15.2%, sat=35.5%).
func DefaultSoilProfile() SoilProfile {
	return SoilProfile{
		Thresholds:        SoilThresholds{PWP: 0.152, FC: 0.250, Sat: 0.355},
		DepletionFraction: 0.55,
		EvapLayerDepthM:   0.10,
		REWmm:             9,
		Efficiency:        1.0,
		RainEfficiency:    1.0,
	}
}
