package entities

import "fmt"

// DecisionPolicy carries the tunables of the irrigation decision: stress
// detection, dose discretization and the forecast delay rule. Loaded once
// and treated as read-only for the engine's lifetime.
type DecisionPolicy struct {
	// Ks below this value flags a water deficit.
	StressThreshold float64 `json:"stress_threshold"`

	// Dose ladder: amounts are multiples of StepMM, at least MinApplicationMM,
	// at most MaxApplicationMM.
	StepMM           float64 `json:"step_mm"`
	MinApplicationMM float64 `json:"min_application_mm"`
	MaxApplicationMM float64 `json:"max_application_mm"`

	// Delay rule: defer irrigation when the expected effective precipitation
	// over the forecast horizon reaches DelayFraction of the deficit within
	// MaxDaysToRelief days.
	DelayFraction   float64 `json:"delay_fraction"`
	MaxDaysToRelief int     `json:"max_days_to_relief"`

	// Forecast window bounds.
	ForecastHorizonDays int `json:"forecast_horizon_days"`
	MinForecastDays     int `json:"min_forecast_days"`
}

func (p DecisionPolicy) Validate() error {
	if p.StressThreshold <= 0 || p.StressThreshold > 1 {
		return fmt.Errorf("policy: stress threshold %.2f outside (0,1]", p.StressThreshold)
	}
	if p.StepMM <= 0 {
		return fmt.Errorf("policy: step must be > 0")
	}
	if p.MinApplicationMM < 0 || p.MaxApplicationMM <= 0 || p.MinApplicationMM > p.MaxApplicationMM {
		return fmt.Errorf("policy: application bounds invalid (min=%.1f max=%.1f)", p.MinApplicationMM, p.MaxApplicationMM)
	}
	if p.DelayFraction <= 0 || p.DelayFraction > 1 {
		return fmt.Errorf("policy: delay fraction %.2f outside (0,1]", p.DelayFraction)
	}
	if p.MaxDaysToRelief <= 0 || p.ForecastHorizonDays <= 0 {
		return fmt.Errorf("policy: delay/horizon days must be > 0")
	}
	if p.MinForecastDays < 0 || p.MinForecastDays > p.ForecastHorizonDays {
		return fmt.Errorf("policy: min forecast days %d outside [0,%d]", p.MinForecastDays, p.ForecastHorizonDays)
	}
	return nil
}

// DefaultDecisionPolicy returns the stock tunables: 5 mm ladder up to 50 mm,
// deficit below 0.8 Ks, delay when half the deficit is expected as rain
// within three days, 15-day forecast horizon.
func DefaultDecisionPolicy() DecisionPolicy {
	return DecisionPolicy{
		StressThreshold:     0.80,
		StepMM:              5,
		MinApplicationMM:    5,
		MaxApplicationMM:    50,
		DelayFraction:       0.50,
		MaxDaysToRelief:     3,
		ForecastHorizonDays: 15,
		MinForecastDays:     3,
	}
}
