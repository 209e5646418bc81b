package fao56

import (
	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
)

// DelayAssessment is the outcome of weighing a deficit against the forecast.
type DelayAssessment struct {
	ShouldDelay      bool
	ExpectedPrecipMM float64 // sum of probability-weighted precipitation over the horizon
	DaysToRelief     int     // 1-based day the cumulative expectation covers the bar; 0 if never
}

// AssessDelay decides whether an irrigation deficit should be deferred in
// favour of forecast rain. The expectation only counts days inside the
// configured horizon; the delay triggers when the cumulative expected
// effective precipitation reaches DelayFraction of the deficit within
// MaxDaysToRelief days. An empty or too-short window is treated
// conservatively (no delay) and reported as a non-fatal warning.
func AssessDelay(window []messages.ForecastDay, deficitMM float64, pol entities.DecisionPolicy) (DelayAssessment, error) {
	if len(window) == 0 {
		return DelayAssessment{}, &model.DataUnavailableError{Source: "forecast", Reason: "empty forecast window"}
	}
	var warn error
	if len(window) < pol.MinForecastDays {
		warn = &model.DataUnavailableError{
			Source: "forecast",
			Reason: "window shorter than required minimum",
		}
	}

	days := len(window)
	if days > pol.ForecastHorizonDays {
		days = pol.ForecastHorizonDays
	}

	bar := pol.DelayFraction * deficitMM
	var out DelayAssessment
	cum := 0.0
	for i := 0; i < days; i++ {
		p := clamp(window[i].RainProbability, 0, 1)
		mm := window[i].RainMM
		if mm < 0 {
			mm = 0
		}
		cum += p * mm
		if out.DaysToRelief == 0 && deficitMM > 0 && cum >= bar {
			out.DaysToRelief = i + 1
		}
	}
	out.ExpectedPrecipMM = cum

	out.ShouldDelay = deficitMM > 0 &&
		out.ExpectedPrecipMM >= bar &&
		out.DaysToRelief > 0 &&
		out.DaysToRelief <= pol.MaxDaysToRelief
	return out, warn
}
