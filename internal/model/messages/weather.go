package messages

import "time"

// WeatherRecord is one day of observed weather, immutable once ingested.
// Units: temperature degC, relative humidity percent, wind m/s at 2 m,
// solar radiation MJ/m2/day, precipitation mm.
type WeatherRecord struct {
	Date time.Time `json:"date"`

	TminC    float64 `json:"tmin_c"`
	TmaxC    float64 `json:"tmax_c"`
	RHminPct float64 `json:"rhmin_pct"`
	RHmaxPct float64 `json:"rhmax_pct"`
	WindMS   float64 `json:"wind_ms"`
	SolarMJ  float64 `json:"solar_mj"`
	RainMM   float64 `json:"rain_mm"`
}

// ForecastDay is the forecast variant of a weather record: a future day with
// a precipitation probability in [0,1].
type ForecastDay struct {
	Date time.Time `json:"date"`

	TminC           float64 `json:"tmin_c"`
	TmaxC           float64 `json:"tmax_c"`
	RainMM          float64 `json:"rain_mm"`
	RainProbability float64 `json:"rain_probability"`
}
