package fao56

import (
	"math"
	"strings"

	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/messages"
)

// Physical plausibility bounds for daily weather records.
const (
	tempMinC   = -50.0
	tempMaxC   = 60.0
	windMaxMS  = 150.0
	rainMaxMM  = 1000.0
	solarMaxMJ = 50.0
)

// Validation flags returned by CheckWeather.
const (
	FlagMissingDate   = "missing_date"
	FlagTempRange     = "temperature_out_of_range"
	FlagTempOrder     = "tmax_below_tmin"
	FlagHumidityRange = "humidity_out_of_range"
	FlagHumidityOrder = "rhmax_below_rhmin"
	FlagWindRange     = "wind_out_of_range"
	FlagRainRange     = "rain_out_of_range"
	FlagSolarRange    = "solar_out_of_range"
)

// CheckWeather returns the list of plausibility flags a record violates.
// An empty list means the record is usable for reference ET.
func CheckWeather(w messages.WeatherRecord) []string {
	var flags []string
	if w.Date.IsZero() {
		flags = append(flags, FlagMissingDate)
	}
	if w.TminC < tempMinC || w.TmaxC > tempMaxC {
		flags = append(flags, FlagTempRange)
	}
	if w.TmaxC < w.TminC {
		flags = append(flags, FlagTempOrder)
	}
	if w.RHminPct < 0 || w.RHmaxPct > 100 {
		flags = append(flags, FlagHumidityRange)
	}
	if w.RHmaxPct < w.RHminPct {
		flags = append(flags, FlagHumidityOrder)
	}
	if w.WindMS < 0 || w.WindMS > windMaxMS {
		flags = append(flags, FlagWindRange)
	}
	if w.RainMM < 0 || w.RainMM > rainMaxMM {
		flags = append(flags, FlagRainRange)
	}
	if w.SolarMJ <= 0 || w.SolarMJ > solarMaxMJ {
		flags = append(flags, FlagSolarRange)
	}
	return flags
}

// ValidateWeather wraps CheckWeather into the error taxonomy.
func ValidateWeather(w messages.WeatherRecord) error {
	if flags := CheckWeather(w); len(flags) > 0 {
		return model.Validationf("weather record %s: %s", w.Date.Format("2006-01-02"), strings.Join(flags, ", "))
	}
	return nil
}

// ET0PenmanMonteith computes daily reference evapotranspiration [mm/day]
// with the FAO-56 Penman-Monteith equation for a grass reference surface
// (wind measured at 2 m, soil heat flux taken as zero on daily steps).
func ET0PenmanMonteith(w messages.WeatherRecord, latDeg, elevM float64) (float64, error) {
	if err := ValidateWeather(w); err != nil {
		return 0, err
	}

	tmean := (w.TmaxC + w.TminC) / 2

	// Vapour pressure terms [kPa].
	esTmax := satVapourPressure(w.TmaxC)
	esTmin := satVapourPressure(w.TminC)
	es := (esTmax + esTmin) / 2
	ea := (esTmin*w.RHmaxPct + esTmax*w.RHminPct) / 200

	// Slope of the vapour pressure curve and psychrometric constant.
	delta := 4098 * satVapourPressure(tmean) / math.Pow(tmean+237.3, 2)
	pressure := 101.3 * math.Pow((293-0.0065*elevM)/293, 5.26)
	gamma := 0.000665 * pressure

	// Net radiation: shortwave in minus longwave out.
	ra := extraterrestrialRadiation(latDeg, w.Date.YearDay())
	rso := (0.75 + 2e-5*elevM) * ra
	rns := (1 - 0.23) * w.SolarMJ
	relShortwave := 1.0
	if rso > 0 {
		relShortwave = math.Min(w.SolarMJ/rso, 1.0)
	}
	const sigma = 4.903e-9 // Stefan-Boltzmann [MJ K^-4 m^-2 day^-1]
	tkMax4 := math.Pow(w.TmaxC+273.16, 4)
	tkMin4 := math.Pow(w.TminC+273.16, 4)
	rnl := sigma * (tkMax4 + tkMin4) / 2 * (0.34 - 0.14*math.Sqrt(math.Max(ea, 0))) * (1.35*relShortwave - 0.35)
	rn := rns - rnl

	num := 0.408*delta*rn + gamma*900/(tmean+273)*w.WindMS*(es-ea)
	den := delta + gamma*(1+0.34*w.WindMS)
	et0 := num / den
	if math.IsNaN(et0) || math.IsInf(et0, 0) {
		return 0, &model.ComputationError{Reason: "reference ET did not converge to a finite value"}
	}
	return math.Max(et0, 0), nil
}

// ET0Hargreaves estimates reference evapotranspiration [mm/day] from the
// temperature span alone. Used for forecast days, where only min/max
// temperature is available.
func ET0Hargreaves(tminC, tmaxC, latDeg float64, yearDay int) float64 {
	ra := extraterrestrialRadiation(latDeg, yearDay)
	tmean := (tminC + tmaxC) / 2
	span := math.Max(tmaxC-tminC, 0)
	et0 := 0.0023 * (tmean + 17.8) * math.Sqrt(span) * ra * 0.408 // Ra MJ -> mm equivalent
	return math.Max(et0, 0)
}

// SolarFromTempSpan estimates daily solar radiation [MJ/m2/day] from the
// temperature span (Hargreaves radiation formula, interior coefficient).
// Used to fill records from providers that report no radiation.
func SolarFromTempSpan(tminC, tmaxC, latDeg float64, yearDay int) float64 {
	const krs = 0.16
	ra := extraterrestrialRadiation(latDeg, yearDay)
	span := math.Max(tmaxC-tminC, 0)
	return krs * math.Sqrt(span) * ra
}

// satVapourPressure is e0(T) [kPa] at air temperature T [degC].
func satVapourPressure(tempC float64) float64 {
	return 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
}

// extraterrestrialRadiation is Ra [MJ/m2/day] for a latitude and day of year.
func extraterrestrialRadiation(latDeg float64, yearDay int) float64 {
	const gsc = 0.0820 // solar constant [MJ m^-2 min^-1]
	j := float64(yearDay)
	phi := latDeg * math.Pi / 180
	dr := 1 + 0.033*math.Cos(2*math.Pi/365*j)
	decl := 0.409 * math.Sin(2*math.Pi/365*j-1.39)
	x := -math.Tan(phi) * math.Tan(decl)
	ws := math.Acos(math.Min(math.Max(x, -1), 1)) // sunset hour angle, clamped for polar days
	return 24 * 60 / math.Pi * gsc * dr * (ws*math.Sin(phi)*math.Sin(decl) + math.Cos(phi)*math.Cos(decl)*math.Sin(ws))
}
