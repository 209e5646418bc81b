package fao56

import (
	"errors"
	"testing"
	"time"

	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/messages"
)

func validRecord() messages.WeatherRecord {
	// 6 July at a mid-latitude station, the classic textbook day.
	return messages.WeatherRecord{
		Date:     time.Date(2021, 7, 6, 0, 0, 0, 0, time.UTC),
		TminC:    12.3,
		TmaxC:    21.5,
		RHminPct: 63,
		RHmaxPct: 84,
		WindMS:   2.78,
		SolarMJ:  22.07,
		RainMM:   0,
	}
}

func TestCheckWeather(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*messages.WeatherRecord)
		want   []string
	}{
		{"valid record", func(w *messages.WeatherRecord) {}, nil},
		{"missing date", func(w *messages.WeatherRecord) { w.Date = time.Time{} }, []string{FlagMissingDate}},
		{"tmax below tmin", func(w *messages.WeatherRecord) { w.TmaxC, w.TminC = 5, 15 }, []string{FlagTempOrder}},
		{"temperature out of range", func(w *messages.WeatherRecord) { w.TmaxC = 75 }, []string{FlagTempRange}},
		{"negative humidity", func(w *messages.WeatherRecord) { w.RHminPct = -5 }, []string{FlagHumidityRange}},
		{"humidity above 100", func(w *messages.WeatherRecord) { w.RHmaxPct = 130 }, []string{FlagHumidityRange}},
		{"rhmax below rhmin", func(w *messages.WeatherRecord) { w.RHmaxPct, w.RHminPct = 40, 70 }, []string{FlagHumidityOrder}},
		{"negative wind", func(w *messages.WeatherRecord) { w.WindMS = -1 }, []string{FlagWindRange}},
		{"negative rain", func(w *messages.WeatherRecord) { w.RainMM = -2 }, []string{FlagRainRange}},
		{"absurd rain", func(w *messages.WeatherRecord) { w.RainMM = 1500 }, []string{FlagRainRange}},
		{"zero solar", func(w *messages.WeatherRecord) { w.SolarMJ = 0 }, []string{FlagSolarRange}},
		{"absurd solar", func(w *messages.WeatherRecord) { w.SolarMJ = 80 }, []string{FlagSolarRange}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validRecord()
			tt.mutate(&w)
			got := CheckWeather(w)
			if len(got) != len(tt.want) {
				t.Fatalf("flags = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("flag[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateWeatherTaxonomy(t *testing.T) {
	w := validRecord()
	w.TmaxC, w.TminC = 5, 15
	err := ValidateWeather(w)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestET0PenmanMonteithReferenceDay(t *testing.T) {
	// FAO-56 example day (Uccle, 6 July): Tmax 21.5, Tmin 12.3, RH 63-84,
	// u2 2.78 m/s, Rs 22.07 MJ at 50.80 degN and 100 m elevation. The
	// published reference value is about 3.9 mm/day.
	et0, err := ET0PenmanMonteith(validRecord(), 50.80, 100)
	if err != nil {
		t.Fatalf("ET0PenmanMonteith: %v", err)
	}
	if !almostEqual(et0, 3.97, 0.12) {
		t.Errorf("ET0 = %v, want about 3.97", et0)
	}
}

func TestET0PenmanMonteithRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*messages.WeatherRecord)
	}{
		{"tmax below tmin", func(w *messages.WeatherRecord) { w.TmaxC, w.TminC = 5, 15 }},
		{"zero solar", func(w *messages.WeatherRecord) { w.SolarMJ = 0 }},
		{"missing date", func(w *messages.WeatherRecord) { w.Date = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validRecord()
			tt.mutate(&w)
			_, err := ET0PenmanMonteith(w, 50.80, 100)
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestET0PenmanMonteithNonNegative(t *testing.T) {
	// A cold, dark, windless day must clip at zero rather than go negative.
	w := messages.WeatherRecord{
		Date:     time.Date(2021, 12, 21, 0, 0, 0, 0, time.UTC),
		TminC:    -12,
		TmaxC:    -4,
		RHminPct: 85,
		RHmaxPct: 98,
		WindMS:   0.1,
		SolarMJ:  0.4,
	}
	et0, err := ET0PenmanMonteith(w, 62.0, 50)
	if err != nil {
		t.Fatalf("ET0PenmanMonteith: %v", err)
	}
	if et0 < 0 {
		t.Errorf("ET0 = %v, want >= 0", et0)
	}
}

func TestET0Hargreaves(t *testing.T) {
	// Midsummer mid-latitude day: Ra is about 41.5 MJ, so the estimate
	// lands near 4.8 mm/day.
	et0 := ET0Hargreaves(12, 24, 35.0, 180)
	if !almostEqual(et0, 4.83, 0.15) {
		t.Errorf("ET0 = %v, want about 4.83", et0)
	}

	// Wider diurnal span means more radiation reaches the surface.
	narrow := ET0Hargreaves(16, 20, 35.0, 180)
	if narrow >= et0 {
		t.Errorf("narrow-span estimate %v should be below wide-span %v", narrow, et0)
	}

	// Degenerate span clips to zero instead of producing NaN.
	if got := ET0Hargreaves(20, 20, 35.0, 180); got != 0 {
		t.Errorf("zero-span ET0 = %v, want 0", got)
	}

	if got := ET0Hargreaves(25, 15, 35.0, 180); got != 0 {
		t.Errorf("inverted-span ET0 = %v, want 0", got)
	}
}
