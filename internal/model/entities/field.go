package entities

import (
	"fmt"
	"time"
)

// Field represents a tract of land growing a particular crop, with the
// configuration the water balance needs and one or more sensors.
type Field struct {
	ID           string    `json:"id"`
	CropType     string    `json:"crop_type"` // e.g. "wheat", "corn"
	PlantingDate time.Time `json:"planting_date"`

	// Station geometry for reference evapotranspiration.
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ElevationM float64 `json:"elevation_m"`

	Crop CropCoefficientCurve `json:"crop"`
	Soil SoilProfile          `json:"soil"`

	Sensors []Sensor `json:"sensors"`
}

func (f *Field) GetSensor(sensorID string) *Sensor {
	for i := range f.Sensors {
		if f.Sensors[i].ID == sensorID {
			return &f.Sensors[i]
		}
	}
	return nil
}

// DaysAfterPlanting computes the DAP for a given date. Dates before the
// planting day come out negative and are rejected by the phenology lookup.
func (f *Field) DaysAfterPlanting(date time.Time) int {
	d := date.Truncate(24 * time.Hour)
	p := f.PlantingDate.Truncate(24 * time.Hour)
	return int(d.Sub(p).Hours() / 24)
}

func (f *Field) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("field: missing id")
	}
	if f.PlantingDate.IsZero() {
		return fmt.Errorf("field %s: missing planting date", f.ID)
	}
	if f.Latitude < -90 || f.Latitude > 90 {
		return fmt.Errorf("field %s: latitude %.3f out of range", f.ID, f.Latitude)
	}
	if err := f.Crop.Validate(); err != nil {
		return fmt.Errorf("field %s: %w", f.ID, err)
	}
	if err := f.Soil.Validate(); err != nil {
		return fmt.Errorf("field %s: %w", f.ID, err)
	}
	return nil
}
