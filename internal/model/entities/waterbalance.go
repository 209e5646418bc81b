package entities

import "time"

// WaterBalanceState is the committed end-of-day state of one field's root
// zone. It is the only entity with a day-to-day mutable lifecycle; a single
// instance per field, owned by the water-balance model and persisted through
// the state store. Reset only at a new planting.
type WaterBalanceState struct {
	FieldID string    `json:"field_id"`
	Date    time.Time `json:"date"` // civil day, UTC midnight

	DrMM  float64 `json:"dr_mm"`  // root-zone depletion, 0 <= Dr <= TAW
	DeMM  float64 `json:"de_mm"`  // surface evaporation layer depletion
	TAWmm float64 `json:"taw_mm"` // total available water for the day's Zr
	RAWmm float64 `json:"raw_mm"` // readily available water (p' * TAW)
	Ks    float64 `json:"ks"`     // stress coefficient used for the day
}

// DepletionFractionOfTAW reports how far into the reserve the profile is,
// 0 at field capacity, 1 at total depletion.
func (s WaterBalanceState) DepletionFractionOfTAW() float64 {
	if s.TAWmm <= 0 {
		return 0
	}
	return s.DrMM / s.TAWmm
}
