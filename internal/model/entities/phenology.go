package entities

// Stage identifies the FAO-56 growth stage a crop is in on a given day.
type Stage string

const (
	StageInitial     Stage = "Initial"
	StageDevelopment Stage = "Development"
	StageMidSeason   Stage = "MidSeason"
	StageLateSeason  Stage = "LateSeason"
	StageTerminated  Stage = "Terminated"
)

// GrowthState is the per-day phenology snapshot derived from days after
// planting and the crop coefficient curve. It is a pure derivation, never
// mutated independently.
type GrowthState struct {
	DAP         int     `json:"dap"`
	Stage       Stage   `json:"stage"`
	Kcb         float64 `json:"kcb"`          // basal crop coefficient
	RootDepthM  float64 `json:"root_depth_m"` // Zr [m]
	CanopyCover float64 `json:"canopy_cover"` // CC in [0,1]
}
