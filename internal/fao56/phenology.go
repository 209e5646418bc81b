package fao56

import (
	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/entities"
)

// StageOf maps days after planting onto the crop's growth stage and derives
// the day's basal coefficient, root depth and canopy cover from the curve.
// Stage boundaries are closed on the upper end: a day exactly on a boundary
// belongs to the stage ending there.
func StageOf(curve entities.CropCoefficientCurve, dap int) (entities.GrowthState, error) {
	if dap < 0 {
		return entities.GrowthState{}, model.Validationf("days after planting %d is negative", dap)
	}
	if err := curve.Validate(); err != nil {
		return entities.GrowthState{}, model.Validationf("%v", err)
	}

	endIni := curve.LenIni
	endDev := endIni + curve.LenDev
	endMid := endDev + curve.LenMid
	endLate := endMid + curve.LenLate

	gs := entities.GrowthState{DAP: dap}

	switch {
	case dap <= endIni:
		gs.Stage = entities.StageInitial
		gs.Kcb = curve.KcbIni
		gs.RootDepthM = curve.ZrIniM
		gs.CanopyCover = earlyCanopy(curve, dap, endDev)

	case dap <= endDev:
		gs.Stage = entities.StageDevelopment
		f := stageFraction(dap-endIni, curve.LenDev)
		gs.Kcb = lerp(curve.KcbIni, curve.KcbMid, f)
		gs.RootDepthM = lerp(curve.ZrIniM, curve.ZrMaxM, f)
		gs.CanopyCover = earlyCanopy(curve, dap, endDev)

	case dap <= endMid:
		gs.Stage = entities.StageMidSeason
		gs.Kcb = curve.KcbMid
		gs.RootDepthM = curve.ZrMaxM
		gs.CanopyCover = curve.CCMax

	case dap <= endLate:
		gs.Stage = entities.StageLateSeason
		f := stageFraction(dap-endMid, curve.LenLate)
		gs.Kcb = lerp(curve.KcbMid, curve.KcbEnd, f)
		gs.RootDepthM = curve.ZrMaxM
		gs.CanopyCover = lerp(curve.CCMax, curve.CCEnd, f)

	default:
		gs.Stage = entities.StageTerminated
		gs.Kcb = curve.KcbEnd
		gs.RootDepthM = curve.ZrMaxM
		gs.CanopyCover = curve.CCEnd
	}
	return gs, nil
}

// earlyCanopy grows cover linearly from CCIni to CCMax across the initial and
// development stages combined.
func earlyCanopy(curve entities.CropCoefficientCurve, dap, endDev int) float64 {
	return lerp(curve.CCIni, curve.CCMax, stageFraction(dap, endDev))
}

// stageFraction is the position inside a stage in (0,1]; an empty stage is
// treated as already complete.
func stageFraction(into, length int) float64 {
	if length <= 0 {
		return 1
	}
	f := float64(into) / float64(length)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }
