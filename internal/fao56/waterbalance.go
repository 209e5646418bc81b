// Package fao56 implements the daily soil-water-balance math of the FAO-56
// dual crop coefficient method: growth-stage phenology, reference and crop
// evapotranspiration, root-zone depletion tracking and the forecast-based
// delay rule. Everything here is pure computation; persistence and I/O stay
// with the callers.
package fao56

import (
	"log"
	"math"
	"time"

	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/entities"
)

// ETSplit carries the pieces of one day's evapotranspiration computation.
type ETSplit struct {
	ET0mm float64
	ETcMM float64
	Ke    float64
	Ks    float64
}

// BalanceInput bundles what AdvanceDay needs for one field-day beyond the
// previous state. Precipitation and irrigation are effective depths, already
// scaled by the profile's efficiency factors.
type BalanceInput struct {
	Date         time.Time
	ET0mm        float64
	PrecipMM     float64
	IrrigationMM float64
	Growth       entities.GrowthState
	Soil         entities.SoilProfile
}

// TotalAvailableWater is TAW [mm] for a root depth Zr [m].
func TotalAvailableWater(t entities.SoilThresholds, zrM float64) float64 {
	return 1000 * (t.FC - t.PWP) * zrM
}

// TotalEvaporableWater is TEW [mm] for the surface evaporation layer.
func TotalEvaporableWater(t entities.SoilThresholds, zeM float64) float64 {
	return 1000 * (t.FC - 0.5*t.PWP) * zeM
}

// AdjustDepletionFraction applies the FAO-56 daily correction of the
// depletion fraction for evaporative demand: p' = p + 0.04*(5 - ETc),
// clipped to [0.1, 0.8].
func AdjustDepletionFraction(p, etcMM float64) float64 {
	return clamp(p+0.04*(5-etcMM), 0.1, 0.8)
}

// StressCoefficient is Ks: 1 while depletion stays within the readily
// available reserve, then a linear decline to 0 at total depletion.
func StressCoefficient(drMM, tawMM, rawMM float64) float64 {
	if drMM <= rawMM {
		return 1
	}
	if tawMM <= rawMM {
		return 0
	}
	return clamp((tawMM-drMM)/(tawMM-rawMM), 0, 1)
}

// EvaporationCoefficient is Ke for the day, from the surface layer depletion
// at the end of the previous day. Bounded by the canopy-free fraction of the
// ceiling coefficient.
func EvaporationCoefficient(deMM float64, soil entities.SoilProfile, growth entities.GrowthState) float64 {
	kcMax := math.Max(1.2, growth.Kcb+0.05)
	tew := TotalEvaporableWater(soil.Thresholds, soil.EvapLayerDepthM)
	kr := 1.0
	if deMM > soil.REWmm {
		if tew <= soil.REWmm {
			kr = 0
		} else {
			kr = clamp((tew-deMM)/(tew-soil.REWmm), 0, 1)
		}
	}
	ke := kr * (kcMax - growth.Kcb)
	return clamp(ke, 0, (1-growth.CanopyCover)*kcMax)
}

// DualCropET is ETc = (Ks*Kcb + Ke) * ET0, never negative.
func DualCropET(et0, kcb, ks, ke float64) float64 {
	return math.Max((ks*kcb+ke)*et0, 0)
}

// AdvanceDay moves the water balance forward by exactly one day and reports
// the stress coefficient and ET split used. The evaluation order is fixed:
// Ke from yesterday's surface depletion, the depletion fraction from the
// day's unstressed ET demand, Ks from yesterday's ending root-zone depletion,
// only then ETc and the new depletion. Replaying the same day from the same
// previous state and inputs reproduces the same output.
func AdvanceDay(prev entities.WaterBalanceState, in BalanceInput) (entities.WaterBalanceState, ETSplit, error) {
	want := prev.Date.AddDate(0, 0, 1)
	if !sameCivilDay(in.Date, want) {
		return entities.WaterBalanceState{}, ETSplit{}, &model.SequenceError{
			FieldID: prev.FieldID,
			Have:    prev.Date.Format("2006-01-02"),
			Want:    in.Date.Format("2006-01-02"),
		}
	}

	taw := TotalAvailableWater(in.Soil.Thresholds, in.Growth.RootDepthM)
	tew := TotalEvaporableWater(in.Soil.Thresholds, in.Soil.EvapLayerDepthM)

	ke := EvaporationCoefficient(prev.DeMM, in.Soil, in.Growth)
	etcDemand := (in.Growth.Kcb + ke) * in.ET0mm
	pAdj := AdjustDepletionFraction(in.Soil.DepletionFraction, etcDemand)
	raw := pAdj * taw
	ks := StressCoefficient(prev.DrMM, taw, raw)
	etc := DualCropET(in.ET0mm, in.Growth.Kcb, ks, ke)

	dr := clamp(prev.DrMM-in.PrecipMM-in.IrrigationMM+etc, 0, taw)
	de := clamp(prev.DeMM-in.PrecipMM-in.IrrigationMM+ke*in.ET0mm, 0, tew)

	next := entities.WaterBalanceState{
		FieldID: prev.FieldID,
		Date:    civilDay(in.Date),
		DrMM:    dr,
		DeMM:    de,
		TAWmm:   taw,
		RAWmm:   raw,
		Ks:      ks,
	}
	split := ETSplit{ET0mm: in.ET0mm, ETcMM: etc, Ke: ke, Ks: ks}

	if bad := checkFinite(next, split); bad != nil {
		return entities.WaterBalanceState{}, ETSplit{}, bad
	}
	if next.DrMM < 0 || next.DrMM > next.TAWmm {
		// Clamping above makes this unreachable; keep the clamped value but
		// record the breach rather than propagating it.
		log.Printf("water balance: field %s depletion %.2f escaped [0,%.2f], clamped", prev.FieldID, next.DrMM, next.TAWmm)
		next.DrMM = clamp(next.DrMM, 0, next.TAWmm)
	}
	return next, split, nil
}

// SeedState builds the first committed state for a field from a moisture
// reading: depletion is the gap between field capacity and the measured
// volumetric content over the current root zone.
func SeedState(fieldID string, date time.Time, thetaFrac float64, growth entities.GrowthState, soil entities.SoilProfile) entities.WaterBalanceState {
	taw := TotalAvailableWater(soil.Thresholds, growth.RootDepthM)
	dr := clamp(1000*(soil.Thresholds.FC-thetaFrac)*growth.RootDepthM, 0, taw)
	return entities.WaterBalanceState{
		FieldID: fieldID,
		Date:    civilDay(date),
		DrMM:    dr,
		DeMM:    0,
		TAWmm:   taw,
		RAWmm:   soil.DepletionFraction * taw,
		Ks:      StressCoefficient(dr, taw, soil.DepletionFraction*taw),
	}
}

func checkFinite(st entities.WaterBalanceState, split ETSplit) error {
	for _, v := range []float64{st.DrMM, st.DeMM, st.TAWmm, st.RAWmm, st.Ks, split.ETcMM, split.Ke} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &model.ComputationError{Reason: "water balance produced a non-finite value"}
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameCivilDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
