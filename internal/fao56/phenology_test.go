package fao56

import (
	"errors"
	"math"
	"testing"

	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/entities"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestStageOfBoundaries(t *testing.T) {
	curve := entities.DefaultWheatCurve() // 20/90/70/32 days

	tests := []struct {
		name      string
		dap       int
		wantStage entities.Stage
	}{
		{"planting day", 0, entities.StageInitial},
		{"inside initial", 10, entities.StageInitial},
		{"last initial day", 20, entities.StageInitial},
		{"first development day", 21, entities.StageDevelopment},
		{"last development day", 110, entities.StageDevelopment},
		{"first mid day", 111, entities.StageMidSeason},
		{"last mid day", 180, entities.StageMidSeason},
		{"first late day", 181, entities.StageLateSeason},
		{"last late day", 212, entities.StageLateSeason},
		{"past cycle end", 213, entities.StageTerminated},
		{"long past cycle end", 400, entities.StageTerminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, err := StageOf(curve, tt.dap)
			if err != nil {
				t.Fatalf("StageOf(%d): %v", tt.dap, err)
			}
			if gs.Stage != tt.wantStage {
				t.Errorf("Stage = %v, want %v", gs.Stage, tt.wantStage)
			}
			if gs.DAP != tt.dap {
				t.Errorf("DAP = %d, want %d", gs.DAP, tt.dap)
			}
		})
	}
}

func TestStageOfNegativeDAP(t *testing.T) {
	_, err := StageOf(entities.DefaultWheatCurve(), -1)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("StageOf(-1) error = %v, want ValidationError", err)
	}
}

func TestStageOfCoefficients(t *testing.T) {
	curve := entities.DefaultWheatCurve()

	tests := []struct {
		name    string
		dap     int
		wantKcb float64
		wantZr  float64
	}{
		{"initial holds kcb_ini", 10, 0.15, 0.20},
		{"initial boundary", 20, 0.15, 0.20},
		{"development interpolates", 65, 0.15 + (1.10-0.15)*0.5, 0.20 + (1.50-0.20)*0.5}, // halfway through dev
		{"development completes", 110, 1.10, 1.50},
		{"mid holds kcb_mid", 150, 1.10, 1.50},
		{"late interpolates", 196, 1.10 + (0.20-1.10)*0.5, 1.50}, // halfway through late
		{"late completes", 212, 0.20, 1.50},
		{"terminated holds kcb_end", 300, 0.20, 1.50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, err := StageOf(curve, tt.dap)
			if err != nil {
				t.Fatalf("StageOf(%d): %v", tt.dap, err)
			}
			if !almostEqual(gs.Kcb, tt.wantKcb, 1e-9) {
				t.Errorf("Kcb = %v, want %v", gs.Kcb, tt.wantKcb)
			}
			if !almostEqual(gs.RootDepthM, tt.wantZr, 1e-9) {
				t.Errorf("RootDepthM = %v, want %v", gs.RootDepthM, tt.wantZr)
			}
		})
	}
}

func TestCanopyCoverShape(t *testing.T) {
	curve := entities.DefaultWheatCurve()

	// Monotonically increasing through initial and development.
	prev := -1.0
	for dap := 0; dap <= curve.LenIni+curve.LenDev; dap++ {
		gs, err := StageOf(curve, dap)
		if err != nil {
			t.Fatalf("StageOf(%d): %v", dap, err)
		}
		if gs.CanopyCover < prev {
			t.Fatalf("canopy cover decreased at dap %d: %v < %v", dap, gs.CanopyCover, prev)
		}
		prev = gs.CanopyCover
	}

	mid, _ := StageOf(curve, curve.LenIni+curve.LenDev+1)
	if mid.CanopyCover != curve.CCMax {
		t.Errorf("mid-season cover = %v, want %v", mid.CanopyCover, curve.CCMax)
	}
	end, _ := StageOf(curve, curve.TotalCycleDays())
	if !almostEqual(end.CanopyCover, curve.CCEnd, 1e-9) {
		t.Errorf("end-of-season cover = %v, want %v", end.CanopyCover, curve.CCEnd)
	}
}

func TestRootDepthNeverDecreases(t *testing.T) {
	curve := entities.DefaultWheatCurve()
	prev := 0.0
	for dap := 0; dap <= curve.TotalCycleDays()+10; dap++ {
		gs, err := StageOf(curve, dap)
		if err != nil {
			t.Fatalf("StageOf(%d): %v", dap, err)
		}
		if gs.RootDepthM < prev {
			t.Fatalf("root depth decreased at dap %d: %v < %v", dap, gs.RootDepthM, prev)
		}
		prev = gs.RootDepthM
	}
}

func TestStageOfRejectsBadCurve(t *testing.T) {
	curve := entities.CropCoefficientCurve{} // zero cycle length
	if _, err := StageOf(curve, 5); err == nil {
		t.Fatal("StageOf with empty curve: expected error, got nil")
	}
}
