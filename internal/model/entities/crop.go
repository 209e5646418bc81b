package entities

import "fmt"

// CropCoefficientCurve holds the FAO-56 stage lengths, basal coefficients and
// root/canopy bounds for one crop. Loaded once from field config.
type CropCoefficientCurve struct {
	KcbIni float64 `json:"kcb_ini"`
	KcbMid float64 `json:"kcb_mid"`
	KcbEnd float64 `json:"kcb_end"`

	LenIni  int `json:"len_ini_days"`
	LenDev  int `json:"len_dev_days"`
	LenMid  int `json:"len_mid_days"`
	LenLate int `json:"len_late_days"`

	ZrIniM float64 `json:"zr_ini_m"`
	ZrMaxM float64 `json:"zr_max_m"`

	CCIni float64 `json:"cc_ini"`
	CCMax float64 `json:"cc_max"`
	CCEnd float64 `json:"cc_end"`
}

// TotalCycleDays is the full season length in days.
func (c CropCoefficientCurve) TotalCycleDays() int {
	return c.LenIni + c.LenDev + c.LenMid + c.LenLate
}

func (c CropCoefficientCurve) Validate() error {
	if c.LenIni < 0 || c.LenDev < 0 || c.LenMid < 0 || c.LenLate < 0 {
		return fmt.Errorf("crop curve: negative stage length")
	}
	if c.TotalCycleDays() <= 0 {
		return fmt.Errorf("crop curve: total cycle length must be > 0")
	}
	if c.KcbIni < 0 || c.KcbMid < 0 || c.KcbEnd < 0 {
		return fmt.Errorf("crop curve: negative Kcb")
	}
	if c.ZrIniM <= 0 || c.ZrMaxM < c.ZrIniM {
		return fmt.Errorf("crop curve: root depth bounds invalid (ini=%.3f max=%.3f)", c.ZrIniM, c.ZrMaxM)
	}
	if c.CCIni < 0 || c.CCMax > 1 || c.CCIni > c.CCMax || c.CCEnd < 0 || c.CCEnd > c.CCMax {
		return fmt.Errorf("crop curve: canopy cover bounds invalid")
	}
	return nil
}

// DefaultWheatCurve returns the winter-wheat parameter set used when a field
// config does not override the crop curve.
func DefaultWheatCurve() CropCoefficientCurve {
	return CropCoefficientCurve{
		KcbIni:  0.15,
		KcbMid:  1.10,
		KcbEnd:  0.20,
		LenIni:  20,
		LenDev:  90,
		LenMid:  70,
		LenLate: 32,
		ZrIniM:  0.20,
		ZrMaxM:  1.50,
		CCIni:   0.05,
		CCMax:   0.90,
		CCEnd:   0.60,
	}
}
