package decision_engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/croplogic/irrigo/internal/model/entities"
)

// sensorConfig accetta sia "flow_lpm" sia "flow_rate" per la portata.
type sensorConfig struct {
	entities.Sensor
	FlowAlias float64 `json:"flow_lpm"`
}

func (s sensorConfig) toSensor(fieldID string) entities.Sensor {
	out := s.Sensor
	out.FieldID = fieldID
	if out.FlowLpm == 0 && s.FlowAlias > 0 {
		out.FlowLpm = s.FlowAlias
	}
	if out.State == "" {
		out.State = entities.StateOff
	}
	return out
}

type fieldConfig struct {
	entities.Field
	Sensors []sensorConfig `json:"sensors"`
}

type fieldsFile struct {
	Fields []fieldConfig            `json:"fields"`
	Policy *entities.DecisionPolicy `json:"policy,omitempty"`
}

// LoadFieldsConfig reads the field configuration file. Missing crop or soil
// sections fall back to the stock wheat curve and loam profile; a missing
// policy section falls back to the default tunables. Every field is
// validated before it is accepted.
func LoadFieldsConfig(path string) (map[string]entities.Field, entities.DecisionPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, entities.DecisionPolicy{}, fmt.Errorf("read fields config: %w", err)
	}

	var file fieldsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, entities.DecisionPolicy{}, fmt.Errorf("parse fields config: %w", err)
	}
	if len(file.Fields) == 0 {
		return nil, entities.DecisionPolicy{}, fmt.Errorf("fields config %s: no fields", path)
	}

	pol := entities.DefaultDecisionPolicy()
	if file.Policy != nil {
		pol = *file.Policy
	}
	if err := pol.Validate(); err != nil {
		return nil, entities.DecisionPolicy{}, err
	}

	out := make(map[string]entities.Field, len(file.Fields))
	for _, fc := range file.Fields {
		fld := fc.Field
		fld.Crop = cropOrDefault(fld.Crop)
		fld.Soil = soilOrDefault(fld.Soil)

		fld.Sensors = make([]entities.Sensor, 0, len(fc.Sensors))
		for _, sc := range fc.Sensors {
			if sc.ID == "" {
				return nil, entities.DecisionPolicy{}, fmt.Errorf("fields config: sensor without id in field %s", fld.ID)
			}
			fld.Sensors = append(fld.Sensors, sc.toSensor(fld.ID))
		}

		if err := fld.Validate(); err != nil {
			return nil, entities.DecisionPolicy{}, err
		}
		if _, dup := out[fld.ID]; dup {
			return nil, entities.DecisionPolicy{}, fmt.Errorf("fields config: duplicate field id %q", fld.ID)
		}
		out[fld.ID] = fld
	}
	return out, pol, nil
}

func cropOrDefault(c entities.CropCoefficientCurve) entities.CropCoefficientCurve {
	if c.TotalCycleDays() == 0 {
		return entities.DefaultWheatCurve()
	}
	return c
}

// soilOrDefault rimpiazza l'intera sezione mancante e completa i singoli
// parametri lasciati a zero.
func soilOrDefault(s entities.SoilProfile) entities.SoilProfile {
	def := entities.DefaultSoilProfile()
	if s.Thresholds == (entities.SoilThresholds{}) {
		s.Thresholds = def.Thresholds
	}
	if s.DepletionFraction == 0 {
		s.DepletionFraction = def.DepletionFraction
	}
	if s.EvapLayerDepthM == 0 {
		s.EvapLayerDepthM = def.EvapLayerDepthM
	}
	if s.REWmm == 0 {
		s.REWmm = def.REWmm
	}
	if s.Efficiency == 0 {
		s.Efficiency = def.Efficiency
	}
	if s.RainEfficiency == 0 {
		s.RainEfficiency = def.RainEfficiency
	}
	return s
}
