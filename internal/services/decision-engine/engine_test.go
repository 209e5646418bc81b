package decision_engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/croplogic/irrigo/internal/fao56"
	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
)

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// ===================== fakes =====================

type fakeStore struct {
	mu        sync.Mutex
	states    map[string]map[string]entities.WaterBalanceState
	decisions map[string]map[string]entities.IrrigationDecision
	applied   map[string]map[string]float64
	commitErr error
}

var _ StateStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:    make(map[string]map[string]entities.WaterBalanceState),
		decisions: make(map[string]map[string]entities.IrrigationDecision),
		applied:   make(map[string]map[string]float64),
	}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (s *fakeStore) StateAt(fieldID string, date time.Time) (*entities.WaterBalanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[fieldID][dayKey(date)]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *fakeStore) LastState(fieldID string) (*entities.WaterBalanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *entities.WaterBalanceState
	for _, st := range s.states[fieldID] {
		st := st
		if best == nil || st.Date.After(best.Date) {
			best = &st
		}
	}
	return best, nil
}

func (s *fakeStore) CommitDecision(st entities.WaterBalanceState, dec entities.IrrigationDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	if s.states[st.FieldID] == nil {
		s.states[st.FieldID] = make(map[string]entities.WaterBalanceState)
	}
	s.states[st.FieldID][dayKey(st.Date)] = st
	if s.decisions[dec.FieldID] == nil {
		s.decisions[dec.FieldID] = make(map[string]entities.IrrigationDecision)
	}
	s.decisions[dec.FieldID][dayKey(dec.Date)] = dec
	return nil
}

func (s *fakeStore) DecisionOn(fieldID string, date time.Time) (*entities.IrrigationDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dec, ok := s.decisions[fieldID][dayKey(date)]
	if !ok {
		return nil, nil
	}
	return &dec, nil
}

func (s *fakeStore) RecentDecisions(fieldID string, limit int) ([]entities.IrrigationDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.IrrigationDecision, 0, limit)
	for _, dec := range s.decisions[fieldID] {
		out = append(out, dec)
	}
	return out, nil
}

func (s *fakeStore) AppliedOn(fieldID string, date time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied[fieldID][dayKey(date)], nil
}

func (s *fakeStore) RecordApplied(fieldID string, date time.Time, mm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied[fieldID] == nil {
		s.applied[fieldID] = make(map[string]float64)
	}
	s.applied[fieldID][dayKey(date)] += mm
	return nil
}

func (s *fakeStore) seed(st entities.WaterBalanceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[st.FieldID] == nil {
		s.states[st.FieldID] = make(map[string]entities.WaterBalanceState)
	}
	s.states[st.FieldID][dayKey(st.Date)] = st
}

type fakeWeather struct {
	record  messages.WeatherRecord
	recErr  error
	window  []messages.ForecastDay
	fcErr   error
	fcCalls int
}

var _ WeatherSource = (*fakeWeather)(nil)

func (w *fakeWeather) Daily(_ context.Context, _, _ float64, day time.Time) (messages.WeatherRecord, error) {
	if w.recErr != nil {
		return messages.WeatherRecord{}, w.recErr
	}
	rec := w.record
	rec.Date = day
	return rec, nil
}

func (w *fakeWeather) Forecast(_ context.Context, _, _ float64, _ int) ([]messages.ForecastDay, error) {
	w.fcCalls++
	if w.fcErr != nil {
		return nil, w.fcErr
	}
	return w.window, nil
}

// ===================== fixtures =====================

// scenarioSoil gives TAW 50 mm over the initial 0.2 m root zone.
func scenarioSoil() entities.SoilProfile {
	return entities.SoilProfile{
		Thresholds:        entities.SoilThresholds{PWP: 0.152, FC: 0.402, Sat: 0.450},
		DepletionFraction: 0.55,
		EvapLayerDepthM:   0.10,
		REWmm:             9,
		Efficiency:        1,
		RainEfficiency:    1,
	}
}

func scenarioField() entities.Field {
	return entities.Field{
		ID:           "field-1",
		CropType:     "wheat",
		PlantingDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Latitude:     50.80,
		ElevationM:   100,
		Crop:         entities.DefaultWheatCurve(),
		Soil:         scenarioSoil(),
		Sensors: []entities.Sensor{
			{FieldID: "field-1", ID: "s1", FlowLpm: 40, AreaM2: 200, State: entities.StateOff},
		},
	}
}

// decisionDay is DAP 10 for the scenario field: Initial stage, Kcb 0.15,
// Zr 0.20 m.
var decisionDay = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

func mildWeather() messages.WeatherRecord {
	return messages.WeatherRecord{
		TminC:    12.3,
		TmaxC:    21.5,
		RHminPct: 63,
		RHmaxPct: 84,
		WindMS:   2.78,
		SolarMJ:  22.07,
		RainMM:   0,
	}
}

func freshObservation(moistPct float64) messages.MoistureObservation {
	return messages.MoistureObservation{
		FieldID:     "field-1",
		MoisturePct: moistPct,
		PWPPct:      15.2,
		FCPct:       40.2,
		SatPct:      45.0,
		DataQuality: messages.QualityReal,
		IsRealData:  true,
		Aggregated:  true,
		Timestamp:   decisionDay.Add(-2 * time.Hour),
	}
}

func newTestEngine(t *testing.T, st *fakeStore, w *fakeWeather, obs ObservationSource) *Engine {
	t.Helper()
	fld := scenarioField()
	eng, err := NewEngine(st, w, obs, map[string]entities.Field{fld.ID: fld}, entities.DefaultDecisionPolicy())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func cacheWith(obs messages.MoistureObservation) *ObservationCache {
	c := NewObservationCache()
	c.Update(obs)
	return c
}

func dryWindow(days int) []messages.ForecastDay {
	out := make([]messages.ForecastDay, days)
	for i := range out {
		out[i] = messages.ForecastDay{Date: decisionDay.AddDate(0, 0, i+1)}
	}
	return out
}

func wetTomorrowWindow(prob, mm float64) []messages.ForecastDay {
	w := dryWindow(3)
	w[0].RainProbability = prob
	w[0].RainMM = mm
	return w
}

// ===================== full pipeline scenarios =====================

// A profile at field capacity loses only the day's ET and stays inside the
// readily available reserve.
func TestComputeDailyDecisionSufficientMoisture(t *testing.T) {
	st := newFakeStore()
	weather := &fakeWeather{record: mildWeather(), window: dryWindow(15)}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(40.2)))

	dec, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("ComputeDailyDecision: %v", err)
	}

	if dec.Outcome != entities.OutcomeNoDeficit {
		t.Errorf("Outcome = %q, want %q", dec.Outcome, entities.OutcomeNoDeficit)
	}
	if dec.AmountMM != 0 || dec.Delayed {
		t.Errorf("AmountMM = %v, Delayed = %v, want 0 and false", dec.AmountMM, dec.Delayed)
	}
	if !strings.Contains(dec.Message, "sufficient") {
		t.Errorf("Message = %q, want sufficiency wording", dec.Message)
	}
	if dec.Ks != 1 {
		t.Errorf("Ks = %v, want 1", dec.Ks)
	}
	if !dec.IsRealData {
		t.Error("IsRealData = false, want true for a fresh real observation")
	}
	if weather.fcCalls != 0 {
		t.Errorf("forecast fetched %d times, want 0 when no deficit", weather.fcCalls)
	}

	committed, _ := st.StateAt("field-1", decisionDay)
	if committed == nil {
		t.Fatal("no state committed")
	}
	if committed.DrMM <= 0 || committed.DrMM >= committed.RAWmm {
		t.Errorf("Dr = %v, want small positive depletion below RAW %v", committed.DrMM, committed.RAWmm)
	}
}

// A depleted profile gets a ladder dose; the forecast is consulted exactly
// once.
func TestComputeDailyDecisionIrrigates(t *testing.T) {
	st := newFakeStore()
	st.seed(entities.WaterBalanceState{
		FieldID: "field-1",
		Date:    decisionDay.AddDate(0, 0, -1),
		DrMM:    40, DeMM: 9, TAWmm: 50, RAWmm: 27, Ks: 10.0 / 23.0,
	})
	weather := &fakeWeather{record: mildWeather(), window: dryWindow(15)}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(22.0)))

	dec, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("ComputeDailyDecision: %v", err)
	}

	if dec.Outcome != entities.OutcomeIrrigate {
		t.Fatalf("Outcome = %q, want %q (message %q)", dec.Outcome, entities.OutcomeIrrigate, dec.Message)
	}
	if dec.AmountMM < 5 || dec.AmountMM > 50 || math.Abs(math.Mod(dec.AmountMM, 5)) > 1e-9 {
		t.Errorf("AmountMM = %v, want a multiple of 5 in [5,50]", dec.AmountMM)
	}
	if dec.Ks >= 0.8 {
		t.Errorf("Ks = %v, want stressed (< 0.8)", dec.Ks)
	}
	if weather.fcCalls != 1 {
		t.Errorf("forecast fetched %d times, want 1", weather.fcCalls)
	}
}

// Expected rain within the relief horizon defers the dose.
func TestComputeDailyDecisionDelaysForRain(t *testing.T) {
	st := newFakeStore()
	st.seed(entities.WaterBalanceState{
		FieldID: "field-1",
		Date:    decisionDay.AddDate(0, 0, -1),
		DrMM:    40, DeMM: 9, TAWmm: 50, RAWmm: 27, Ks: 10.0 / 23.0,
	})
	weather := &fakeWeather{record: mildWeather(), window: wetTomorrowWindow(0.9, 30)}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(22.0)))

	dec, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("ComputeDailyDecision: %v", err)
	}
	if dec.Outcome != entities.OutcomeDelayed || !dec.Delayed {
		t.Fatalf("Outcome = %q, Delayed = %v, want delayed", dec.Outcome, dec.Delayed)
	}
	if dec.AmountMM != 0 {
		t.Errorf("AmountMM = %v, want 0 on a delay", dec.AmountMM)
	}
	if !almostEqual(dec.ExpectedMM, 27, 1e-9) {
		t.Errorf("ExpectedMM = %v, want 27", dec.ExpectedMM)
	}
	if !strings.Contains(dec.Message, "deferring") {
		t.Errorf("Message = %q, want deferral wording", dec.Message)
	}
}

// No observation at all: the engine falls back to the default calibration,
// still decides, and flags the decision as non-real.
func TestComputeDailyDecisionDegradedSensor(t *testing.T) {
	st := newFakeStore()
	weather := &fakeWeather{record: mildWeather(), window: dryWindow(15)}
	eng := newTestEngine(t, st, weather, NewObservationCache())

	dec, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("ComputeDailyDecision: %v", err)
	}
	if dec.IsRealData {
		t.Error("IsRealData = true, want false on fallback defaults")
	}
	if !strings.Contains(dec.Message, "low confidence") {
		t.Errorf("Message = %q, want a confidence annotation", dec.Message)
	}
	if len(dec.Warnings) == 0 || !strings.Contains(dec.Warnings[0], "sensor") {
		t.Errorf("Warnings = %v, want a sensor warning", dec.Warnings)
	}
}

func TestComputeDailyDecisionStaleObservation(t *testing.T) {
	st := newFakeStore()
	weather := &fakeWeather{record: mildWeather(), window: dryWindow(15)}
	obs := freshObservation(40.2)
	obs.Timestamp = decisionDay.AddDate(0, 0, -3) // oltre le 48h
	eng := newTestEngine(t, st, weather, cacheWith(obs))

	dec, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("ComputeDailyDecision: %v", err)
	}
	if dec.IsRealData {
		t.Error("IsRealData = true, want false for a stale observation")
	}
	if len(dec.Warnings) == 0 || !strings.Contains(dec.Warnings[0], "stale") {
		t.Errorf("Warnings = %v, want a staleness warning", dec.Warnings)
	}
}

// ===================== replay / ordering =====================

func TestComputeDailyDecisionReplayIsIdempotent(t *testing.T) {
	st := newFakeStore()
	weather := &fakeWeather{record: mildWeather(), window: dryWindow(15)}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(40.2)))

	first, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("replayed decision differs:\nfirst  %+v\nsecond %+v", first, second)
	}
	if len(st.decisions["field-1"]) != 1 {
		t.Errorf("decision rows = %d, want 1 after replay", len(st.decisions["field-1"]))
	}
}

func TestComputeDailyDecisionRejectsDateGap(t *testing.T) {
	st := newFakeStore()
	st.seed(entities.WaterBalanceState{
		FieldID: "field-1", Date: decisionDay, DrMM: 5, TAWmm: 50, RAWmm: 27, Ks: 1,
	})
	weather := &fakeWeather{record: mildWeather()}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(40.2)))

	_, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay.AddDate(0, 0, 3))
	var se *model.SequenceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SequenceError", err)
	}

	_, err = eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay.AddDate(0, 0, -2))
	if !errors.As(err, &se) {
		t.Fatalf("backward err = %v, want SequenceError", err)
	}
}

func TestComputeDailyDecisionNormalizesTime(t *testing.T) {
	st := newFakeStore()
	weather := &fakeWeather{record: mildWeather(), window: dryWindow(15)}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(40.2)))

	late := time.Date(2026, 3, 11, 17, 42, 9, 0, time.UTC)
	dec, err := eng.ComputeDailyDecision(context.Background(), "field-1", late)
	if err != nil {
		t.Fatalf("ComputeDailyDecision: %v", err)
	}
	if !dec.Date.Equal(decisionDay) {
		t.Errorf("Date = %v, want civil day %v", dec.Date, decisionDay)
	}
}

// ===================== error paths =====================

func TestComputeDailyDecisionUnknownField(t *testing.T) {
	st := newFakeStore()
	eng := newTestEngine(t, st, &fakeWeather{record: mildWeather()}, NewObservationCache())

	_, err := eng.ComputeDailyDecision(context.Background(), "nowhere", decisionDay)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestComputeDailyDecisionWeatherOutageIsFatal(t *testing.T) {
	st := newFakeStore()
	weather := &fakeWeather{recErr: errors.New("owm status 500")}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(40.2)))

	_, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	var de *model.DataUnavailableError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DataUnavailableError", err)
	}
	if len(st.states["field-1"]) != 0 {
		t.Error("state committed despite fatal weather outage")
	}
}

func TestComputeDailyDecisionForecastOutageIsWarning(t *testing.T) {
	st := newFakeStore()
	st.seed(entities.WaterBalanceState{
		FieldID: "field-1",
		Date:    decisionDay.AddDate(0, 0, -1),
		DrMM:    40, DeMM: 9, TAWmm: 50, RAWmm: 27, Ks: 10.0 / 23.0,
	})
	weather := &fakeWeather{record: mildWeather(), fcErr: errors.New("owm status 502")}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(22.0)))

	dec, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err != nil {
		t.Fatalf("ComputeDailyDecision: %v", err)
	}
	if dec.Outcome != entities.OutcomeIrrigate {
		t.Errorf("Outcome = %q, want irrigate when the forecast is unavailable", dec.Outcome)
	}
	found := false
	for _, w := range dec.Warnings {
		if strings.Contains(w, "forecast") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a forecast warning", dec.Warnings)
	}
}

func TestComputeDailyDecisionBusyField(t *testing.T) {
	st := newFakeStore()
	eng := newTestEngine(t, st, &fakeWeather{record: mildWeather()}, cacheWith(freshObservation(40.2)))

	lock := eng.fieldLock("field-1")
	lock.Lock()
	defer lock.Unlock()

	_, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	var ce *model.ConcurrencyError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConcurrencyError", err)
	}
}

func TestComputeDailyDecisionCommitFailure(t *testing.T) {
	st := newFakeStore()
	st.commitErr = errors.New("disk full")
	weather := &fakeWeather{record: mildWeather(), window: dryWindow(15)}
	eng := newTestEngine(t, st, weather, cacheWith(freshObservation(40.2)))

	_, err := eng.ComputeDailyDecision(context.Background(), "field-1", decisionDay)
	if err == nil || !strings.Contains(err.Error(), "commit decision") {
		t.Fatalf("err = %v, want commit failure", err)
	}
}

// ===================== evaluate: exact arithmetic =====================

// endOfDay is the committed state the decision rule sees.
func endOfDay(dr float64) entities.WaterBalanceState {
	return entities.WaterBalanceState{
		FieldID: "field-1",
		Date:    decisionDay,
		DrMM:    dr,
		DeMM:    9,
		TAWmm:   50,
		RAWmm:   27,
		Ks:      1,
	}
}

func TestEvaluateRefillsDepletedProfile(t *testing.T) {
	split := fao56.ETSplit{ET0mm: 4.375, ETcMM: 4.87}
	dec := evaluate(endOfDay(40), split, dryWindow(15), entities.DefaultDecisionPolicy())

	if dec.Outcome != entities.OutcomeIrrigate {
		t.Fatalf("Outcome = %q, want irrigate (message %q)", dec.Outcome, dec.Message)
	}
	if !almostEqual(dec.Ks, 10.0/23.0, 1e-9) {
		t.Errorf("Ks = %v, want %v", dec.Ks, 10.0/23.0)
	}
	if !almostEqual(dec.AmountMM, 40, 1e-9) {
		t.Errorf("AmountMM = %v, want 40 (full refill on the 5 mm ladder)", dec.AmountMM)
	}
	if !strings.Contains(dec.Message, "apply 40.0 mm") {
		t.Errorf("Message = %q, want the dose named", dec.Message)
	}
	if dec.ET0mm != 4.375 {
		t.Errorf("ET0mm = %v, want carried from the split", dec.ET0mm)
	}
}

func TestEvaluateDelaysWhenRainCoversDeficit(t *testing.T) {
	// Excess over RAW is 13 mm; 0.8 * 15 mm expected tomorrow beats the
	// half-deficit bar of 6.5 mm.
	dec := evaluate(endOfDay(40), fao56.ETSplit{}, wetTomorrowWindow(0.8, 15), entities.DefaultDecisionPolicy())

	if dec.Outcome != entities.OutcomeDelayed || !dec.Delayed {
		t.Fatalf("Outcome = %q, Delayed = %v, want delayed", dec.Outcome, dec.Delayed)
	}
	if !almostEqual(dec.ExpectedMM, 12, 1e-9) {
		t.Errorf("ExpectedMM = %v, want 12", dec.ExpectedMM)
	}
	if !strings.Contains(dec.Message, "12.0 mm") || !strings.Contains(dec.Message, "1 day") {
		t.Errorf("Message = %q, want relief precipitation and day named", dec.Message)
	}
}

func TestEvaluateIgnoresRainBeyondReliefHorizon(t *testing.T) {
	// Same expectation, but arriving on day 5: past MaxDaysToRelief.
	w := dryWindow(15)
	w[4].RainProbability = 0.8
	w[4].RainMM = 15
	dec := evaluate(endOfDay(40), fao56.ETSplit{}, w, entities.DefaultDecisionPolicy())

	if dec.Outcome != entities.OutcomeIrrigate {
		t.Errorf("Outcome = %q, want irrigate when relief is too late", dec.Outcome)
	}
	if dec.Delayed {
		t.Error("Delayed = true, want false")
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	pol := entities.DefaultDecisionPolicy()
	tests := []struct {
		name        string
		dr          float64
		wantOutcome string
		wantAmount  float64
	}{
		{"at field capacity", 0, entities.OutcomeNoDeficit, 0},
		{"exactly at RAW", 27, entities.OutcomeNoDeficit, 0},
		{"just past RAW still mild stress", 30, entities.OutcomeIrrigate, 30},
		{"fully depleted capped at max", 50, entities.OutcomeIrrigate, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := evaluate(endOfDay(tt.dr), fao56.ETSplit{}, dryWindow(15), pol)
			if dec.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", dec.Outcome, tt.wantOutcome)
			}
			if !almostEqual(dec.AmountMM, tt.wantAmount, 1e-9) {
				t.Errorf("AmountMM = %v, want %v", dec.AmountMM, tt.wantAmount)
			}
		})
	}
}

func TestEvaluateBelowMinimumApplication(t *testing.T) {
	pol := entities.DefaultDecisionPolicy()
	pol.MinApplicationMM = 8 // sopra lo step: la dose minima quantizzata non basta

	st := entities.WaterBalanceState{
		FieldID: "field-1", Date: decisionDay,
		DrMM: 4.5, TAWmm: 6, RAWmm: 3, Ks: 1,
	}
	dec := evaluate(st, fao56.ETSplit{}, dryWindow(15), pol)

	if dec.Outcome != entities.OutcomeBelowMinimum {
		t.Fatalf("Outcome = %q, want %q", dec.Outcome, entities.OutcomeBelowMinimum)
	}
	if dec.AmountMM != 0 {
		t.Errorf("AmountMM = %v, want 0", dec.AmountMM)
	}
	if !strings.Contains(dec.Message, "minimum") {
		t.Errorf("Message = %q, want minimum wording", dec.Message)
	}
}

func TestEvaluateEmptyWindowWarnsAndIrrigates(t *testing.T) {
	dec := evaluate(endOfDay(40), fao56.ETSplit{}, nil, entities.DefaultDecisionPolicy())

	if dec.Outcome != entities.OutcomeIrrigate {
		t.Errorf("Outcome = %q, want irrigate with no forecast", dec.Outcome)
	}
	if len(dec.Warnings) == 0 || !strings.Contains(dec.Warnings[0], "forecast") {
		t.Errorf("Warnings = %v, want a forecast warning", dec.Warnings)
	}
	if dec.ExpectedMM != 0 {
		t.Errorf("ExpectedMM = %v, want 0", dec.ExpectedMM)
	}
}

// ===================== quantization and identifiers =====================

func TestQuantizeDose(t *testing.T) {
	pol := entities.DefaultDecisionPolicy() // step 5, max 50
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"zero", 0, 0},
		{"negative", -3, 0},
		{"rounds up to first step", 0.2, 5},
		{"mid step rounds up", 12.3, 15},
		{"exact multiple stays", 35, 35},
		{"at max", 50, 50},
		{"above max capped", 52, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quantizeDose(tt.raw, pol); !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("quantizeDose(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	// max not a multiple of step: cap snaps down to the ladder
	pol.MaxApplicationMM = 48
	if got := quantizeDose(47, pol); !almostEqual(got, 45, 1e-9) {
		t.Errorf("quantizeDose(47) with max 48 = %v, want 45", got)
	}
}

func TestDecisionIDDeterministic(t *testing.T) {
	a := decisionID("field-1", decisionDay)
	b := decisionID("field-1", decisionDay)
	c := decisionID("field-1", decisionDay.AddDate(0, 0, 1))
	d := decisionID("field-2", decisionDay)

	if a != b {
		t.Errorf("same field-day gave different ids: %s vs %s", a, b)
	}
	if a == c || a == d {
		t.Error("different field-day reused an id")
	}
}

// ===================== reads =====================

func TestCurrentWaterBalance(t *testing.T) {
	st := newFakeStore()
	eng := newTestEngine(t, st, &fakeWeather{record: mildWeather()}, NewObservationCache())

	if _, err := eng.CurrentWaterBalance("nowhere"); err == nil {
		t.Error("unknown field accepted")
	}

	var de *model.DataUnavailableError
	if _, err := eng.CurrentWaterBalance("field-1"); !errors.As(err, &de) {
		t.Errorf("err = %v, want DataUnavailableError before any commit", err)
	}

	st.seed(entities.WaterBalanceState{FieldID: "field-1", Date: decisionDay, DrMM: 12, TAWmm: 50, RAWmm: 27, Ks: 1})
	got, err := eng.CurrentWaterBalance("field-1")
	if err != nil {
		t.Fatalf("CurrentWaterBalance: %v", err)
	}
	if got.DrMM != 12 {
		t.Errorf("DrMM = %v, want 12", got.DrMM)
	}
}
