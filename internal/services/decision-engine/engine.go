package decision_engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/croplogic/irrigo/internal/fao56"
	"github.com/croplogic/irrigo/internal/model"
	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
	"github.com/croplogic/irrigo/internal/store"
)

// Fallback probe calibration, volumetric percent. Used when no usable
// observation exists for a field; decisions built on these carry
// is_real_data=false.
const (
	defaultPWPPct = 15.2
	defaultFCPct  = 25.0
	defaultSatPct = 35.5
)

// Observations older than this are treated as missing.
const maxObservationAge = 48 * time.Hour

// StateStore is the slice of the persistence layer the engine depends on.
type StateStore interface {
	StateAt(fieldID string, date time.Time) (*entities.WaterBalanceState, error)
	LastState(fieldID string) (*entities.WaterBalanceState, error)
	CommitDecision(st entities.WaterBalanceState, dec entities.IrrigationDecision) error
	DecisionOn(fieldID string, date time.Time) (*entities.IrrigationDecision, error)
	RecentDecisions(fieldID string, limit int) ([]entities.IrrigationDecision, error)
	AppliedOn(fieldID string, date time.Time) (float64, error)
	RecordApplied(fieldID string, date time.Time, mm float64) error
}

var _ StateStore = (*store.Store)(nil)

// WeatherSource restituisce il meteo osservato del giorno e la finestra di
// previsione per una coordinata.
type WeatherSource interface {
	Daily(ctx context.Context, lat, lon float64, day time.Time) (messages.WeatherRecord, error)
	Forecast(ctx context.Context, lat, lon float64, days int) ([]messages.ForecastDay, error)
}

// ObservationSource espone l'ultima osservazione aggregata per field.
type ObservationSource interface {
	Latest(fieldID string) (messages.MoistureObservation, bool)
}

// Engine runs the daily soil-water balance and turns it into discrete
// irrigation decisions. All I/O happens through the injected store and
// sources; the decision math itself is pure.
type Engine struct {
	store   StateStore
	weather WeatherSource
	obs     ObservationSource
	fields  map[string]entities.Field
	policy  entities.DecisionPolicy

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewEngine(st StateStore, weather WeatherSource, obs ObservationSource, fields map[string]entities.Field, pol entities.DecisionPolicy) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("state store is nil")
	}
	if weather == nil {
		return nil, fmt.Errorf("weather source is nil")
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	for id, f := range fields {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
	}
	return &Engine{
		store:   st,
		weather: weather,
		obs:     obs,
		fields:  fields,
		policy:  pol,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// FieldIDs lists the configured fields.
func (e *Engine) FieldIDs() []string {
	out := make([]string, 0, len(e.fields))
	for id := range e.fields {
		out = append(out, id)
	}
	return out
}

// Field returns the configuration of one field.
func (e *Engine) Field(fieldID string) (entities.Field, bool) {
	f, ok := e.fields[fieldID]
	return f, ok
}

// Policy returns the decision policy in force.
func (e *Engine) Policy() entities.DecisionPolicy { return e.policy }

// CurrentWaterBalance returns the latest committed state for a field.
func (e *Engine) CurrentWaterBalance(fieldID string) (*entities.WaterBalanceState, error) {
	if _, ok := e.fields[fieldID]; !ok {
		return nil, model.Validationf("unknown field %q", fieldID)
	}
	st, err := e.store.LastState(fieldID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, &model.DataUnavailableError{Source: "store", Reason: fmt.Sprintf("no committed state for field %s", fieldID)}
	}
	return st, nil
}

// RecentDecisions returns the newest decisions for a field.
func (e *Engine) RecentDecisions(fieldID string, limit int) ([]entities.IrrigationDecision, error) {
	if _, ok := e.fields[fieldID]; !ok {
		return nil, model.Validationf("unknown field %q", fieldID)
	}
	return e.store.RecentDecisions(fieldID, limit)
}

// ComputeDailyDecision advances the water balance of one field to the given
// civil day and commits the day's decision. At most one evaluation runs per
// field at a time; a second caller gets a ConcurrencyError instead of
// waiting. Recomputing an already committed day replays it from the
// previous day's state and replaces the stored rows.
func (e *Engine) ComputeDailyDecision(ctx context.Context, fieldID string, date time.Time) (*entities.IrrigationDecision, error) {
	fld, ok := e.fields[fieldID]
	if !ok {
		return nil, model.Validationf("unknown field %q", fieldID)
	}
	if date.IsZero() {
		return nil, model.Validationf("decision date is missing")
	}
	day := civilDay(date)

	lock := e.fieldLock(fieldID)
	if !lock.TryLock() {
		busyRejections.WithLabelValues(fieldID).Inc()
		return nil, &model.ConcurrencyError{FieldID: fieldID}
	}
	defer lock.Unlock()

	started := time.Now()
	dec, err := e.computeLocked(ctx, fld, day)
	decisionSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		decisionErrors.WithLabelValues(fieldID).Inc()
		return nil, err
	}
	decisionsTotal.WithLabelValues(fieldID, dec.Outcome).Inc()
	return dec, nil
}

func (e *Engine) computeLocked(ctx context.Context, fld entities.Field, day time.Time) (*entities.IrrigationDecision, error) {
	var warnings []string

	growth, err := fao56.StageOf(fld.Crop, fld.DaysAfterPlanting(day))
	if err != nil {
		return nil, err
	}

	weather, err := e.weather.Daily(ctx, fld.Latitude, fld.Longitude, day)
	if err != nil {
		return nil, &model.DataUnavailableError{Source: "weather", Reason: err.Error()}
	}
	et0, err := fao56.ET0PenmanMonteith(weather, fld.Latitude, fld.ElevationM)
	if err != nil {
		return nil, err
	}

	obs, obsWarn := e.latestObservation(fld.ID, day)
	if obsWarn != "" {
		warnings = append(warnings, obsWarn)
	}

	prev, err := e.previousState(fld, day, obs, growth)
	if err != nil {
		return nil, err
	}

	applied, err := e.store.AppliedOn(fld.ID, day)
	if err != nil {
		return nil, err
	}

	next, split, err := fao56.AdvanceDay(*prev, fao56.BalanceInput{
		Date:         day,
		ET0mm:        et0,
		PrecipMM:     weather.RainMM * fld.Soil.RainEfficiency,
		IrrigationMM: applied * fld.Soil.Efficiency,
		Growth:       growth,
		Soil:         fld.Soil,
	})
	if err != nil {
		return nil, err
	}

	// La finestra di forecast serve solo quando il profilo è oltre la
	// riserva prontamente disponibile.
	var window []messages.ForecastDay
	if next.DrMM > next.RAWmm {
		window, err = e.weather.Forecast(ctx, fld.Latitude, fld.Longitude, e.policy.ForecastHorizonDays)
		if err != nil {
			warnings = append(warnings, (&model.DataUnavailableError{Source: "forecast", Reason: err.Error()}).Error())
			window = nil
		}
	}

	dec := evaluate(next, split, window, e.policy)
	dec.ID = decisionID(fld.ID, day)
	dec.IsRealData = obs.IsRealData
	dec.Warnings = append(warnings, dec.Warnings...)
	if !dec.IsRealData {
		dec.Message += " (low confidence: defaulted sensor data)"
	}

	if err := e.store.CommitDecision(next, dec); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}
	depletionGauge.WithLabelValues(fld.ID).Set(next.DrMM)
	stressGauge.WithLabelValues(fld.ID).Set(dec.Ks)
	et0Gauge.WithLabelValues(fld.ID).Set(split.ET0mm)

	log.Printf("decision: %s %s outcome=%s amount=%.1fmm dr=%.1f raw=%.1f ks=%.3f real=%v",
		fld.ID, day.Format("2006-01-02"), dec.Outcome, dec.AmountMM, dec.DrMM, dec.RAWmm, dec.Ks, dec.IsRealData)
	return &dec, nil
}

// latestObservation returns the freshest usable observation for a field,
// falling back to the default calibration when none exists.
func (e *Engine) latestObservation(fieldID string, day time.Time) (messages.MoistureObservation, string) {
	if e.obs != nil {
		obs, ok := e.obs.Latest(fieldID)
		if ok && !obs.Timestamp.Before(day.Add(-maxObservationAge)) {
			return obs, ""
		}
		if ok {
			warn := &model.DataUnavailableError{Source: "sensor", Reason: "latest aggregated observation is stale"}
			return defaultObservation(fieldID), warn.Error()
		}
	}
	warn := &model.DataUnavailableError{Source: "sensor", Reason: "no aggregated observation for field"}
	return defaultObservation(fieldID), warn.Error()
}

func defaultObservation(fieldID string) messages.MoistureObservation {
	return messages.MoistureObservation{
		FieldID:     fieldID,
		MoisturePct: defaultFCPct, // assume no depletion when nothing is known
		PWPPct:      defaultPWPPct,
		FCPct:       defaultFCPct,
		SatPct:      defaultSatPct,
		DataQuality: messages.QualityDefault,
		IsRealData:  false,
	}
}

// previousState resolves the committed state the day advances from: the
// previous civil day when it exists, a fresh seed for a field with no
// history, and the day before a replayed first day.
func (e *Engine) previousState(fld entities.Field, day time.Time, obs messages.MoistureObservation, growth entities.GrowthState) (*entities.WaterBalanceState, error) {
	prevDay := day.AddDate(0, 0, -1)

	prev, err := e.store.StateAt(fld.ID, prevDay)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		return prev, nil
	}

	last, err := e.store.LastState(fld.ID)
	if err != nil {
		return nil, err
	}
	if last != nil && !sameCivilDay(last.Date, day) {
		return nil, &model.SequenceError{
			FieldID: fld.ID,
			Have:    last.Date.Format("2006-01-02"),
			Want:    day.Format("2006-01-02"),
		}
	}

	// First day for this field (or a replay of it): seed from the reading.
	seed := fao56.SeedState(fld.ID, prevDay, obs.MoisturePct/100, growth, fld.Soil)
	return &seed, nil
}

// evaluate applies the decision policy to an end-of-day state. The window
// may be nil when no forecast is available; that disables delaying and adds
// a warning, never an error.
func evaluate(st entities.WaterBalanceState, split fao56.ETSplit, window []messages.ForecastDay, pol entities.DecisionPolicy) entities.IrrigationDecision {
	dec := entities.IrrigationDecision{
		FieldID: st.FieldID,
		Date:    st.Date,
		DrMM:    st.DrMM,
		RAWmm:   st.RAWmm,
		ET0mm:   split.ET0mm,
		ETcMM:   split.ETcMM,
	}
	dec.Ks = fao56.StressCoefficient(st.DrMM, st.TAWmm, st.RAWmm)

	if dec.Ks >= pol.StressThreshold && st.DrMM <= st.RAWmm {
		dec.Outcome = entities.OutcomeNoDeficit
		dec.Message = "moisture sufficient: depletion within the readily available reserve"
		return dec
	}

	// Depth beyond the readily available reserve; what forecast rain would
	// have to cover for irrigation to wait.
	excess := math.Max(st.DrMM-st.RAWmm, 0)
	assessment, warn := fao56.AssessDelay(window, excess, pol)
	if warn != nil {
		dec.Warnings = append(dec.Warnings, warn.Error())
	}
	dec.ExpectedMM = assessment.ExpectedPrecipMM

	if assessment.ShouldDelay {
		dec.Outcome = entities.OutcomeDelayed
		dec.Delayed = true
		dec.Message = fmt.Sprintf("deferring irrigation: expecting %.1f mm effective rain within %d day(s)",
			assessment.ExpectedPrecipMM, assessment.DaysToRelief)
		return dec
	}

	amount := quantizeDose(math.Min(st.DrMM, pol.MaxApplicationMM), pol)
	if amount < pol.MinApplicationMM {
		dec.Outcome = entities.OutcomeBelowMinimum
		dec.Message = fmt.Sprintf("rounded dose %.1f mm below the %.1f mm minimum application", amount, pol.MinApplicationMM)
		dec.AmountMM = 0
		return dec
	}

	dec.Outcome = entities.OutcomeIrrigate
	dec.AmountMM = amount
	dec.Message = fmt.Sprintf("apply %.1f mm to refill the root zone", amount)
	return dec
}

// quantizeDose rounds a depth up to the next step of the dose ladder and
// caps it at the largest step not above the policy maximum.
func quantizeDose(rawMM float64, pol entities.DecisionPolicy) float64 {
	if rawMM <= 0 {
		return 0
	}
	step := pol.StepMM
	if step <= 0 {
		return math.Min(rawMM, pol.MaxApplicationMM)
	}
	amount := math.Ceil(rawMM/step-1e-9) * step
	top := math.Floor(pol.MaxApplicationMM/step+1e-9) * step
	if amount > top {
		amount = top
	}
	return amount
}

// decisionID is deterministic per field-day so a replay reproduces the
// identical decision record.
func decisionID(fieldID string, day time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fieldID+"/"+day.Format("2006-01-02"))).String()
}

func (e *Engine) fieldLock(fieldID string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	l, ok := e.locks[fieldID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[fieldID] = l
	}
	return l
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
