package decision_engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	pb "github.com/croplogic/irrigo/grpc/gen/go/irrigation"
	"github.com/croplogic/irrigo/internal/fao56"
	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
	"github.com/croplogic/irrigo/pkg/dedup"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

// ===================== Config / defaults =====================

const (
	defaultTZ           = "Europe/Rome"
	defaultDecisionHour = 20 // ora locale del run giornaliero
	dispatchTimeout     = 5 * time.Second
)

// DeviceRouter espone un client gRPC per ogni field (field -> DeviceService).
type DeviceRouter interface {
	Get(field string) (pb.DeviceServiceClient, bool)
	Close()
}

// ===================== Observation cache =====================

// ObservationCache keeps the newest aggregated moisture observation per
// field for the engine to read at decision time.
type ObservationCache struct {
	mu     sync.RWMutex
	latest map[string]messages.MoistureObservation
}

var _ ObservationSource = (*ObservationCache)(nil)

func NewObservationCache() *ObservationCache {
	return &ObservationCache{latest: make(map[string]messages.MoistureObservation)}
}

func (c *ObservationCache) Update(obs messages.MoistureObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.latest[obs.FieldID]; ok && obs.Timestamp.Before(cur.Timestamp) {
		return // out-of-order redelivery, la più recente vince
	}
	c.latest[obs.FieldID] = obs
}

func (c *ObservationCache) Latest(fieldID string) (messages.MoistureObservation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.latest[fieldID]
	return obs, ok
}

// ===================== Controller =====================

// Controller collega l'engine al mondo esterno: consuma osservazioni e
// risultati via MQTT, lancia il run giornaliero, pubblica gli eventi di
// decisione/bilancio e comanda i device via gRPC.
type Controller struct {
	engine      *Engine
	store       StateStore
	obsConsumer rabbitmq.IConsumer[messages.MoistureObservation]
	resConsumer rabbitmq.IConsumer[messages.IrrigationResultEvent]
	publisher   rabbitmq.IPublisher
	router      DeviceRouter
	cache       *ObservationCache

	decisionTopicTmpl string
	balanceTopicTmpl  string

	tz           *time.Location
	decisionHour int

	// anti-doppi ON
	wateringMu    sync.Mutex
	wateringUntil map[string]time.Time // key = field|sensor

	// deduper per scartare redelivery QoS1 (hash payload)
	deduper *dedup.Deduper
}

func NewController(
	engine *Engine,
	st StateStore,
	obsConsumer rabbitmq.IConsumer[messages.MoistureObservation],
	resConsumer rabbitmq.IConsumer[messages.IrrigationResultEvent],
	publisher rabbitmq.IPublisher,
	router DeviceRouter,
	cache *ObservationCache,
) (*Controller, error) {
	if engine == nil {
		return nil, errors.New("engine is nil")
	}
	if publisher == nil {
		return nil, errors.New("publisher is nil")
	}
	if router == nil {
		return nil, errors.New("device router is nil")
	}
	if cache == nil {
		cache = NewObservationCache()
	}

	tzName := strings.TrimSpace(os.Getenv("TZ"))
	if tzName == "" {
		tzName = defaultTZ
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("WARN: invalid TZ=%q, falling back to local: %v", tzName, err)
		loc = time.Local
	}

	hour := envIntInRange("DECISION_HOUR", defaultDecisionHour, 0, 23)

	ctrl := &Controller{
		engine:            engine,
		store:             st,
		obsConsumer:       obsConsumer,
		resConsumer:       resConsumer,
		publisher:         publisher,
		router:            router,
		cache:             cache,
		decisionTopicTmpl: firstNonEmpty(os.Getenv("DECISION_TOPIC_TMPL"), "event/irrigationDecision/{field}"),
		balanceTopicTmpl:  firstNonEmpty(os.Getenv("BALANCE_TOPIC_TMPL"), "event/waterBalance/{field}"),
		tz:                loc,
		decisionHour:      hour,
		wateringUntil:     make(map[string]time.Time),
		deduper:           dedup.New(10*time.Minute, 20000),
	}
	if obsConsumer != nil {
		obsConsumer.SetHandler(ctrl.handleObservation)
	}
	if resConsumer != nil {
		resConsumer.SetHandler(ctrl.handleResult)
	}
	return ctrl, nil
}

// Start runs the consumers and the daily scheduler until the context ends.
func (c *Controller) Start(ctx context.Context) {
	if c.obsConsumer != nil {
		go c.obsConsumer.ConsumeMessage(ctx)
	}
	if c.resConsumer != nil {
		go c.resConsumer.ConsumeMessage(ctx)
	}
	go c.runScheduler(ctx)
	<-ctx.Done()
}

// ===================== handler osservazioni =====================

func (c *Controller) handleObservation(_ string, msg mqtt.Message) error {
	// dedup prima di unmarshal: scarta redelivery QoS1 identiche
	h := sha256.Sum256(msg.Payload())
	if c.deduper != nil && !c.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var obs messages.MoistureObservation
	if err := json.Unmarshal(msg.Payload(), &obs); err != nil {
		log.Printf("decision: bad observation payload: %v", err)
		return nil
	}
	if !obs.Aggregated {
		return nil // solo dati aggregati dal data-aggregator
	}
	if _, ok := c.engine.Field(obs.FieldID); !ok {
		log.Printf("decision: observation for unknown field %s", obs.FieldID)
		return nil
	}

	c.cache.Update(obs)
	log.Printf("obs: %s moisture=%.1f%% quality=%s real=%v at=%s",
		obs.FieldID, obs.MoisturePct, obs.DataQuality, obs.IsRealData, obs.Timestamp.UTC().Format(time.RFC3339))
	return nil
}

// ===================== handler risultati irrigazione =====================

func (c *Controller) handleResult(_ string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if c.deduper != nil && !c.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var res messages.IrrigationResultEvent
	if err := json.Unmarshal(msg.Payload(), &res); err != nil {
		log.Printf("decision: bad result payload: %v", err)
		return nil
	}

	// il ciclo è finito comunque: libera la finestra busy
	c.wateringMu.Lock()
	delete(c.wateringUntil, key(res.FieldID, res.SensorID))
	c.wateringMu.Unlock()

	if res.Status != "OK" || res.MmApplied <= 0 {
		log.Printf("result: %s/%s status=%s reason=%s mm=%.1f (not recorded)",
			res.FieldID, res.SensorID, res.Status, res.Reason, res.MmApplied)
		return nil
	}

	started := res.StartedAt
	if started.IsZero() {
		started = res.Timestamp
	}
	// L'acqua erogata dopo la decisione del giorno D entra nel bilancio del
	// giorno D+1, il primo che verrà ancora avanzato.
	account := civilDay(started).AddDate(0, 0, 1)
	if err := c.store.RecordApplied(res.FieldID, account, res.MmApplied); err != nil {
		log.Printf("decision: record applied %s %.1fmm: %v", res.FieldID, res.MmApplied, err)
		return err
	}
	log.Printf("result: %s/%s applied=%.1fmm accounted=%s decision=%s",
		res.FieldID, res.SensorID, res.MmApplied, account.Format("2006-01-02"), res.DecisionID)
	return nil
}

// ===================== run giornaliero =====================

func (c *Controller) runScheduler(ctx context.Context) {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()

	var lastRun string
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			lt := now.In(c.tz)
			if lt.Hour() != c.decisionHour {
				continue
			}
			day := lt.Format("2006-01-02")
			if day == lastRun {
				continue
			}
			lastRun = day
			c.RunAll(ctx, time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC))
		}
	}
}

// RunAll computes the day's decision for every configured field.
func (c *Controller) RunAll(ctx context.Context, day time.Time) {
	ids := c.engine.FieldIDs()
	sort.Strings(ids)
	log.Printf("decision: daily run for %s (%d fields)", day.Format("2006-01-02"), len(ids))
	for _, fieldID := range ids {
		fctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if _, err := c.RunDecision(fctx, fieldID, day); err != nil {
			log.Printf("decision: field %s: %v", fieldID, err)
		}
		cancel()
	}
}

// RunDecision computes one field-day decision, publishes the decision and
// water-balance events and, for an irrigate outcome, starts the valves.
func (c *Controller) RunDecision(ctx context.Context, fieldID string, date time.Time) (*entities.IrrigationDecision, error) {
	dec, err := c.engine.ComputeDailyDecision(ctx, fieldID, date)
	if err != nil {
		return nil, err
	}

	fld, _ := c.engine.Field(fieldID)
	c.publishDecisionEvent(fld, *dec)
	c.publishBalanceEvent(fieldID, *dec)

	if dec.Outcome == entities.OutcomeIrrigate && dec.AmountMM > 0 {
		c.dispatchIrrigation(ctx, fld, *dec)
	}
	return dec, nil
}

// ===================== dispatch gRPC =====================

// dispatchIrrigation starts every valve of the field for the decided depth.
// The dose is a depth, so each sensor applies the same mm over its own area;
// the per-sensor duration comes from its flow and surface.
func (c *Controller) dispatchIrrigation(ctx context.Context, fld entities.Field, dec entities.IrrigationDecision) {
	device, ok := c.router.Get(fld.ID)
	if !ok {
		log.Printf("decision: no device client for field=%s", fld.ID)
		dispatchFailures.WithLabelValues(fld.ID).Inc()
		return
	}

	now := time.Now()
	for _, sensor := range fld.Sensors {
		mmPerMin := sensor.MmPerMinute()
		if mmPerMin <= 0 {
			log.Printf("decision: mmPerMin<=0 per %s/%s (flow=%.2f lpm, area=%.2f m2), skip avvio",
				fld.ID, sensor.ID, sensor.FlowLpm, sensor.AreaM2)
			continue
		}
		durationMin := int(math.Ceil(dec.AmountMM / mmPerMin))
		if durationMin < 1 {
			durationMin = 1
		}

		k := key(fld.ID, sensor.ID)
		c.wateringMu.Lock()
		busyUntil, have := c.wateringUntil[k]
		if have && now.Before(busyUntil) {
			c.wateringMu.Unlock()
			log.Printf("decision: skip start %s/%s (già ON fino a %s)", fld.ID, sensor.ID, busyUntil.Format(time.RFC3339))
			continue
		}
		c.wateringMu.Unlock()

		req := &pb.StartRequest{
			FieldId:     fld.ID,
			SensorId:    sensor.ID,
			AmountMm:    dec.AmountMM,
			DurationMin: int32(durationMin),
			DecisionId:  dec.ID,
		}
		rctx, rcancel := context.WithTimeout(ctx, dispatchTimeout)
		resp, err := device.StartIrrigation(rctx, req)
		rcancel()
		switch {
		case err != nil:
			log.Printf("decision: StartIrrigation %s/%s error: %v", fld.ID, sensor.ID, err)
			dispatchFailures.WithLabelValues(fld.ID).Inc()
		case !resp.GetSuccess():
			log.Printf("decision: StartIrrigation %s/%s refused: %s", fld.ID, sensor.ID, resp.GetMessage())
			dispatchFailures.WithLabelValues(fld.ID).Inc()
		default:
			until := time.Now().Add(time.Duration(durationMin) * time.Minute)
			c.wateringMu.Lock()
			if prev, ok := c.wateringUntil[k]; !ok || until.After(prev) {
				c.wateringUntil[k] = until
			}
			c.wateringMu.Unlock()
			log.Printf("decision: watering %s/%s ON per %d min (busy until %s)",
				fld.ID, sensor.ID, durationMin, until.Format(time.RFC3339))
		}
	}
}

// ===================== publish eventi =====================

func (c *Controller) publishDecisionEvent(fld entities.Field, dec entities.IrrigationDecision) {
	stage := ""
	if growth, err := fao56.StageOf(fld.Crop, fld.DaysAfterPlanting(dec.Date)); err == nil {
		stage = string(growth.Stage)
	}

	evt := messages.IrrigationDecisionEvent{
		DecisionID: dec.ID,
		FieldID:    dec.FieldID,
		Date:       dec.Date.Format("2006-01-02"),
		Stage:      stage,
		Outcome:    dec.Outcome,
		AmountMM:   dec.AmountMM,
		Delayed:    dec.Delayed,
		Ks:         dec.Ks,
		DrMM:       dec.DrMM,
		ExpectedMM: dec.ExpectedMM,
		IsRealData: dec.IsRealData,
		Message:    dec.Message,
		Timestamp:  time.Now().UTC(),
	}
	b, _ := json.Marshal(evt)
	topic := strings.ReplaceAll(c.decisionTopicTmpl, "{field}", dec.FieldID)

	// decisione a QoS=1: i sink a valle deduplicano
	if err := c.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
		log.Printf("decision: publish decision error: %v", err)
		return
	}
	log.Printf("event: decision %s outcome=%s amount=%.1fmm topic=%s (qos=1)", dec.FieldID, dec.Outcome, dec.AmountMM, topic)
}

func (c *Controller) publishBalanceEvent(fieldID string, dec entities.IrrigationDecision) {
	st, err := c.engine.CurrentWaterBalance(fieldID)
	if err != nil {
		log.Printf("decision: balance event for %s: %v", fieldID, err)
		return
	}

	evt := messages.WaterBalanceEvent{
		FieldID:   st.FieldID,
		Date:      st.Date.Format("2006-01-02"),
		DrMM:      st.DrMM,
		DeMM:      st.DeMM,
		TAWmm:     st.TAWmm,
		RAWmm:     st.RAWmm,
		Ks:        st.Ks,
		ET0mm:     dec.ET0mm,
		ETcMM:     dec.ETcMM,
		Timestamp: time.Now().UTC(),
	}
	b, _ := json.Marshal(evt)
	topic := strings.ReplaceAll(c.balanceTopicTmpl, "{field}", fieldID)
	if err := c.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
		log.Printf("decision: publish balance error: %v", err)
	}
}

// --------------------- small helpers ---------------------

func key(fid, sid string) string { return fid + "|" + sid }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func envIntInRange(k string, def, lo, hi int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}
