package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/croplogic/irrigo/internal/model/messages"
	"github.com/croplogic/irrigo/pkg/dedup"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

// Configurazione Influx
type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// Service scrive su InfluxDB lo storico di umidità aggregata e dei bilanci
// idrici committati, tenendo in memoria l'ultimo valore per sensore come
// fallback di lettura quando Influx non risponde.
type Service struct {
	obsConsumer rabbitmq.IConsumer[messages.MoistureObservation]
	balConsumer rabbitmq.IConsumer[messages.WaterBalanceEvent]

	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string

	deduper *dedup.Deduper

	mu          sync.RWMutex
	latestObs   map[string]messages.MoistureObservation // key field|sensor
	latestState map[string]messages.WaterBalanceEvent   // key field
}

func NewService(obsConsumer rabbitmq.IConsumer[messages.MoistureObservation],
	balConsumer rabbitmq.IConsumer[messages.WaterBalanceEvent], cfg InfluxConfig) (*Service, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}

	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)

	s := &Service{
		obsConsumer: obsConsumer,
		balConsumer: balConsumer,
		writeAPI:    client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		queryAPI:    client.QueryAPI(cfg.InfluxOrg),
		bucket:      cfg.InfluxBucket,
		deduper:     dedup.New(10*time.Minute, 20000),
		latestObs:   make(map[string]messages.MoistureObservation),
		latestState: make(map[string]messages.WaterBalanceEvent),
	}
	if obsConsumer != nil {
		obsConsumer.SetHandler(s.handleObservation)
	}
	if balConsumer != nil {
		balConsumer.SetHandler(s.handleBalance)
	}
	return s, nil
}

// Start avvia i loop di consumo e blocca fino alla chiusura del context.
func (s *Service) Start(ctx context.Context) {
	if s.obsConsumer != nil {
		go s.obsConsumer.ConsumeMessage(ctx)
	}
	if s.balConsumer != nil {
		go s.balConsumer.ConsumeMessage(ctx)
	}
	<-ctx.Done()
}

// ===================== handler umidità aggregata =====================

func (s *Service) handleObservation(topic string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if s.deduper != nil && !s.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var m messages.MoistureObservation
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("persistence: invalid JSON on %s: %v", topic, err)
		return nil // non bloccare lo stream
	}
	if !m.Aggregated || m.FieldID == "" || m.SensorID == "" {
		return nil
	}

	t := m.Timestamp
	if t.IsZero() {
		t = time.Now()
	}

	tags := map[string]string{
		"field_id":     m.FieldID,
		"sensor_id":    m.SensorID,
		"data_quality": m.DataQuality,
	}
	fields := map[string]interface{}{
		"moisture_pct": m.MoisturePct,
		"pwp_pct":      m.PWPPct,
		"fc_pct":       m.FCPct,
		"sat_pct":      m.SatPct,
		"is_real_data": m.IsRealData,
	}
	point := influxdb2.NewPoint("soil_moisture", tags, fields, t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		log.Printf("persistence: write soil_moisture error: %v", err)
		// l'ultimo valore resta comunque leggibile dalla cache
	}

	s.mu.Lock()
	s.latestObs[m.FieldID+"|"+m.SensorID] = m
	s.mu.Unlock()

	log.Printf("persistence: wrote soil_moisture field=%s sensor=%s moisture=%.1f%% quality=%s",
		m.FieldID, m.SensorID, m.MoisturePct, m.DataQuality)
	return nil
}

// ===================== handler bilancio idrico =====================

func (s *Service) handleBalance(topic string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if s.deduper != nil && !s.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var b messages.WaterBalanceEvent
	if err := json.Unmarshal(msg.Payload(), &b); err != nil {
		log.Printf("persistence: invalid JSON on %s: %v", topic, err)
		return nil
	}
	if b.FieldID == "" {
		return nil
	}

	t := b.Timestamp
	if t.IsZero() {
		t = time.Now()
	}

	tags := map[string]string{"field_id": b.FieldID}
	fields := map[string]interface{}{
		"dr_mm":  b.DrMM,
		"de_mm":  b.DeMM,
		"taw_mm": b.TAWmm,
		"raw_mm": b.RAWmm,
		"ks":     b.Ks,
		"et0_mm": b.ET0mm,
		"etc_mm": b.ETcMM,
	}
	point := influxdb2.NewPoint("water_balance", tags, fields, t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		log.Printf("persistence: write water_balance error: %v", err)
	}

	s.mu.Lock()
	s.latestState[b.FieldID] = b
	s.mu.Unlock()

	log.Printf("persistence: wrote water_balance field=%s date=%s dr=%.1fmm", b.FieldID, b.Date, b.DrMM)
	return nil
}

// ===================== letture =====================

// LatestCache ritorna l'ultima osservazione nota per ogni sensore.
func (s *Service) LatestCache() []messages.MoistureObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]messages.MoistureObservation, 0, len(s.latestObs))
	for _, v := range s.latestObs {
		out = append(out, v)
	}
	return out
}

// LatestBalances ritorna l'ultimo bilancio noto per ogni field.
func (s *Service) LatestBalances() []messages.WaterBalanceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]messages.WaterBalanceEvent, 0, len(s.latestState))
	for _, v := range s.latestState {
		out = append(out, v)
	}
	return out
}

// QueryLatestFromInflux legge da Influx l'ultimo valore di umidità per
// sensore nella finestra richiesta.
func (s *Service) QueryLatestFromInflux(ctx context.Context, minutes int) ([]messages.MoistureObservation, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "soil_moisture" and r._field == "moisture_pct")
  |> group(columns: ["field_id","sensor_id"])
  |> last()
`, s.bucket, minutes)

	res, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close() }()

	var out []messages.MoistureObservation
	for res.Next() {
		rec := res.Record()
		obs := messages.MoistureObservation{
			Aggregated: true,
			Timestamp:  rec.Time(),
		}
		if v, ok := rec.ValueByKey("field_id").(string); ok {
			obs.FieldID = v
		}
		if v, ok := rec.ValueByKey("sensor_id").(string); ok {
			obs.SensorID = v
		}
		if v, ok := rec.ValueByKey("data_quality").(string); ok {
			obs.DataQuality = v
		}
		switch v := rec.Value().(type) {
		case float64:
			obs.MoisturePct = v
		case int64:
			obs.MoisturePct = float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				obs.MoisturePct = f
			}
		}
		obs.IsRealData = obs.DataQuality != messages.QualityDefault
		out = append(out, obs)
	}
	if res.Err() != nil {
		return out, res.Err()
	}
	return out, nil
}
