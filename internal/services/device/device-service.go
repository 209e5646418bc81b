package device

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

const (
	defaultLivenessTTL  = 60 * time.Second
	defaultOfflineGrace = 5 * time.Second
)

// Service è il runtime del nodo di campo: tiene lo stato delle valvole,
// esegue i cicli di irrigazione comandati via gRPC e pubblica StateChange
// e IrrigationResult. I dati grezzi dei sensori fanno da heartbeat: se un
// sensore smette di trasmettere il ciclo viene abortito con esito FAIL.
type Service struct {
	publisher rabbitmq.IPublisher
	fields    map[string]entities.Field

	stateTopicTmpl  string // es. "event/StateChange/{field}/{sensor}"
	resultTopicTmpl string // es. "event/irrigationResult/{field}/{sensor}"

	livenessTTL  time.Duration
	offlineGrace time.Duration

	lastSeen sync.Map // "field|sensor" -> time.Time

	// un solo ciclo attivo per valvola
	activeMu sync.Mutex
	active   map[string]context.CancelFunc
}

func NewService(publisher rabbitmq.IPublisher, fields map[string]entities.Field, stateTopicTmpl, resultTopicTmpl string) *Service {
	return &Service{
		publisher:       publisher,
		fields:          fields,
		stateTopicTmpl:  firstNonEmpty(stateTopicTmpl, "event/StateChange/{field}/{sensor}"),
		resultTopicTmpl: firstNonEmpty(resultTopicTmpl, "event/irrigationResult/{field}/{sensor}"),
		livenessTTL:     defaultLivenessTTL,
		offlineGrace:    defaultOfflineGrace,
		active:          make(map[string]context.CancelFunc),
	}
}

// SetLiveness imposta TTL di liveness e finestra di grace (richiamato dal main via ENV).
func (s *Service) SetLiveness(ttl, grace time.Duration) {
	if ttl > 0 {
		s.livenessTTL = ttl
	}
	if grace > 0 {
		s.offlineGrace = grace
	}
}

// ============== heartbeat dai sensori ==============

// OnSensorData aggiorna la liveness dal flusso grezzo (sensor/data/{field}/{sensor}).
// Il payload non viene decodificato: basta sapere che il sensore è vivo.
func (s *Service) OnSensorData(_ string, m mqtt.Message) error {
	parts := strings.Split(m.Topic(), "/")
	if len(parts) >= 4 {
		s.lastSeen.Store(parts[2]+"|"+parts[3], time.Now())
	}
	return nil
}

func (s *Service) isLive(fieldID, sensorID string) bool {
	if v, ok := s.lastSeen.Load(fieldID + "|" + sensorID); ok {
		return time.Since(v.(time.Time)) < s.livenessTTL
	}
	return false
}

func (s *Service) waitGraceAlive(fieldID, sensorID string, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if s.isLive(fieldID, sensorID) {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

// ============== ciclo di irrigazione ==============

// StartCycle avvia il ciclo per una valvola. Ritorna false se un ciclo è
// già in corso su quella valvola.
func (s *Service) StartCycle(fieldID string, sensor entities.Sensor, decisionID string, amountMM float64, durMin int) bool {
	k := fieldID + "|" + sensor.ID

	s.activeMu.Lock()
	if _, busy := s.active[k]; busy {
		s.activeMu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.active[k] = cancel
	s.activeMu.Unlock()

	s.publishState(fieldID, sensor.ID, entities.StateOn, time.Duration(durMin)*time.Minute)
	go s.runCycle(ctx, fieldID, sensor, decisionID, amountMM, durMin)
	return true
}

// StopCycle interrompe il ciclo attivo. Ritorna false se la valvola era già ferma.
func (s *Service) StopCycle(fieldID, sensorID string) bool {
	k := fieldID + "|" + sensorID
	s.activeMu.Lock()
	cancel, ok := s.active[k]
	s.activeMu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// runCycle simula l'erogazione: un tick al secondo accumula mm in base alla
// portata della linea. Termina per durata raggiunta, dose raggiunta, stop
// manuale o sensore offline; in ogni caso pubblica l'esito e lo OFF.
func (s *Service) runCycle(ctx context.Context, fieldID string, sensor entities.Sensor, decisionID string, amountMM float64, durMin int) {
	k := fieldID + "|" + sensor.ID
	defer func() {
		s.activeMu.Lock()
		if cancel, ok := s.active[k]; ok {
			cancel()
			delete(s.active, k)
		}
		s.activeMu.Unlock()
	}()

	mmPerMin := sensor.MmPerMinute()
	if mmPerMin <= 0 {
		mmPerMin = 10.0 / 60.0 // fallback 10 mm/h
	}

	started := time.Now()
	deadline := started.Add(time.Duration(durMin) * time.Minute)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	mmApplied := 0.0
	status, reason := "OK", "done"

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			reason = "stopped"
			break loop
		case <-tick.C:
		}

		// liveness: senza heartbeat entro TTL+grace il ciclo fallisce col parziale
		if !s.isLive(fieldID, sensor.ID) && !s.waitGraceAlive(fieldID, sensor.ID, s.offlineGrace) {
			status, reason = "FAIL", "offline"
			break loop
		}

		mmApplied += mmPerMin / 60.0
		if amountMM > 0 && mmApplied >= amountMM {
			mmApplied = amountMM
			break loop
		}
	}

	s.publishResult(messages.IrrigationResultEvent{
		FieldID:    fieldID,
		SensorID:   sensor.ID,
		DecisionID: decisionID,
		Status:     status,
		MmApplied:  mmApplied,
		Reason:     reason,
		StartedAt:  started,
		Timestamp:  time.Now(),
	})
	s.publishState(fieldID, sensor.ID, entities.StateOff, 0)
	log.Printf("device: cycle %s/%s %s (%s) applied=%.2fmm decision=%s",
		fieldID, sensor.ID, status, reason, mmApplied, decisionID)
}

// ============== publish eventi ==============

func (s *Service) publishState(fieldID, sensorID string, st entities.SensorState, dur time.Duration) {
	evt := messages.StateChangeEvent{
		FieldID:   fieldID,
		SensorID:  sensorID,
		NewState:  st,
		Duration:  dur,
		Timestamp: time.Now(),
	}
	b, _ := json.Marshal(evt)
	topic := formatTopic(s.stateTopicTmpl, fieldID, sensorID)
	if err := s.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
		log.Printf("device: publish state %s %s/%s: %v", st, fieldID, sensorID, err)
	}
}

func (s *Service) publishResult(evt messages.IrrigationResultEvent) {
	b, _ := json.Marshal(evt)
	topic := formatTopic(s.resultTopicTmpl, evt.FieldID, evt.SensorID)
	if err := s.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
		log.Printf("device: publish result %s/%s: %v", evt.FieldID, evt.SensorID, err)
	}
}

// ============== helpers ==============

// LookupSensor trova un sensore dentro i field gestiti da questo nodo.
func (s *Service) LookupSensor(fieldID, sensorID string) (entities.Sensor, bool) {
	f, ok := s.fields[fieldID]
	if !ok {
		return entities.Sensor{}, false
	}
	for _, sn := range f.Sensors {
		if sn.ID == sensorID {
			return sn, true
		}
	}
	return entities.Sensor{}, false
}

func formatTopic(tmpl, fieldID, sensorID string) string {
	return strings.NewReplacer("{field}", fieldID, "{sensor}", sensorID).Replace(tmpl)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
