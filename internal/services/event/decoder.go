package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	msg "github.com/croplogic/irrigo/internal/model/messages"
)

type CommonEvent struct {
	EventType     string // irrigation.decision | device.state_change | irrigation.result
	SourceService string // decision-engine | device-service | ...
	FieldID       string
	SensorID      string // vuoto per gli eventi a granularità field
	Outcome       string // solo per le decisioni (tag comodo per le query)
	Severity      string // info|warning|error
	Fields        map[string]interface{}
	Timestamp     time.Time
}

// MQTTHandler trasforma messaggi MQTT in CommonEvent e li passa a sink (Influx).
type MQTTHandler struct{ sink func(CommonEvent) }

func NewMQTTHandler(sink func(CommonEvent)) *MQTTHandler { return &MQTTHandler{sink: sink} }

func (h *MQTTHandler) Handle(_ string, m mqtt.Message) error {
	topic := m.Topic()
	payload := m.Payload()

	var (
		evt CommonEvent
		err error
	)
	switch {
	case strings.HasPrefix(topic, "event/irrigationDecision/"):
		evt, err = decodeDecision(topic, payload)
	case strings.HasPrefix(topic, "event/StateChange/"):
		evt, err = decodeStateChange(topic, payload)
	case strings.HasPrefix(topic, "event/irrigationResult/"):
		evt, err = decodeIrrigationResult(topic, payload)
	default:
		return nil // ignora altri topic
	}
	if err != nil {
		return err
	}
	if h.sink != nil {
		h.sink(evt)
	}
	return nil
}

func decodeDecision(topic string, payload []byte) (CommonEvent, error) {
	var d msg.IrrigationDecisionEvent
	if err := json.Unmarshal(payload, &d); err != nil {
		return CommonEvent{}, err
	}
	// il topic è event/irrigationDecision/{field}: nessun sensore
	fieldID := strings.TrimSpace(d.FieldID)
	if fieldID == "" {
		fieldID = strings.Split(strings.TrimPrefix(topic, "event/irrigationDecision/"), "/")[0]
	}
	if fieldID == "" {
		return CommonEvent{}, errors.New("decision: missing field")
	}
	sev := "info"
	if !d.IsRealData {
		sev = "warning" // decisione presa su dati sensore di fallback
	}
	return CommonEvent{
		EventType:     "irrigation.decision",
		SourceService: "decision-engine",
		FieldID:       fieldID,
		Outcome:       d.Outcome,
		Severity:      sev,
		Fields: map[string]interface{}{
			"decision_id":        d.DecisionID,
			"amount_mm":          d.AmountMM,
			"delayed":            d.Delayed,
			"ks":                 d.Ks,
			"dr_mm":              d.DrMM,
			"expected_precip_mm": d.ExpectedMM,
			"is_real_data":       d.IsRealData,
			"stage":              d.Stage,
			"message":            d.Message,
		},
		Timestamp: d.Timestamp,
	}, nil
}

func decodeStateChange(topic string, payload []byte) (CommonEvent, error) {
	var s msg.StateChangeEvent
	if err := json.Unmarshal(payload, &s); err != nil {
		return CommonEvent{}, err
	}
	fieldID, sensorID := pickIDs(topic, s.FieldID, s.SensorID, "event/StateChange/")
	if fieldID == "" || sensorID == "" {
		return CommonEvent{}, errors.New("stateChange: missing field/sensor")
	}
	return CommonEvent{
		EventType:     "device.state_change",
		SourceService: "device-service",
		FieldID:       fieldID,
		SensorID:      sensorID,
		Severity:      "info",
		Fields: map[string]interface{}{
			"new_state": string(s.NewState),
			"duration":  s.Duration.Seconds(),
		},
		Timestamp: s.Timestamp,
	}, nil
}

func decodeIrrigationResult(topic string, payload []byte) (CommonEvent, error) {
	var r msg.IrrigationResultEvent
	if err := json.Unmarshal(payload, &r); err != nil {
		return CommonEvent{}, err
	}
	fieldID, sensorID := pickIDs(topic, r.FieldID, r.SensorID, "event/irrigationResult/")
	if fieldID == "" || sensorID == "" {
		return CommonEvent{}, errors.New("result: missing field/sensor")
	}
	sev := "info"
	if strings.EqualFold(r.Status, "FAIL") {
		sev = "warning"
	}
	return CommonEvent{
		EventType:     "irrigation.result",
		SourceService: "device-service",
		FieldID:       fieldID,
		SensorID:      sensorID,
		Severity:      sev,
		Fields: map[string]interface{}{
			"decision_id": r.DecisionID,
			"status":      r.Status,
			"mm_applied":  r.MmApplied,
			"reason":      r.Reason,
		},
		Timestamp: r.Timestamp,
	}, nil
}

// pickIDs usa payload, oppure topic "prefix/{field}/{sensor}".
func pickIDs(topic, fieldID, sensorID, prefix string) (string, string) {
	if strings.TrimSpace(fieldID) != "" && strings.TrimSpace(sensorID) != "" {
		return fieldID, sensorID
	}
	suffix := strings.TrimPrefix(topic, prefix)
	parts := strings.Split(suffix, "/")
	if strings.TrimSpace(fieldID) == "" && len(parts) >= 1 && parts[0] != "" {
		fieldID = parts[0]
	}
	if strings.TrimSpace(sensorID) == "" && len(parts) >= 2 && parts[1] != "" {
		sensorID = parts[1]
	}
	return fieldID, sensorID
}
