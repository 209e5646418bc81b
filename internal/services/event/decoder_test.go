package event

import (
	"encoding/json"
	"testing"
	"time"

	msg "github.com/croplogic/irrigo/internal/model/messages"
)

type fakeMsg struct {
	topic   string
	payload []byte
}

func (m fakeMsg) Duplicate() bool   { return false }
func (m fakeMsg) Qos() byte         { return 1 }
func (m fakeMsg) Retained() bool    { return false }
func (m fakeMsg) Topic() string     { return m.topic }
func (m fakeMsg) MessageID() uint16 { return 0 }
func (m fakeMsg) Payload() []byte   { return m.payload }
func (m fakeMsg) Ack()              {}

func capture(t *testing.T) (*MQTTHandler, *[]CommonEvent) {
	t.Helper()
	var got []CommonEvent
	h := NewMQTTHandler(func(evt CommonEvent) { got = append(got, evt) })
	return h, &got
}

func TestHandleDecisionEvent(t *testing.T) {
	h, got := capture(t)

	evt := msg.IrrigationDecisionEvent{
		DecisionID: "dec-1",
		FieldID:    "field-1",
		Date:       "2026-03-11",
		Stage:      "Initial",
		Outcome:    "irrigate",
		AmountMM:   45,
		Ks:         0.43,
		DrMM:       43.9,
		IsRealData: true,
		Timestamp:  time.Date(2026, 3, 11, 20, 0, 0, 0, time.UTC),
	}
	raw, _ := json.Marshal(evt)
	if err := h.Handle("", fakeMsg{topic: "event/irrigationDecision/field-1", payload: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(*got) != 1 {
		t.Fatalf("sink events = %d, want 1", len(*got))
	}
	ce := (*got)[0]
	if ce.EventType != "irrigation.decision" || ce.FieldID != "field-1" || ce.SensorID != "" {
		t.Errorf("event = %+v, want field-scoped decision", ce)
	}
	if ce.Outcome != "irrigate" || ce.Severity != "info" {
		t.Errorf("outcome/severity = %s/%s, want irrigate/info", ce.Outcome, ce.Severity)
	}
	if ce.Fields["amount_mm"] != 45.0 || ce.Fields["decision_id"] != "dec-1" {
		t.Errorf("fields = %+v, want amount and decision id carried", ce.Fields)
	}
}

func TestHandleDecisionOnDefaultedDataIsWarning(t *testing.T) {
	h, got := capture(t)

	evt := msg.IrrigationDecisionEvent{
		DecisionID: "dec-2", FieldID: "field-1", Outcome: "no_deficit",
		IsRealData: false, Timestamp: time.Now().UTC(),
	}
	raw, _ := json.Marshal(evt)
	if err := h.Handle("", fakeMsg{topic: "event/irrigationDecision/field-1", payload: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if (*got)[0].Severity != "warning" {
		t.Errorf("severity = %s, want warning for defaulted sensor data", (*got)[0].Severity)
	}
}

func TestHandleStateChangeDerivesIDsFromTopic(t *testing.T) {
	h, got := capture(t)

	evt := msg.StateChangeEvent{NewState: "on", Duration: 90 * time.Minute, Timestamp: time.Now().UTC()}
	raw, _ := json.Marshal(evt)
	if err := h.Handle("", fakeMsg{topic: "event/StateChange/field-2/s7", payload: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	ce := (*got)[0]
	if ce.FieldID != "field-2" || ce.SensorID != "s7" {
		t.Errorf("ids = %s/%s, want field-2/s7 from the topic", ce.FieldID, ce.SensorID)
	}
	if ce.EventType != "device.state_change" || ce.Fields["new_state"] != "on" {
		t.Errorf("event = %+v, want a state change with new_state on", ce)
	}
	if ce.Fields["duration"] != (90 * time.Minute).Seconds() {
		t.Errorf("duration = %v, want seconds", ce.Fields["duration"])
	}
}

func TestHandleFailedResultIsWarning(t *testing.T) {
	h, got := capture(t)

	evt := msg.IrrigationResultEvent{
		FieldID: "field-1", SensorID: "s1", DecisionID: "dec-3",
		Status: "FAIL", MmApplied: 2.5, Reason: "offline",
		Timestamp: time.Now().UTC(),
	}
	raw, _ := json.Marshal(evt)
	if err := h.Handle("", fakeMsg{topic: "event/irrigationResult/field-1/s1", payload: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	ce := (*got)[0]
	if ce.EventType != "irrigation.result" || ce.Severity != "warning" {
		t.Errorf("event = %+v, want a warning result", ce)
	}
	if ce.Fields["mm_applied"] != 2.5 || ce.Fields["reason"] != "offline" {
		t.Errorf("fields = %+v, want partial application carried", ce.Fields)
	}
}

func TestHandleIgnoresUnknownTopics(t *testing.T) {
	h, got := capture(t)
	if err := h.Handle("", fakeMsg{topic: "sensor/data/field-1/s1", payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(*got) != 0 {
		t.Errorf("sink events = %d, want 0 for unrelated topics", len(*got))
	}
}

func TestEventToPointTagsAndFields(t *testing.T) {
	p := EventToPoint(CommonEvent{
		EventType:     "irrigation.decision",
		SourceService: "decision-engine",
		FieldID:       "field-1",
		Outcome:       "delayed",
		Severity:      "info",
		Fields:        map[string]interface{}{"amount_mm": 0.0},
		Timestamp:     time.Date(2026, 3, 11, 20, 0, 0, 0, time.UTC),
	})

	if p.Name() != "system_event" {
		t.Errorf("measurement = %s, want system_event", p.Name())
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["outcome"] != "delayed" || tags["field_id"] != "field-1" || tags["event_type"] != "irrigation.decision" {
		t.Errorf("tags = %v, want outcome/field/event_type", tags)
	}
	if _, ok := tags["sensor_id"]; ok {
		t.Error("sensor_id tag present for a field-scoped event")
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["amount_mm"] != 0.0 {
		t.Errorf("fields = %v, want amount_mm", fields)
	}
	if fields["count"] != int64(1) {
		t.Errorf("count = %v, want the fallback counter", fields["count"])
	}
}
