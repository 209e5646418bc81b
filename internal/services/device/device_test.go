package device

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	pb "github.com/croplogic/irrigo/grpc/gen/go/irrigation"
	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
)

type fakeMsg struct {
	topic   string
	payload []byte
}

func (m fakeMsg) Duplicate() bool   { return false }
func (m fakeMsg) Qos() byte         { return 0 }
func (m fakeMsg) Retained() bool    { return false }
func (m fakeMsg) Topic() string     { return m.topic }
func (m fakeMsg) MessageID() uint16 { return 0 }
func (m fakeMsg) Payload() []byte   { return m.payload }
func (m fakeMsg) Ack()              {}

type capturedMsg struct {
	topic   string
	payload string
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []capturedMsg
}

func (p *capturePublisher) PublishMessage(message interface{}) error {
	s, _ := message.(string)
	return p.PublishToQos("default", 0, false, s)
}

func (p *capturePublisher) PublishToQos(topic string, _ byte, _ bool, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, capturedMsg{topic: topic, payload: payload})
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) onTopic(prefix string) []capturedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedMsg
	for _, m := range p.msgs {
		if strings.HasPrefix(m.topic, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// waitResult polls until a result event shows up on the result topic.
func waitResult(t *testing.T, pub *capturePublisher, timeout time.Duration) messages.IrrigationResultEvent {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msgs := pub.onTopic("event/irrigationResult/"); len(msgs) > 0 {
			var evt messages.IrrigationResultEvent
			if err := json.Unmarshal([]byte(msgs[0].payload), &evt); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			return evt
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no irrigation result published before timeout")
	return messages.IrrigationResultEvent{}
}

func testFields(flowLpm, areaM2 float64) map[string]entities.Field {
	return map[string]entities.Field{
		"field-1": {
			ID: "field-1",
			Sensors: []entities.Sensor{
				{FieldID: "field-1", ID: "s1", FlowLpm: flowLpm, AreaM2: areaM2},
			},
		},
	}
}

func newTestService(flowLpm, areaM2 float64) (*Service, *capturePublisher) {
	pub := &capturePublisher{}
	svc := NewService(pub, testFields(flowLpm, areaM2), "", "")
	svc.SetLiveness(time.Minute, 50*time.Millisecond)
	return svc, pub
}

func markAlive(svc *Service) {
	_ = svc.OnSensorData("t", fakeMsg{topic: "sensor/data/field-1/s1"})
}

// ===================== liveness =====================

func TestOnSensorDataTracksLiveness(t *testing.T) {
	svc, _ := newTestService(40, 200)

	if svc.isLive("field-1", "s1") {
		t.Error("sensor live before any heartbeat")
	}
	markAlive(svc)
	if !svc.isLive("field-1", "s1") {
		t.Error("sensor not live right after a heartbeat")
	}
	if svc.isLive("field-1", "s2") {
		t.Error("unrelated sensor reported live")
	}
}

// ===================== cycle outcomes =====================

func TestCycleStopsOnRequest(t *testing.T) {
	svc, pub := newTestService(40, 200)
	markAlive(svc)

	sensor := svc.fields["field-1"].Sensors[0]
	if !svc.StartCycle("field-1", sensor, "dec-1", 30, 120) {
		t.Fatal("StartCycle refused on idle valve")
	}
	if !svc.StopCycle("field-1", "s1") {
		t.Fatal("StopCycle found no active cycle")
	}

	evt := waitResult(t, pub, 2*time.Second)
	if evt.Status != "OK" || evt.Reason != "stopped" {
		t.Errorf("result = %s/%s, want OK/stopped", evt.Status, evt.Reason)
	}
	if evt.DecisionID != "dec-1" {
		t.Errorf("DecisionID = %q, want dec-1", evt.DecisionID)
	}

	// ON all'avvio e OFF alla fine
	states := pub.onTopic("event/StateChange/")
	if len(states) != 2 {
		t.Fatalf("state events = %d, want 2 (ON then OFF)", len(states))
	}
	var on, off messages.StateChangeEvent
	_ = json.Unmarshal([]byte(states[0].payload), &on)
	_ = json.Unmarshal([]byte(states[1].payload), &off)
	if on.NewState != entities.StateOn || off.NewState != entities.StateOff {
		t.Errorf("state sequence = %s,%s want on,off", on.NewState, off.NewState)
	}
}

func TestCycleCompletesRequestedAmount(t *testing.T) {
	// 600 mm/min: il primo tick copre l'intera dose
	svc, pub := newTestService(6000, 10)
	markAlive(svc)

	sensor := svc.fields["field-1"].Sensors[0]
	if !svc.StartCycle("field-1", sensor, "dec-2", 5, 60) {
		t.Fatal("StartCycle refused on idle valve")
	}

	evt := waitResult(t, pub, 3*time.Second)
	if evt.Status != "OK" || evt.Reason != "done" {
		t.Errorf("result = %s/%s, want OK/done", evt.Status, evt.Reason)
	}
	if evt.MmApplied != 5 {
		t.Errorf("MmApplied = %v, want the requested 5 mm (clamped)", evt.MmApplied)
	}
}

func TestCycleFailsWhenSensorOffline(t *testing.T) {
	svc, pub := newTestService(40, 200)
	svc.SetLiveness(10*time.Millisecond, 30*time.Millisecond)
	// nessun heartbeat: il primo check di liveness fallisce

	sensor := svc.fields["field-1"].Sensors[0]
	if !svc.StartCycle("field-1", sensor, "dec-3", 30, 120) {
		t.Fatal("StartCycle refused on idle valve")
	}

	evt := waitResult(t, pub, 3*time.Second)
	if evt.Status != "FAIL" || evt.Reason != "offline" {
		t.Errorf("result = %s/%s, want FAIL/offline", evt.Status, evt.Reason)
	}
}

func TestStartCycleRejectsBusyValve(t *testing.T) {
	svc, _ := newTestService(40, 200)
	markAlive(svc)
	t.Cleanup(func() { svc.StopCycle("field-1", "s1") })

	sensor := svc.fields["field-1"].Sensors[0]
	if !svc.StartCycle("field-1", sensor, "dec-4", 30, 120) {
		t.Fatal("first StartCycle refused")
	}
	if svc.StartCycle("field-1", sensor, "dec-5", 30, 120) {
		t.Error("second StartCycle accepted while the valve is on")
	}
}

func TestStopCycleIdleValve(t *testing.T) {
	svc, _ := newTestService(40, 200)
	if svc.StopCycle("field-1", "s1") {
		t.Error("StopCycle reported an active cycle on an idle valve")
	}
}

// ===================== gRPC surface =====================

func TestStartIrrigationDerivesDuration(t *testing.T) {
	svc, _ := newTestService(40, 200) // 0.2 mm/min
	markAlive(svc)
	t.Cleanup(func() { svc.StopCycle("field-1", "s1") })
	h := NewGrpcHandler(svc)

	resp, err := h.StartIrrigation(context.Background(), &pb.StartRequest{
		FieldId: "field-1", SensorId: "s1", AmountMm: 45, DecisionId: "dec-6",
	})
	if err != nil {
		t.Fatalf("StartIrrigation: %v", err)
	}
	if !resp.GetSuccess() {
		t.Fatalf("refused: %s", resp.GetMessage())
	}
	// 45 mm / 0.2 mm/min = 225 min
	if !strings.Contains(resp.GetMessage(), "duration=225 min") {
		t.Errorf("message = %q, want derived duration 225 min", resp.GetMessage())
	}
}

func TestStartIrrigationUnknownSensor(t *testing.T) {
	svc, _ := newTestService(40, 200)
	h := NewGrpcHandler(svc)

	resp, err := h.StartIrrigation(context.Background(), &pb.StartRequest{
		FieldId: "field-1", SensorId: "nope", AmountMm: 10,
	})
	if err != nil {
		t.Fatalf("StartIrrigation: %v", err)
	}
	if resp.GetSuccess() || !strings.Contains(resp.GetMessage(), "unknown") {
		t.Errorf("response = %+v, want failure naming the unknown sensor", resp)
	}
}

func TestStartIrrigationBusy(t *testing.T) {
	svc, _ := newTestService(40, 200)
	markAlive(svc)
	t.Cleanup(func() { svc.StopCycle("field-1", "s1") })
	h := NewGrpcHandler(svc)

	first, _ := h.StartIrrigation(context.Background(), &pb.StartRequest{
		FieldId: "field-1", SensorId: "s1", DurationMin: 30,
	})
	if !first.GetSuccess() {
		t.Fatalf("first start refused: %s", first.GetMessage())
	}
	second, _ := h.StartIrrigation(context.Background(), &pb.StartRequest{
		FieldId: "field-1", SensorId: "s1", DurationMin: 30,
	})
	if second.GetSuccess() {
		t.Error("second start accepted while a cycle is running")
	}
}

func TestStopIrrigationIsIdempotent(t *testing.T) {
	svc, _ := newTestService(40, 200)
	h := NewGrpcHandler(svc)

	resp, err := h.StopIrrigation(context.Background(), &pb.StopRequest{
		FieldId: "field-1", SensorId: "s1", Reason: "manual",
	})
	if err != nil {
		t.Fatalf("StopIrrigation: %v", err)
	}
	if !resp.GetSuccess() {
		t.Errorf("stop on idle valve should succeed, got %s", resp.GetMessage())
	}
}
