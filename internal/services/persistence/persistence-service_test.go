package persistence

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/croplogic/irrigo/internal/model/messages"
	"github.com/croplogic/irrigo/pkg/dedup"
)

type fakeMsg struct {
	topic   string
	payload []byte
}

func (m fakeMsg) Duplicate() bool   { return false }
func (m fakeMsg) Qos() byte         { return 1 }
func (m fakeMsg) Retained() bool    { return false }
func (m fakeMsg) Topic() string     { return m.topic }
func (m fakeMsg) MessageID() uint16 { return 1 }
func (m fakeMsg) Payload() []byte   { return m.payload }
func (m fakeMsg) Ack()              {}

type fakeWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
}

func (f *fakeWriteAPI) WriteRecord(_ context.Context, _ ...string) error { return nil }
func (f *fakeWriteAPI) WritePoint(_ context.Context, point ...*write.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point...)
	return nil
}
func (f *fakeWriteAPI) EnableBatching()               {}
func (f *fakeWriteAPI) Flush(_ context.Context) error { return nil }

func (f *fakeWriteAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func (f *fakeWriteAPI) point(t *testing.T, i int) *write.Point {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.points) {
		t.Fatalf("want at least %d points, have %d", i+1, len(f.points))
	}
	return f.points[i]
}

func newTestService() (*Service, *fakeWriteAPI) {
	fw := &fakeWriteAPI{}
	return &Service{
		writeAPI:    fw,
		deduper:     dedup.New(time.Minute, 100),
		latestObs:   make(map[string]messages.MoistureObservation),
		latestState: make(map[string]messages.WaterBalanceEvent),
	}, fw
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleObservationWritesAndCaches(t *testing.T) {
	svc, fw := newTestService()

	obs := messages.MoistureObservation{
		FieldID: "field-1", SensorID: "s1",
		MoisturePct: 31.4, PWPPct: 15.2, FCPct: 25.0, SatPct: 35.5,
		DataQuality: messages.QualityReal, IsRealData: true, Aggregated: true,
		Timestamp: time.Date(2026, 4, 2, 6, 0, 0, 0, time.UTC),
	}
	payload := mustJSON(t, obs)

	if err := svc.handleObservation("sensor/aggregated/field-1/s1", fakeMsg{"sensor/aggregated/field-1/s1", payload}); err != nil {
		t.Fatalf("handleObservation: %v", err)
	}

	if fw.count() != 1 {
		t.Fatalf("points written = %d, want 1", fw.count())
	}
	p := fw.point(t, 0)
	if p.Name() != "soil_moisture" {
		t.Errorf("measurement = %s, want soil_moisture", p.Name())
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["field_id"] != "field-1" || tags["sensor_id"] != "s1" || tags["data_quality"] != "real" {
		t.Errorf("tags = %v", tags)
	}
	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["moisture_pct"] != 31.4 {
		t.Errorf("moisture_pct = %v, want 31.4", fields["moisture_pct"])
	}

	cached := svc.LatestCache()
	if len(cached) != 1 || cached[0].MoisturePct != 31.4 {
		t.Fatalf("cache = %+v, want the observation", cached)
	}

	// redelivery identica: il dedup a payload la scarta
	if err := svc.handleObservation("sensor/aggregated/field-1/s1", fakeMsg{"sensor/aggregated/field-1/s1", payload}); err != nil {
		t.Fatalf("handleObservation redelivery: %v", err)
	}
	if fw.count() != 1 {
		t.Errorf("points after redelivery = %d, want 1", fw.count())
	}
}

func TestHandleObservationSkipsRawReadings(t *testing.T) {
	svc, fw := newTestService()

	raw := messages.MoistureObservation{
		FieldID: "field-1", SensorID: "s1",
		MoisturePct: 28.0, Aggregated: false,
		Timestamp: time.Now(),
	}
	if err := svc.handleObservation("sensor/data/field-1/s1", fakeMsg{"sensor/data/field-1/s1", mustJSON(t, raw)}); err != nil {
		t.Fatalf("handleObservation: %v", err)
	}
	if fw.count() != 0 {
		t.Errorf("points written = %d, want 0 for raw telemetry", fw.count())
	}
	if len(svc.LatestCache()) != 0 {
		t.Error("raw telemetry must not populate the cache")
	}
}

func TestHandleObservationIgnoresInvalidJSON(t *testing.T) {
	svc, fw := newTestService()
	if err := svc.handleObservation("sensor/aggregated/x/y", fakeMsg{"sensor/aggregated/x/y", []byte("{nope")}); err != nil {
		t.Fatalf("invalid JSON must not error the stream, got %v", err)
	}
	if fw.count() != 0 {
		t.Errorf("points written = %d, want 0", fw.count())
	}
}

func TestHandleBalanceWritesAndCaches(t *testing.T) {
	svc, fw := newTestService()

	bal := messages.WaterBalanceEvent{
		FieldID: "field-2", Date: "2026-04-02",
		DrMM: 18.5, DeMM: 4.0, TAWmm: 60, RAWmm: 33, Ks: 1.0, ET0mm: 4.2, ETcMM: 4.8,
		Timestamp: time.Date(2026, 4, 2, 6, 5, 0, 0, time.UTC),
	}
	if err := svc.handleBalance("event/waterBalance/field-2", fakeMsg{"event/waterBalance/field-2", mustJSON(t, bal)}); err != nil {
		t.Fatalf("handleBalance: %v", err)
	}

	if fw.count() != 1 {
		t.Fatalf("points written = %d, want 1", fw.count())
	}
	p := fw.point(t, 0)
	if p.Name() != "water_balance" {
		t.Errorf("measurement = %s, want water_balance", p.Name())
	}
	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["dr_mm"] != 18.5 || fields["taw_mm"] != 60.0 {
		t.Errorf("fields = %v", fields)
	}

	bals := svc.LatestBalances()
	if len(bals) != 1 || bals[0].Date != "2026-04-02" {
		t.Fatalf("balance cache = %+v", bals)
	}
}

func TestDataLatestServesCache(t *testing.T) {
	svc, _ := newTestService()
	svc.latestObs["field-1|s2"] = messages.MoistureObservation{
		FieldID: "field-1", SensorID: "s2", MoisturePct: 24.8,
		DataQuality: messages.QualityPartial, IsRealData: true, Aggregated: true,
		Timestamp: time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC),
	}
	svc.latestObs["field-1|s1"] = messages.MoistureObservation{
		FieldID: "field-1", SensorID: "s1", MoisturePct: 30.1,
		DataQuality: messages.QualityReal, IsRealData: true, Aggregated: true,
		Timestamp: time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC),
	}

	mux := NewHTTPMux(svc)
	req := httptest.NewRequest("GET", "/data/latest?source=cache", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Data-Source"); got != "cache" {
		t.Errorf("X-Data-Source = %q, want cache", got)
	}
	var rows []moistureRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].SensorID != "s1" || rows[1].SensorID != "s2" {
		t.Errorf("rows not sorted by sensor: %+v", rows)
	}
	if rows[0].MoisturePct != 30.1 || rows[0].DataQuality != "real" {
		t.Errorf("row[0] = %+v", rows[0])
	}
}

func TestBalanceLatestEndpoint(t *testing.T) {
	svc, _ := newTestService()
	svc.latestState["field-1"] = messages.WaterBalanceEvent{
		FieldID: "field-1", Date: "2026-04-02", DrMM: 12.0, TAWmm: 50, RAWmm: 27.5,
		Timestamp: time.Date(2026, 4, 2, 6, 5, 0, 0, time.UTC),
	}

	mux := NewHTTPMux(svc)
	req := httptest.NewRequest("GET", "/balance/latest", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(out) != 1 || out[0]["field_id"] != "field-1" || out[0]["dr_mm"] != 12.0 {
		t.Fatalf("body = %v", out)
	}
}
