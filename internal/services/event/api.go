package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIConfig raggruppa i parametri della superficie HTTP di lettura.
type APIConfig struct {
	Org        string
	Bucket     string
	ReadyGrace time.Duration
}

// NewHTTPMux costruisce la superficie HTTP del servizio: sonde di salute,
// metriche e le letture "latest" consumate dal gateway.
func NewHTTPMux(mq mqtt.Client, influx influxdb2.Client, wr *Writer, cfg APIConfig) *http.ServeMux {
	probe := &health{mqtt: mq, influx: influx, writer: wr}
	latest := &latestAPI{influx: influx, org: cfg.Org, bucket: cfg.Bucket}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", probe.liveness)
	mux.Handle("/readyz", probe.readiness(cfg.ReadyGrace))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /events/irrigation/latest", latest.irrigations)
	mux.HandleFunc("GET /events/decisions/latest", latest.decisions)
	return mux
}

// Irrigation è la riga esposta al gateway: una erogazione registrata.
type Irrigation struct {
	SensorID string  `json:"sensor_id,omitempty"`
	Amount   float64 `json:"amount"` // mm erogati (da mm_applied)
	Time     string  `json:"time"`   // RFC3339
}

// Decision riassume una decisione giornaliera registrata su Influx.
type Decision struct {
	FieldID  string  `json:"field_id,omitempty"`
	Outcome  string  `json:"outcome,omitempty"`
	AmountMM float64 `json:"amount_mm"`
	Time     string  `json:"time"` // RFC3339
}

type latestAPI struct {
	influx influxdb2.Client
	org    string
	bucket string
}

// window: parametri comuni delle letture "latest".
type window struct {
	minutes int
	limit   int
	timeout time.Duration
}

func parseWindow(r *http.Request) window {
	q := r.URL.Query()
	win := window{minutes: 1440, limit: 20, timeout: 2 * time.Second}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("minutes"))); err == nil {
		win.minutes = clampInt(n, 1, 7*24*60)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		win.limit = clampInt(n, 1, 500)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("timeout_ms"))); err == nil {
		win.timeout = time.Duration(clampInt(n, 200, 5000)) * time.Millisecond
	}
	return win
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// GET /events/irrigation/latest?limit=20[&minutes=1440]
func (a *latestAPI) irrigations(w http.ResponseWriter, r *http.Request) {
	win := parseWindow(r)
	flux := latestFlux(a.bucket, win, "irrigation.result", "mm_applied", []string{"sensor_id"}, "")

	out := make([]Irrigation, 0, win.limit)
	a.collect(w, r, win, flux, func(rec fluxRecord) {
		out = append(out, Irrigation{
			SensorID: asString(rec.ValueByKey("sensor_id")),
			Amount:   asFloat(rec.Value()),
			Time:     rec.Time().UTC().Format(time.RFC3339),
		})
	})
	writeJSON(w, out)
}

// GET /events/decisions/latest?limit=20[&minutes=1440][&field=field-1]
func (a *latestAPI) decisions(w http.ResponseWriter, r *http.Request) {
	win := parseWindow(r)
	tagFilter := ""
	if f := strings.TrimSpace(r.URL.Query().Get("field")); f != "" && isTagSafe(f) {
		tagFilter = fmt.Sprintf("r.field_id == %q", f)
	}
	flux := latestFlux(a.bucket, win, "irrigation.decision", "amount_mm", []string{"field_id", "outcome"}, tagFilter)

	out := make([]Decision, 0, win.limit)
	a.collect(w, r, win, flux, func(rec fluxRecord) {
		out = append(out, Decision{
			FieldID:  asString(rec.ValueByKey("field_id")),
			Outcome:  asString(rec.ValueByKey("outcome")),
			AmountMM: asFloat(rec.Value()),
			Time:     rec.Time().UTC().Format(time.RFC3339),
		})
	})
	writeJSON(w, out)
}

// fluxRecord copre la parte di query.FluxRecord che usiamo, così i collector
// non dipendono dal tipo concreto del client.
type fluxRecord interface {
	Value() interface{}
	ValueByKey(key string) interface{}
	Time() time.Time
}

// collect esegue la query e passa ogni riga al collector. Gli errori non
// diventano 5xx: il gateway preferisce una lista vuota marcata via header.
func (a *latestAPI) collect(w http.ResponseWriter, r *http.Request, win window, flux string, add func(fluxRecord)) {
	ctx, cancel := context.WithTimeout(r.Context(), win.timeout)
	defer cancel()

	res, err := a.influx.QueryAPI(a.org).Query(ctx, flux)
	if err != nil {
		w.Header().Set("X-Error", "influx-query-error")
		return
	}
	defer func() { _ = res.Close() }()

	for res.Next() {
		add(res.Record())
	}
	if res.Err() != nil {
		w.Header().Set("X-Error", "influx-iter-error")
	}
}

// latestFlux genera la query per gli ultimi valori di un field su system_event,
// più recente per primo.
func latestFlux(bucket string, win window, eventType, valueField string, keepTags []string, tagFilter string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", bucket)
	fmt.Fprintf(&b, "  |> range(start: -%dm)\n", win.minutes)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == \"system_event\" and r.event_type == %q)\n", eventType)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._field == %q)\n", valueField)
	if tagFilter != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", tagFilter)
	}
	cols := append([]string{"_time", "_value"}, keepTags...)
	fmt.Fprintf(&b, "  |> keep(columns: [%s])\n", quoteJoin(cols))
	b.WriteString("  |> sort(columns: [\"_time\"], desc: true)\n")
	fmt.Fprintf(&b, "  |> limit(n:%d)\n", win.limit)
	return b.String()
}

func quoteJoin(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = strconv.Quote(s)
	}
	return strings.Join(quoted, ",")
}

// isTagSafe ammette solo identificatori semplici dentro la query Flux.
func isTagSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	default:
		return 0
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
