package event

import (
	"log"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigo_events_ingested_total",
		Help: "Events normalized and queued for InfluxDB, by event type.",
	}, []string{"event_type"})

	influxWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irrigo_influx_write_errors_total",
		Help: "Asynchronous write errors reported by the InfluxDB client.",
	})
)

// Writer è il punto unico di scrittura verso Influx: normalizza i CommonEvent,
// li accoda al WriteAPI asincrono e osserva il canale errori del client.
type Writer struct {
	out api.WriteAPI

	mu      sync.RWMutex
	lastErr time.Time
}

func NewWriter(out api.WriteAPI) *Writer {
	w := &Writer{
		out: out,
		// alla partenza "nessun errore recente"
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go w.drainErrors()
	return w
}

// drainErrors consuma il canale errori del batching asincrono. Il client
// ritenta da solo, qui registriamo solo quando è avvenuto l'ultimo fallimento.
func (w *Writer) drainErrors() {
	for err := range w.out.Errors() {
		if err == nil {
			continue
		}
		influxWriteErrors.Inc()
		w.mu.Lock()
		w.lastErr = time.Now()
		w.mu.Unlock()
		log.Printf("event-svc: influx write error: %v", err)
	}
}

// Ingest normalizza e accoda un evento. Il flush lo gestisce il batching del
// client, quindi la chiamata non blocca.
func (w *Writer) Ingest(evt CommonEvent) {
	w.out.WritePoint(EventToPoint(evt))
	eventsIngested.WithLabelValues(evt.EventType).Inc()
}

// LastErrorAge dice da quanto tempo non compaiono errori di scrittura.
func (w *Writer) LastErrorAge() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return time.Since(w.lastErr)
}
