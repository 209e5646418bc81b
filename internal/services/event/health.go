package event

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// health regge le sonde del servizio: /healthz riassume lo stato delle
// dipendenze, /readyz tiene l'istanza fuori rotazione finché la scrittura
// verso Influx non è stabile.
type health struct {
	mqtt   mqtt.Client
	influx influxdb2.Client
	writer *Writer
}

func (h *health) deps() (mqttOK, influxOK bool) {
	// per Influx basta l'esistenza del client, la write API è asincrona e
	// gli errori veri passano dal Writer
	return h.mqtt != nil && h.mqtt.IsConnectionOpen(), h.influx != nil
}

func (h *health) liveness(w http.ResponseWriter, _ *http.Request) {
	mqttOK, influxOK := h.deps()
	errAge := h.writer.LastErrorAge()

	status := "down"
	switch {
	case mqttOK && influxOK && errAge > 30*time.Second:
		status = "ok"
	case mqttOK || influxOK:
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status        string  `json:"status"`
		MQTTConnected bool    `json:"mqtt_connected"`
		InfluxOK      bool    `json:"influx_ok"`
		LastErrAgeSec float64 `json:"last_write_error_age_sec"`
	}{status, mqttOK, influxOK, errAge.Seconds()})
}

// readiness risponde 503 finché l'ultimo errore di scrittura è più recente
// di grace, così le redelivery QoS1 restano in coda al broker.
func (h *health) readiness(grace time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mqttOK, influxOK := h.deps()
		ready := mqttOK && influxOK && h.writer.LastErrorAge() > grace

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(struct {
			Ready bool `json:"ready"`
		}{ready})
	}
}
