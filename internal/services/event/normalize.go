package event

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// EventToPoint normalizza un CommonEvent nella misura unica "system_event".
// I tag identificano l'evento (tipo, origine, esito), i field portano i valori.
func EventToPoint(evt CommonEvent) *write.Point {
	tags := make(map[string]string, 6)
	setTag := func(k, v string) {
		if v != "" {
			tags[k] = v
		}
	}
	setTag("event_type", evt.EventType)
	setTag("source_service", evt.SourceService)
	setTag("severity", evt.Severity)
	setTag("field_id", evt.FieldID)
	setTag("sensor_id", evt.SensorID)
	setTag("outcome", evt.Outcome)

	fields := make(map[string]interface{}, len(evt.Fields)+1)
	for k, v := range evt.Fields {
		fields[k] = fieldValue(v)
	}
	// Influx scarta i punti senza field: "count" tiene in vita gli eventi
	// fatti di soli tag e intanto fa da contatore nelle query di aggregazione.
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	return influxdb2.NewPoint("system_event", tags, fields, evt.Timestamp)
}

// fieldValue riduce i valori ai tipi che il line protocol accetta.
func fieldValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Duration:
		return x.Seconds()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
