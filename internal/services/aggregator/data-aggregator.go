package aggregator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/croplogic/irrigo/internal/model/messages"
	"github.com/croplogic/irrigo/pkg/dedup"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

// DataAggregatorService accumula le letture grezze per sensore e a ogni
// finestra pubblica una MoistureObservation aggregata (media della finestra,
// quality derivata) su sensor/aggregated/{field}/{sensor} a QoS1.
type DataAggregatorService struct {
	consumer            rabbitmq.IConsumer[messages.MoistureObservation]
	publisher           rabbitmq.IPublisher
	buffer              map[string][]messages.MoistureObservation // key: field|sensor
	mutex               sync.Mutex
	aggregationInterval time.Duration
	deduper             *dedup.Deduper
}

func NewDataAggregatorService(consumer rabbitmq.IConsumer[messages.MoistureObservation], publisher rabbitmq.IPublisher, aggregationInterval time.Duration) *DataAggregatorService {
	return &DataAggregatorService{
		consumer:            consumer,
		publisher:           publisher,
		aggregationInterval: aggregationInterval,
		buffer:              make(map[string][]messages.MoistureObservation),
		deduper:             dedup.New(5*time.Minute, 50000),
	}
}

func (d *DataAggregatorService) messageHandler(_ string, message mqtt.Message) error {
	// dedup a payload: redelivery identiche vengono scartate prima dell'unmarshal
	h := sha256.Sum256(message.Payload())
	if d.deduper != nil && !d.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var obs messages.MoistureObservation
	if err := json.Unmarshal(message.Payload(), &obs); err != nil {
		log.Printf("aggregator: bad payload: %v", err)
		return nil
	}
	if obs.Aggregated {
		return nil // già aggregata (loop di topic), non ri-bufferare
	}
	if obs.FieldID == "" || obs.SensorID == "" {
		log.Printf("aggregator: reading without field/sensor id, skip")
		return nil
	}

	k := obs.FieldID + "|" + obs.SensorID
	d.mutex.Lock()
	d.buffer[k] = append(d.buffer[k], obs)
	d.mutex.Unlock()
	return nil
}

func (d *DataAggregatorService) Start(ctx context.Context) {
	d.consumer.SetHandler(d.messageHandler)

	// il consumer gira in una goroutine, il ticker scandisce le finestre
	go d.consumer.ConsumeMessage(ctx)

	ticker := time.NewTicker(d.aggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.publisher.Close()
			return
		case <-ticker.C:
			d.aggregateAndPublish()
		}
	}
}

func (d *DataAggregatorService) aggregateAndPublish() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for k, readings := range d.buffer {
		if len(readings) == 0 {
			continue
		}
		out := aggregate(readings)

		b, err := json.Marshal(out)
		if err != nil {
			log.Printf("aggregator: marshal err %v", err)
			continue
		}
		topic := fmt.Sprintf("sensor/aggregated/%s/%s", out.FieldID, out.SensorID)
		// QoS1: l'osservazione aggregata alimenta la decisione giornaliera
		if err := d.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
			log.Printf("aggregator: publish err %v", err)
		} else {
			log.Printf("aggregator: %s moisture=%.1f%% quality=%s window=%d",
				k, out.MoisturePct, out.DataQuality, len(readings))
		}

		d.buffer[k] = readings[:0]
	}
}

// aggregate media la finestra di un sensore. Le letture reali pesano da sole:
// se la finestra ne contiene almeno una, la media usa solo quelle e le
// letture di fallback vengono ignorate; una finestra interamente degradata
// produce un'osservazione default con is_real_data=false.
func aggregate(readings []messages.MoistureObservation) messages.MoistureObservation {
	real := readings[:0:0]
	for _, r := range readings {
		if r.IsRealData {
			real = append(real, r)
		}
	}

	pick := real
	quality := messages.QualityReal
	isReal := true
	switch {
	case len(real) == 0:
		pick = readings
		quality = messages.QualityDefault
		isReal = false
	case len(real) < len(readings):
		quality = messages.QualityPartial
	}

	sum := 0.0
	newest := pick[0]
	for _, r := range pick {
		sum += r.MoisturePct
		if r.Timestamp.After(newest.Timestamp) {
			newest = r
		}
	}

	// un probe reale con calibrazione mancante resta "partial"
	if isReal && newest.DataQuality == messages.QualityPartial {
		quality = messages.QualityPartial
	}

	return messages.MoistureObservation{
		FieldID:     newest.FieldID,
		SensorID:    newest.SensorID,
		MoisturePct: sum / float64(len(pick)),
		PWPPct:      newest.PWPPct,
		FCPct:       newest.FCPct,
		SatPct:      newest.SatPct,
		DataQuality: quality,
		IsRealData:  isReal,
		Aggregated:  true,
		Timestamp:   time.Now().UTC(),
	}
}
