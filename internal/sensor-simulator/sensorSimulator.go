package sensor_simulator

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

	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
	"github.com/croplogic/irrigo/pkg/dedup"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

// SensorSimulator emula un probe di umidità con la sua valvola: pubblica
// letture grezze a intervalli regolari e segue gli StateChange del device
// per riflettere l'irrigazione nella moisture simulata.
type SensorSimulator struct {
	mu        sync.Mutex
	sensor    *entities.Sensor
	timer     *time.Timer // revert singolo dello stato valvola
	generator *DataGenerator
	publisher rabbitmq.IPublisher
	consumer  rabbitmq.IConsumer[mqtt.Message]
	deduper   *dedup.Deduper
	topic     string
}

func NewSensorSimulator(consumer rabbitmq.IConsumer[mqtt.Message], publisher rabbitmq.IPublisher,
	gen *DataGenerator, sensor *entities.Sensor) *SensorSimulator {
	return &SensorSimulator{
		sensor:    sensor,
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000), // TTL e cap
		topic:     fmt.Sprintf("sensor/data/%s/%s", sensor.FieldID, sensor.ID),
	}
}

// Start avvia la ricezione dei cambi di stato e la pubblicazione periodica
// delle letture. Blocca fino alla cancellazione del context.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	s.consumer.SetHandler(s.handleMessage)
	go s.consumer.ConsumeMessage(ctx)

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-time.After(interval):
			obs := s.generator.Next(s.sensor)
			log.Printf("sensor: pub raw field=%s sensor=%s moisture=%.1f%% quality=%s",
				obs.FieldID, obs.SensorID, obs.MoisturePct, obs.DataQuality)
			payload, _ := json.Marshal(obs)
			// telemetria grezza a QoS0: l'aggregatore media comunque la finestra
			if err := s.publisher.PublishToQos(s.topic, 0, false, string(payload)); err != nil {
				log.Printf("publish error: %v", err)
			}
		}
	}
}

func (s *SensorSimulator) handleMessage(_ string, msg mqtt.Message) error {
	// Dedup a payload: redelivery QoS1 ha lo stesso payload → stesso hash
	h := sha256.Sum256(msg.Payload())
	if s.deduper != nil && !s.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil // duplicato → ignora
	}

	var evt messages.StateChangeEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		return fmt.Errorf("invalid StateChangeEvent: %w", err)
	}
	if evt.FieldID != s.sensor.FieldID || evt.SensorID != s.sensor.ID {
		// ignore events for other sensors
		return nil
	}
	s.applyTimedState(evt)
	return nil
}

func (s *SensorSimulator) applyTimedState(evt messages.StateChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	prev := s.sensor.State
	s.sensor.State = evt.NewState
	log.Printf("sensor %s → %s for %s", s.sensor.ID, evt.NewState, evt.Duration)

	// Se l'irrigazione va in ON, riflette subito l'acqua applicata nella moisture
	if evt.NewState == entities.StateOn && s.generator != nil {
		s.generator.ApplyIrrigation(evt.Duration)
	}

	// revert programmato al termine della durata
	if evt.Duration > 0 {
		s.timer = time.AfterFunc(evt.Duration, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.sensor.State = prev
			log.Printf("sensor %s ↺ %s", s.sensor.ID, prev)
			s.timer = nil
		})
	}
}
